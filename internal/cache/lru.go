package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// LRUCache keeps at most capacity entries in process memory. Entries older
// than ttl miss on read and are dropped by CleanExpired.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
}

var _ Cache[int] = (*LRUCache[int])(nil)

type lruEntry[T any] struct {
	key     string
	value   T
	expires time.Time
}

// NewLRUCache returns an empty cache. A capacity of zero or less disables
// size-based eviction.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  map[string]*list.Element{},
		order:    list.New(),
	}
}

func (c *LRUCache[T]) Get(_ context.Context, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	e := el.Value.(*lruEntry[T])
	if !c.now().Before(e.expires) {
		c.drop(el)
		var zero T
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *LRUCache[T]) Set(_ context.Context, key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*lruEntry[T])
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&lruEntry[T]{key: key, value: value, expires: expires})

	for c.capacity > 0 && c.order.Len() > c.capacity {
		c.drop(c.order.Back())
	}
}

func (c *LRUCache[T]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.drop(el)
	}
}

func (c *LRUCache[T]) DeletePrefix(_ context.Context, prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.drop(el)
			n++
		}
	}
	return n
}

// CleanExpired drops every expired entry and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*lruEntry[T]).expires) {
			c.drop(el)
			n++
		}
		el = prev
	}
	return n
}

// Size counts stored entries, including expired ones not yet cleaned.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// drop must be called with mu held.
func (c *LRUCache[T]) drop(el *list.Element) {
	delete(c.entries, el.Value.(*lruEntry[T]).key)
	c.order.Remove(el)
}
