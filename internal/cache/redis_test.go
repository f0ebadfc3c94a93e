package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/core"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisCacheUnreachableIsMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	c := NewRedisCache[[]core.Record](client, "fintrack:test:", time.Minute, quietLogger())
	ctx := context.Background()

	c.Set(ctx, "u1:expense", []core.Record{{ID: "r1"}})
	if _, ok := c.Get(ctx, "u1:expense"); ok {
		t.Fatalf("unreachable redis must read as a miss")
	}
	if n := c.DeletePrefix(ctx, "u1:"); n != 0 {
		t.Fatalf("expected 0 deletions, got %d", n)
	}
	if err := c.Ping(ctx); err == nil {
		t.Fatalf("ping should fail")
	}
}

// TestRedisCacheRoundTrip needs a running redis, e.g.
// REDIS_TEST_URL=redis://localhost:6379/0 go test ./internal/cache
func TestRedisCacheRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	namespace := "fintrack_test:" + time.Now().Format("150405.000000") + ":"
	c := NewRedisCache[[]core.Record](client, namespace, time.Minute, quietLogger())
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { c.DeletePrefix(context.Background(), "") })

	ceiling := core.Money{Cents: 100000}
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := []core.Record{
		{ID: "b1", OwnerID: "u1", Kind: core.KindExpense, Category: "Groceries", Description: core.SentinelDescription, OccurredAt: when, Ceiling: &ceiling},
		{ID: "e1", OwnerID: "u1", Kind: core.KindExpense, Amount: core.Money{Cents: 1250}, Category: "Dining", Description: "pizza", OccurredAt: when},
	}
	c.Set(ctx, "u1:expense:all", rows)
	c.Set(ctx, "u1:income:all", []core.Record{{ID: "i1", OwnerID: "u1", Kind: core.KindIncome, Source: "Salary"}})
	c.Set(ctx, "u2:expense:all", []core.Record{{ID: "e2", OwnerID: "u2"}})

	got, ok := c.Get(ctx, "u1:expense:all")
	if !ok || len(got) != 2 {
		t.Fatalf("expected 2 cached rows, got %+v (hit=%v)", got, ok)
	}
	if got[0].Ceiling == nil || got[0].Ceiling.Cents != 100000 || !got[0].IsSentinel() {
		t.Fatalf("marker lost in round trip: %+v", got[0])
	}
	if got[1].Amount.Cents != 1250 || got[1].Ceiling != nil || !got[1].OccurredAt.Equal(when) {
		t.Fatalf("expense lost in round trip: %+v", got[1])
	}

	if n := c.DeletePrefix(ctx, "u1:"); n != 2 {
		t.Fatalf("expected 2 keys removed for u1, got %d", n)
	}
	if _, ok := c.Get(ctx, "u1:income:all"); ok {
		t.Fatalf("u1 entries should be gone")
	}
	if _, ok := c.Get(ctx, "u2:expense:all"); !ok {
		t.Fatalf("u2 entry must survive u1 invalidation")
	}

	c.Delete(ctx, "u2:expense:all")
	if _, ok := c.Get(ctx, "u2:expense:all"); ok {
		t.Fatalf("deleted key still cached")
	}
}
