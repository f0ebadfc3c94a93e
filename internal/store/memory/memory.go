// Package memory is an in-process store backend used for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	records   map[string]core.Record
	users     map[string]store.User
	tokens    map[string]store.RefreshToken
	recurring map[string]core.RecurringPayment
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       time.Now,
		records:   make(map[string]core.Record),
		users:     make(map[string]store.User),
		tokens:    make(map[string]store.RefreshToken),
		recurring: make(map[string]core.RecurringPayment),
	}
}

// WithClock replaces the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func sameTable(kind core.RecordKind, r core.Record) bool {
	if kind == core.KindIncome {
		return r.Kind == core.KindIncome
	}
	return r.Kind == core.KindExpense
}

func (s *Store) Query(ctx context.Context, kind core.RecordKind, f store.Filter) ([]core.Record, error) {
	owner, err := store.Owner(ctx, "load", kind)
	if err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, store.Wrap("load", kind, core.ErrUnknownKind)
	}
	s.mu.Lock()
	out := make([]core.Record, 0)
	for _, r := range s.records {
		if r.OwnerID != owner || !sameTable(kind, r) || !f.Match(kind, r) {
			continue
		}
		if kind == core.KindBudget {
			r.Kind = core.KindBudget
		}
		out = append(out, copyRecord(r))
	}
	s.mu.Unlock()
	return f.Apply(out), nil
}

func (s *Store) Insert(ctx context.Context, kind core.RecordKind, r core.Record) (string, error) {
	owner, err := store.Owner(ctx, "save", kind)
	if err != nil {
		return "", err
	}
	row, err := store.PrepareInsert(kind, r, s.now())
	if err != nil {
		return "", store.Wrap("save", kind, err)
	}
	row.ID = uuid.NewString()
	row.OwnerID = owner
	s.mu.Lock()
	s.records[row.ID] = copyRecord(row)
	s.mu.Unlock()
	return row.ID, nil
}

func (s *Store) Update(ctx context.Context, kind core.RecordKind, id string, p store.Patch) error {
	owner, err := store.Owner(ctx, "update", kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != owner || !writable(kind, r) {
		return store.Wrap("update", kind, store.ErrNotFound)
	}
	store.ApplyPatch(&r, p)
	s.records[id] = r
	return nil
}

func (s *Store) Delete(ctx context.Context, kind core.RecordKind, id string) error {
	owner, err := store.Owner(ctx, "delete", kind)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.OwnerID != owner || !writable(kind, r) {
		return store.Wrap("delete", kind, store.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

// writable reports whether an update or delete of kind may touch r. Expense
// writes never reach budget markers and budget writes only reach markers.
func writable(kind core.RecordKind, r core.Record) bool {
	if !sameTable(kind, r) {
		return false
	}
	switch kind {
	case core.KindBudget:
		return r.HasCeiling()
	case core.KindExpense:
		return !r.HasCeiling()
	}
	return true
}

func copyRecord(r core.Record) core.Record {
	if r.Ceiling != nil {
		c := *r.Ceiling
		r.Ceiling = &c
	}
	return r
}

func (s *Store) CreateUser(_ context.Context, u store.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return "", store.Wrap("create", "user", store.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return store.User{}, store.Wrap("load", "user", store.ErrNotFound)
}

func (s *Store) UserByID(_ context.Context, id string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.Wrap("load", "user", store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) UpdatePassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.Wrap("update", "user", store.ErrNotFound)
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *Store) UpdateSettings(_ context.Context, id string, st core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.Wrap("update", "user", store.ErrNotFound)
	}
	u.Settings = st
	s.users[id] = u
	return nil
}

func (s *Store) SaveRefreshToken(_ context.Context, t store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Hash] = t
	return nil
}

func (s *Store) ConsumeRefreshToken(_ context.Context, hash string) (store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return store.RefreshToken{}, store.Wrap("load", "session", store.ErrNotFound)
	}
	delete(s.tokens, hash)
	return t, nil
}

func (s *Store) RevokeUserTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, h)
		}
	}
	return nil
}

func (s *Store) ListRecurring(ctx context.Context) ([]core.RecurringPayment, error) {
	owner, err := store.Owner(ctx, "load", "recurring")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringPayment, 0)
	for _, rp := range s.recurring {
		if rp.OwnerID == owner {
			out = append(out, rp)
		}
	}
	sortRecurring(out)
	return out, nil
}

func (s *Store) CreateRecurring(ctx context.Context, rp core.RecurringPayment) (string, error) {
	owner, err := store.Owner(ctx, "save", "recurring")
	if err != nil {
		return "", err
	}
	rp.ID = uuid.NewString()
	rp.OwnerID = owner
	s.mu.Lock()
	s.recurring[rp.ID] = rp
	s.mu.Unlock()
	return rp.ID, nil
}

func (s *Store) DeleteRecurring(ctx context.Context, id string) error {
	owner, err := store.Owner(ctx, "delete", "recurring")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rp, ok := s.recurring[id]
	if !ok || rp.OwnerID != owner {
		return store.Wrap("delete", "recurring", store.ErrNotFound)
	}
	delete(s.recurring, id)
	return nil
}

func (s *Store) AllRecurring(_ context.Context) ([]core.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringPayment, 0, len(s.recurring))
	for _, rp := range s.recurring {
		out = append(out, rp)
	}
	sortRecurring(out)
	return out, nil
}

func (s *Store) MarkExecuted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rp, ok := s.recurring[id]
	if !ok {
		return store.Wrap("update", "recurring", store.ErrNotFound)
	}
	rp.LastExecution = at
	s.recurring[id] = rp
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sortRecurring(rs []core.RecurringPayment) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].StartDate.Equal(rs[j].StartDate.Time) {
			return rs[i].StartDate.Before(rs[j].StartDate.Time)
		}
		return rs[i].ID < rs[j].ID
	})
}
