package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/taxonomy"
)

// RecordService is the read and write path used by the pages. Reads are cached
// per owner; any write, local or announced by another instance, drops the
// owner's cached reads.
type RecordService struct {
	store    store.Client
	cache    cache.Cache[[]core.Record]
	taxonomy *taxonomy.Taxonomy
	logger   *slog.Logger
	now      func() time.Time
}

var _ core.Notifier = (*RecordService)(nil)

// NewRecordService accepts a nil cache, in which case every read hits the store.
func NewRecordService(client store.Client, c cache.Cache[[]core.Record], tx *taxonomy.Taxonomy, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	if tx == nil {
		tx = taxonomy.Static(taxonomy.DefaultLists())
	}
	return &RecordService{store: client, cache: c, taxonomy: tx, logger: logger, now: time.Now}
}

func (s *RecordService) Taxonomy() *taxonomy.Taxonomy { return s.taxonomy }

func cacheKey(owner string, kind core.RecordKind, f store.Filter) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%t|%d", owner, kind, f.Category, f.From.Unix(), f.To.Unix(), f.Newest, f.Limit)
}

func clone(rs []core.Record) []core.Record {
	return append([]core.Record(nil), rs...)
}

// List queries the store through the cache. Anonymous callers get an empty list.
func (s *RecordService) List(ctx context.Context, kind core.RecordKind, f store.Filter) ([]core.Record, error) {
	owner, ok := core.OwnerFromContext(ctx)
	if !ok {
		return []core.Record{}, nil
	}
	key := cacheKey(owner, kind, f)
	if s.cache != nil {
		if rs, ok := s.cache.Get(ctx, key); ok {
			return clone(rs), nil
		}
	}
	rs, err := s.store.Query(ctx, kind, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "Record query failed", "error", err, "owner_id", owner, "record_kind", kind)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, clone(rs))
	}
	return rs, nil
}

// Notify drops the cached reads of the event's owner.
func (s *RecordService) Notify(ctx context.Context, ev core.ChangeEvent) error {
	s.Invalidate(ctx, ev.OwnerID)
	return nil
}

func (s *RecordService) Invalidate(ctx context.Context, owner string) {
	if s.cache == nil || owner == "" {
		return
	}
	if n := s.cache.DeletePrefix(ctx, owner+"|"); n > 0 {
		s.logger.DebugContext(ctx, "Invalidated cached reads", "owner_id", owner, "count", n)
	}
}

func requireOwner(ctx context.Context) (string, error) {
	owner, ok := core.OwnerFromContext(ctx)
	if !ok {
		return "", core.ErrUnauthenticated
	}
	return owner, nil
}

func (s *RecordService) insert(ctx context.Context, kind core.RecordKind, r core.Record) (string, error) {
	owner, err := requireOwner(ctx)
	if err != nil {
		return "", err
	}
	id, err := s.store.Insert(ctx, kind, r)
	if err != nil {
		s.logger.ErrorContext(ctx, "Record insert failed", "error", err, "owner_id", owner, "record_kind", kind)
		return "", err
	}
	s.Invalidate(ctx, owner)
	s.logger.InfoContext(ctx, "Record saved",
		"owner_id", owner,
		"record_kind", kind,
		"record_id", id,
		"category", r.Category,
		"amount_cents", r.Amount.Cents)
	return id, nil
}

func (s *RecordService) update(ctx context.Context, kind core.RecordKind, id string, p store.Patch) error {
	owner, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, kind, id, p); err != nil {
		s.logger.ErrorContext(ctx, "Record update failed", "error", err, "owner_id", owner, "record_kind", kind, "record_id", id)
		return err
	}
	s.Invalidate(ctx, owner)
	s.logger.InfoContext(ctx, "Record updated", "owner_id", owner, "record_kind", kind, "record_id", id)
	return nil
}

func (s *RecordService) delete(ctx context.Context, kind core.RecordKind, id string) error {
	owner, err := requireOwner(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, kind, id); err != nil {
		s.logger.ErrorContext(ctx, "Record delete failed", "error", err, "owner_id", owner, "record_kind", kind, "record_id", id)
		return err
	}
	s.Invalidate(ctx, owner)
	s.logger.InfoContext(ctx, "Record deleted", "owner_id", owner, "record_kind", kind, "record_id", id)
	return nil
}

func (s *RecordService) canonicalExpenseCategory(category string) (string, error) {
	c, err := s.taxonomy.Expense().Canonical(category)
	if err != nil {
		return "", &core.ValidationError{Field: "category", Err: err}
	}
	return c, nil
}

// AddExpense validates and stores a user-entered expense.
func (s *RecordService) AddExpense(ctx context.Context, r core.Record) (string, error) {
	if _, err := requireOwner(ctx); err != nil {
		return "", err
	}
	if err := r.ValidateExpense(s.now()); err != nil {
		return "", err
	}
	cat, err := s.canonicalExpenseCategory(r.Category)
	if err != nil {
		return "", err
	}
	r.Category = cat
	r.Ceiling = nil
	r.Source = ""
	return s.insert(ctx, core.KindExpense, r)
}

// UpdateExpense replaces the editable fields of an expense with r's values.
func (s *RecordService) UpdateExpense(ctx context.Context, id string, r core.Record) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	if err := r.ValidateExpense(s.now()); err != nil {
		return err
	}
	cat, err := s.canonicalExpenseCategory(r.Category)
	if err != nil {
		return err
	}
	at := r.OccurredAt
	return s.update(ctx, core.KindExpense, id, store.Patch{
		Amount:      &r.Amount,
		Category:    &cat,
		Description: &r.Description,
		OccurredAt:  &at,
	})
}

func (s *RecordService) DeleteExpense(ctx context.Context, id string) error {
	return s.delete(ctx, core.KindExpense, id)
}

// AddIncome validates the source against the allow-list; the category is optional.
func (s *RecordService) AddIncome(ctx context.Context, r core.Record) (string, error) {
	if _, err := requireOwner(ctx); err != nil {
		return "", err
	}
	if err := r.ValidateIncome(); err != nil {
		return "", err
	}
	src, err := s.taxonomy.IncomeSources().Canonical(r.Source)
	if err != nil {
		return "", &core.ValidationError{Field: "source", Err: err}
	}
	r.Source = src
	if r.Category != "" {
		cat, err := s.taxonomy.IncomeCategories().Canonical(r.Category)
		if err != nil {
			return "", &core.ValidationError{Field: "category", Err: err}
		}
		r.Category = cat
	}
	r.Ceiling = nil
	return s.insert(ctx, core.KindIncome, r)
}

func (s *RecordService) DeleteIncome(ctx context.Context, id string) error {
	return s.delete(ctx, core.KindIncome, id)
}

func (s *RecordService) windowFilter(window core.TimeWindow, category string) store.Filter {
	f := store.Filter{Category: category, Newest: true}
	if since, ok := window.Since(s.now()); ok {
		// minute resolution keeps rolling windows cacheable
		f.From = since.Truncate(time.Minute)
	}
	return f
}

// Expenses lists real expenses newest first; sentinels never appear.
func (s *RecordService) Expenses(ctx context.Context, window core.TimeWindow, category string) ([]core.Record, error) {
	rs, err := s.List(ctx, core.KindExpense, s.windowFilter(window, category))
	if err != nil {
		return nil, err
	}
	return core.RealExpenses(rs), nil
}

func (s *RecordService) Incomes(ctx context.Context, window core.TimeWindow) ([]core.Record, error) {
	return s.List(ctx, core.KindIncome, s.windowFilter(window, ""))
}

// ExpenseCategories lists the distinct categories the owner has spent in.
func (s *RecordService) ExpenseCategories(ctx context.Context) ([]string, error) {
	rs, err := s.List(ctx, core.KindExpense, store.Filter{Newest: true})
	if err != nil {
		return nil, err
	}
	return core.DistinctCategories(rs), nil
}
