package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type BudgetService struct {
	records *RecordService
	now     func() time.Time
}

func NewBudgetService(records *RecordService) *BudgetService {
	return &BudgetService{records: records, now: time.Now}
}

// Statuses reconciles every budget marker against this month's spending.
// Markers and expenses are read concurrently.
func (s *BudgetService) Statuses(ctx context.Context) ([]core.BudgetStatus, error) {
	start, end := core.CurrentMonth(s.now())
	var markers, month []core.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		markers, err = s.records.List(gctx, core.KindBudget, store.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.records.List(gctx, core.KindExpense, store.Filter{From: start, To: end})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return core.Reconcile(markers, month), nil
}

// HasBudget reports whether category has a ceiling, ignoring case.
func (s *BudgetService) HasBudget(ctx context.Context, category string) (bool, error) {
	markers, err := s.records.List(ctx, core.KindBudget, store.Filter{})
	if err != nil {
		return false, err
	}
	return core.HasBudgetFor(markers, category), nil
}

// AddBudget declares a ceiling for a category that has none yet.
func (s *BudgetService) AddBudget(ctx context.Context, category string, ceiling core.Money) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	r := core.Record{Category: category, Ceiling: &ceiling}
	if err := r.ValidateBudget(); err != nil {
		return err
	}
	cat, err := s.records.canonicalExpenseCategory(category)
	if err != nil {
		return err
	}
	exists, err := s.HasBudget(ctx, cat)
	if err != nil {
		return err
	}
	if exists {
		return &core.ValidationError{Field: "category", Err: core.ErrDuplicateBudget}
	}
	r.Category = cat
	r.OccurredAt = s.now()
	_, err = s.records.insert(ctx, core.KindBudget, r)
	return err
}

// RemoveBudget deletes every marker of the category. Spending rows are untouched.
func (s *BudgetService) RemoveBudget(ctx context.Context, category string) error {
	if _, err := requireOwner(ctx); err != nil {
		return err
	}
	markers, err := s.records.List(ctx, core.KindBudget, store.Filter{Category: category})
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		return &store.StoreError{Op: "delete", Kind: core.KindBudget, Message: "budget not found", Err: store.ErrNotFound}
	}
	for _, m := range markers {
		if err := s.records.delete(ctx, core.KindBudget, m.ID); err != nil {
			return err
		}
	}
	return nil
}
