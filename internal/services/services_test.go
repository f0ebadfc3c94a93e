package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

var fixedNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

// countingClient counts store queries so tests can observe cache hits.
type countingClient struct {
	store.Client
	queries atomic.Int64
}

func (c *countingClient) Query(ctx context.Context, kind core.RecordKind, f store.Filter) ([]core.Record, error) {
	c.queries.Add(1)
	return c.Client.Query(ctx, kind, f)
}

type fixture struct {
	mem      *memory.Store
	client   *countingClient
	records  *RecordService
	budgets  *BudgetService
	analysis *AnalyticsService
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New().WithClock(func() time.Time { return fixedNow })
	client := &countingClient{Client: mem}
	records := NewRecordService(client, cache.NewLRUCache[[]core.Record](100, time.Minute), nil, nil)
	records.now = func() time.Time { return fixedNow }
	budgets := NewBudgetService(records)
	budgets.now = records.now
	analysis := NewAnalyticsService(records)
	analysis.now = records.now
	return &fixture{
		mem:      mem,
		client:   client,
		records:  records,
		budgets:  budgets,
		analysis: analysis,
		ctx:      core.WithOwner(context.Background(), "u1"),
	}
}

func (f *fixture) addExpense(t *testing.T, cents int64, category string, at time.Time) string {
	t.Helper()
	id, err := f.records.AddExpense(f.ctx, core.Record{
		Amount:      core.Money{Cents: cents},
		Category:    category,
		Description: "test " + category,
		OccurredAt:  at,
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	return id
}

func TestRecordServiceAnonymousReadsAreEmpty(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, 500, "Groceries", fixedNow)

	rs, err := f.records.Expenses(context.Background(), core.WindowAll, "")
	if err != nil {
		t.Fatalf("expected no error for anonymous read, got %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("anonymous read must be empty, got %d rows", len(rs))
	}

	_, err = f.records.AddExpense(context.Background(), core.Record{Amount: core.Money{Cents: 1}, Category: "Groceries", Description: "x", OccurredAt: fixedNow})
	if !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("anonymous write must fail with ErrUnauthenticated, got %v", err)
	}
}

func TestRecordServiceValidatesCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.AddExpense(f.ctx, core.Record{
		Amount: core.Money{Cents: 100}, Category: "Grocerys", Description: "milk", OccurredAt: fixedNow,
	})
	var ce *core.CategoryError
	if !errors.As(err, &ce) || ce.Suggestion != "Groceries" {
		t.Fatalf("expected suggestion Groceries, got %v", err)
	}
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" {
		t.Fatalf("expected category validation error, got %v", err)
	}

	id := f.addExpense(t, 100, "groceries", fixedNow)
	rs, _ := f.records.Expenses(f.ctx, core.WindowAll, "")
	if len(rs) != 1 || rs[0].ID != id || rs[0].Category != "Groceries" {
		t.Fatalf("category must be stored in canonical spelling, got %+v", rs)
	}
}

func TestRecordServiceCachesAndInvalidates(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, 500, "Groceries", fixedNow)

	if _, err := f.records.Expenses(f.ctx, core.WindowAll, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.records.Expenses(f.ctx, core.WindowAll, ""); err != nil {
		t.Fatal(err)
	}
	if got := f.client.queries.Load(); got != 1 {
		t.Fatalf("second read must hit the cache, store saw %d queries", got)
	}

	f.addExpense(t, 700, "Dining", fixedNow)
	rs, _ := f.records.Expenses(f.ctx, core.WindowAll, "")
	if len(rs) != 2 {
		t.Fatalf("write must invalidate cached reads, got %d rows", len(rs))
	}

	// a remote change event for the owner drops the cache as well
	before := f.client.queries.Load()
	_ = f.records.Notify(context.Background(), core.ChangeEvent{OwnerID: "u1"})
	_, _ = f.records.Expenses(f.ctx, core.WindowAll, "")
	if f.client.queries.Load() != before+1 {
		t.Fatalf("change event must invalidate the cache")
	}
}

func TestRecordServiceUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	id := f.addExpense(t, 500, "Groceries", fixedNow)

	err := f.records.UpdateExpense(f.ctx, id, core.Record{
		Amount: core.Money{Cents: 900}, Category: "Dining", Description: "dinner", OccurredAt: fixedNow,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	rs, _ := f.records.Expenses(f.ctx, core.WindowAll, "")
	if rs[0].Amount.Cents != 900 || rs[0].Category != "Dining" || rs[0].Description != "dinner" {
		t.Fatalf("unexpected row after update: %+v", rs[0])
	}

	if err := f.records.DeleteExpense(f.ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var se *store.StoreError
	if err := f.records.DeleteExpense(f.ctx, id); !errors.As(err, &se) || !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store not-found error, got %v", err)
	}
}

func TestRecordServiceIncomeValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.records.AddIncome(f.ctx, core.Record{Amount: core.Money{Cents: 1000}, Source: "Lottery", OccurredAt: fixedNow})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "source" {
		t.Fatalf("expected source validation error, got %v", err)
	}
	if _, err := f.records.AddIncome(f.ctx, core.Record{Amount: core.Money{Cents: 1000}, Source: "salary", OccurredAt: fixedNow}); err != nil {
		t.Fatalf("add income: %v", err)
	}
}

func TestBudgetStatuses(t *testing.T) {
	f := newFixture(t)
	if err := f.budgets.AddBudget(f.ctx, "Groceries", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("add budget: %v", err)
	}
	if err := f.budgets.AddBudget(f.ctx, "Travel", core.Money{Cents: 50000}); err != nil {
		t.Fatalf("add budget: %v", err)
	}
	f.addExpense(t, 40000, "Groceries", fixedNow.AddDate(0, 0, -2))
	f.addExpense(t, 70000, "Groceries", fixedNow.AddDate(0, 0, -1))
	// last month does not count
	f.addExpense(t, 99900, "Groceries", fixedNow.AddDate(0, -1, 0))
	// no budget for Dining
	f.addExpense(t, 1200, "Dining", fixedNow)

	statuses, err := f.budgets.Statuses(f.ctx)
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %+v", statuses)
	}
	byCat := map[string]core.BudgetStatus{}
	for _, s := range statuses {
		byCat[s.Category] = s
	}
	g := byCat["Groceries"]
	if g.Spent.Cents != 110000 || g.Remaining.Cents != -10000 || !g.IsOverBudget {
		t.Fatalf("unexpected groceries status %+v", g)
	}
	tr := byCat["Travel"]
	if tr.Spent.Cents != 0 || tr.IsOverBudget {
		t.Fatalf("unexpected travel status %+v", tr)
	}

	// sentinels never show up in expense listings
	rs, _ := f.records.Expenses(f.ctx, core.WindowAll, "")
	for _, r := range rs {
		if r.IsSentinel() {
			t.Fatalf("sentinel leaked into listing: %+v", r)
		}
	}
}

func TestBudgetDuplicateAndRemove(t *testing.T) {
	f := newFixture(t)
	if err := f.budgets.AddBudget(f.ctx, "Groceries", core.Money{Cents: 100}); err != nil {
		t.Fatalf("add: %v", err)
	}
	err := f.budgets.AddBudget(f.ctx, "groceries", core.Money{Cents: 200})
	if !errors.Is(err, core.ErrDuplicateBudget) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := f.budgets.AddBudget(f.ctx, "Travel", core.Money{Cents: 0}); !errors.Is(err, core.ErrInvalidCeiling) {
		t.Fatalf("expected invalid ceiling, got %v", err)
	}
	if err := f.budgets.AddBudget(f.ctx, "Travel", core.Money{Cents: 300}); err != nil {
		t.Fatalf("add travel: %v", err)
	}

	if err := f.budgets.RemoveBudget(f.ctx, "Groceries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	statuses, _ := f.budgets.Statuses(f.ctx)
	if len(statuses) != 1 || statuses[0].Category != "Travel" {
		t.Fatalf("removing one budget must keep the others, got %+v", statuses)
	}
	if err := f.budgets.RemoveBudget(f.ctx, "Groceries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExpenseWritesSkipBudgetMarkers(t *testing.T) {
	f := newFixture(t)
	if err := f.budgets.AddBudget(f.ctx, "Groceries", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("add budget: %v", err)
	}
	markers, err := f.records.List(f.ctx, core.KindBudget, store.Filter{})
	if err != nil || len(markers) != 1 {
		t.Fatalf("expected one marker, got %+v (%v)", markers, err)
	}
	id := markers[0].ID

	err = f.records.UpdateExpense(f.ctx, id, core.Record{
		Amount: core.Money{Cents: 500000}, Category: "Groceries", Description: "lunch", OccurredAt: fixedNow,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("updating a marker as an expense should be not found, got %v", err)
	}
	if err := f.records.DeleteExpense(f.ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleting a marker as an expense should be not found, got %v", err)
	}

	statuses, err := f.budgets.Statuses(f.ctx)
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Ceiling.Cents != 100000 || statuses[0].Spent.Cents != 0 {
		t.Fatalf("budget changed by expense writes: %+v", statuses)
	}
}

func TestAnalyticsCompute(t *testing.T) {
	f := newFixture(t)
	f.addExpense(t, 3000, "Groceries", fixedNow)
	f.addExpense(t, 1000, "Dining", fixedNow.AddDate(0, 0, -3))
	f.addExpense(t, 5000, "Travel", fixedNow.AddDate(0, -2, 0))
	f.addExpense(t, 8000, "Travel", fixedNow.AddDate(0, -7, 0))

	a, err := f.analysis.Compute(f.ctx, core.WindowWeek)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if a.Total.Cents != 4000 || a.Count != 2 || a.Average.Cents != 2000 {
		t.Fatalf("unexpected weekly figures %+v", a)
	}
	if !a.HasTop || a.Top.Name != "Groceries" {
		t.Fatalf("unexpected top category %+v", a.Top)
	}
	if len(a.Trend) != TrendMonths {
		t.Fatalf("expected %d trend buckets, got %d", TrendMonths, len(a.Trend))
	}
	var trendTotal int64
	for _, m := range a.Trend {
		trendTotal += m.Total.Cents
	}
	if trendTotal != 9000 {
		t.Fatalf("trend must exclude months outside the window, got %d", trendTotal)
	}
	if a.Trend[len(a.Trend)-1].Label != "Mar" {
		t.Fatalf("last bucket must be the current month, got %s", a.Trend[len(a.Trend)-1].Label)
	}
}

func TestIncomeSummaryTopCategories(t *testing.T) {
	f := newFixture(t)
	add := func(cents int64, category string) {
		t.Helper()
		if _, err := f.records.AddIncome(f.ctx, core.Record{Amount: core.Money{Cents: cents}, Source: "Salary", Category: category, OccurredAt: fixedNow}); err != nil {
			t.Fatalf("add income: %v", err)
		}
	}
	add(5000, "Salary")
	add(3000, "")
	add(2000, "Gifts")
	add(1000, "Dividends")

	s, err := f.analysis.Income(f.ctx, core.WindowAll)
	if err != nil {
		t.Fatalf("income: %v", err)
	}
	if s.Total.Cents != 11000 || s.Count != 4 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if len(s.TopCategories) != 3 || s.TopCategories[1].Name != core.UncategorizedLabel {
		t.Fatalf("unexpected top categories %+v", s.TopCategories)
	}
}

func TestRecurringProcessorCreatesDueExpenses(t *testing.T) {
	mem := memory.New()
	ctx := core.WithOwner(context.Background(), "u1")
	svc := NewRecurringService(mem, NewRecordService(mem, nil, nil, nil), nil)

	monthly := core.RecurringPayment{
		StartDate:   core.NewDate(2025, 1, 5),
		Every:       core.Monthly,
		Description: "Rent",
		Amount:      core.Money{Cents: 120000},
		Category:    "rent",
	}
	if _, err := svc.Create(ctx, monthly); err != nil {
		t.Fatalf("create: %v", err)
	}
	future := monthly
	future.StartDate = core.NewDate(2026, 1, 1)
	future.Description = "Later"
	if _, err := svc.Create(ctx, future); err != nil {
		t.Fatalf("create: %v", err)
	}

	p := NewRecurringProcessor(mem, mem, nil)
	n, err := p.ProcessDue(context.Background(), fixedNow)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 created expense, got %d (%v)", n, err)
	}
	n, _ = p.ProcessDue(context.Background(), fixedNow.Add(time.Hour))
	if n != 0 {
		t.Fatalf("same month must not run twice, got %d", n)
	}

	rs, _ := mem.Query(ctx, core.KindExpense, store.Filter{})
	if len(rs) != 1 || rs[0].Category != "Rent" || rs[0].Amount.Cents != 120000 {
		t.Fatalf("unexpected expenses %+v", rs)
	}

	list, _ := svc.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(list))
	}
	if anon, _ := svc.List(context.Background()); len(anon) != 0 {
		t.Fatalf("anonymous list must be empty")
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	var runs atomic.Int64
	s := NewScheduler(func(context.Context, time.Time) (int, error) {
		runs.Add(1)
		return 0, nil
	}, SchedulerConfig{Name: "test", Interval: 10 * time.Millisecond}, nil)

	if s.IsRunning() {
		t.Fatalf("must not run before Start")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrSchedulerRunning) {
		t.Fatalf("expected ErrSchedulerRunning, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("task ran %d times", runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("must not run after Stop")
	}
}
