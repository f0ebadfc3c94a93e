package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// TrendMonths is the length of the spending trend on the analytics page.
const TrendMonths = 6

// TopIncomeCategories is how many income categories the income page ranks.
const TopIncomeCategories = 3

// ExpenseSummary backs the stat cards of the expenses page.
type ExpenseSummary struct {
	Records []core.Record
	Total   core.Money
	Average core.Money
	Count   int
}

type IncomeSummary struct {
	Records       []core.Record
	Total         core.Money
	Count         int
	TopCategories []core.CategoryAmount
}

type Analytics struct {
	Window    core.TimeWindow
	Total     core.Money
	Count     int
	Average   core.Money
	Top       core.CategoryAmount
	HasTop    bool
	Breakdown []core.CategoryAmount
	Trend     []core.MonthTotal
}

type AnalyticsService struct {
	records *RecordService
	now     func() time.Time
}

func NewAnalyticsService(records *RecordService) *AnalyticsService {
	return &AnalyticsService{records: records, now: time.Now}
}

func Summarize(records []core.Record) ExpenseSummary {
	spent := core.RealExpenses(records)
	return ExpenseSummary{
		Records: spent,
		Total:   core.Total(spent),
		Average: core.DailyAverage(spent),
		Count:   core.Count(spent),
	}
}

func (s *AnalyticsService) Expenses(ctx context.Context, window core.TimeWindow, category string) (ExpenseSummary, error) {
	rs, err := s.records.Expenses(ctx, window, category)
	if err != nil {
		return ExpenseSummary{}, err
	}
	return Summarize(rs), nil
}

func (s *AnalyticsService) Income(ctx context.Context, window core.TimeWindow) (IncomeSummary, error) {
	rs, err := s.records.Incomes(ctx, window)
	if err != nil {
		return IncomeSummary{}, err
	}
	top := core.SortedByAmount(core.IncomeByCategory(rs))
	if len(top) > TopIncomeCategories {
		top = top[:TopIncomeCategories]
	}
	var total core.Money
	for _, r := range rs {
		total = total.Add(r.Amount)
	}
	return IncomeSummary{Records: rs, Total: total, Count: len(rs), TopCategories: top}, nil
}

// Compute gathers the analytics page: figures over the window plus a
// six-month trend that ignores the window.
func (s *AnalyticsService) Compute(ctx context.Context, window core.TimeWindow) (Analytics, error) {
	now := s.now()
	trendStart, _ := core.CurrentMonth(now)
	trendStart = trendStart.AddDate(0, -(TrendMonths - 1), 0)

	var windowed, recent []core.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		windowed, err = s.records.Expenses(gctx, window, "")
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.records.List(gctx, core.KindExpense, store.Filter{From: trendStart})
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}

	a := Analytics{
		Window:    window,
		Total:     core.Total(windowed),
		Count:     core.Count(windowed),
		Average:   core.DailyAverage(windowed),
		Breakdown: core.SortedByAmount(core.SumByCategory(windowed)),
		Trend:     core.MonthlyTotals(recent, TrendMonths, now),
	}
	a.Top, a.HasTop = core.TopCategory(windowed)
	return a, nil
}
