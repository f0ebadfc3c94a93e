package core

import (
	"slices"
	"strings"
	"time"
)

// BudgetStatus is derived on every read and never stored.
type BudgetStatus struct {
	Category     string
	Ceiling      Money
	Spent        Money
	Remaining    Money
	IsOverBudget bool
}

// PercentUsed returns spent as a percentage of the ceiling, capped at 100 for progress bars.
func (b BudgetStatus) PercentUsed() int {
	if b.Ceiling.Cents <= 0 {
		return 0
	}
	p := b.Spent.Cents * 100 / b.Ceiling.Cents
	if p > 100 {
		return 100
	}
	return int(p)
}

// DedupeMarkers keeps the first marker seen for each category, dropping rows without a ceiling.
func DedupeMarkers(markers []Record) []Record {
	seen := make(map[string]struct{}, len(markers))
	out := make([]Record, 0, len(markers))
	for _, m := range markers {
		if !m.HasCeiling() {
			continue
		}
		if _, ok := seen[m.Category]; ok {
			continue
		}
		seen[m.Category] = struct{}{}
		out = append(out, m)
	}
	return out
}

// CurrentMonth returns the half-open range [first of month, first of next month) containing now.
func CurrentMonth(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// Reconcile joins budget markers against the current month's expenses. Only
// categories with a marker produce a status; monthExpenses may still contain
// sentinels, they are ignored. Statuses come back ordered by category.
func Reconcile(markers []Record, monthExpenses []Record) []BudgetStatus {
	spent := SumByCategory(monthExpenses)
	deduped := DedupeMarkers(markers)
	out := make([]BudgetStatus, 0, len(deduped))
	for _, m := range deduped {
		s := spent[m.Category]
		out = append(out, BudgetStatus{
			Category:     m.Category,
			Ceiling:      *m.Ceiling,
			Spent:        s,
			Remaining:    m.Ceiling.Sub(s),
			IsOverBudget: s.Cents > m.Ceiling.Cents,
		})
	}
	slices.SortStableFunc(out, func(a, b BudgetStatus) int {
		return strings.Compare(a.Category, b.Category)
	})
	return out
}

// HasBudgetFor reports whether a marker for category exists, ignoring case.
func HasBudgetFor(markers []Record, category string) bool {
	want := strings.TrimSpace(category)
	for _, m := range markers {
		if m.HasCeiling() && strings.EqualFold(m.Category, want) {
			return true
		}
	}
	return false
}
