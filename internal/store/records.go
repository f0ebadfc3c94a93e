package store

import (
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Table names the physical table backing a kind. Budget markers live in the expense table.
func Table(kind core.RecordKind) (string, error) {
	switch kind {
	case core.KindExpense, core.KindBudget:
		return "expenses", nil
	case core.KindIncome:
		return "incomes", nil
	default:
		return "", core.ErrUnknownKind
	}
}

// Match reports whether r passes the filter. Budget queries additionally require a ceiling.
func (f Filter) Match(kind core.RecordKind, r core.Record) bool {
	if kind == core.KindBudget && !r.HasCeiling() {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && r.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.OccurredAt.Before(f.To) {
		return false
	}
	return true
}

// Apply orders rs by date (ties by id) and applies the limit.
func (f Filter) Apply(rs []core.Record) []core.Record {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			if f.Newest {
				return a.OccurredAt.After(b.OccurredAt)
			}
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.ID < b.ID
	})
	if f.Limit > 0 && len(rs) > f.Limit {
		rs = rs[:f.Limit]
	}
	return rs
}

// PrepareInsert checks the kind and normalizes the row for storage. Budget
// inserts become sentinel markers; a zero date becomes now.
func PrepareInsert(kind core.RecordKind, r core.Record, now time.Time) (core.Record, error) {
	if !kind.IsValid() {
		return core.Record{}, core.ErrUnknownKind
	}
	if r.OccurredAt.IsZero() {
		r.OccurredAt = now
	}
	r.OccurredAt = r.OccurredAt.UTC()
	switch kind {
	case core.KindBudget:
		if err := r.ValidateBudget(); err != nil {
			return core.Record{}, err
		}
		r = core.NewBudgetMarker(r.Category, *r.Ceiling, r.OccurredAt)
	case core.KindIncome:
		r.Kind = core.KindIncome
		r.Ceiling = nil
	default:
		r.Kind = core.KindExpense
	}
	if r.Amount.Cents < 0 {
		return core.Record{}, core.ErrInvalidAmount
	}
	r.Category = strings.TrimSpace(r.Category)
	return r, nil
}

// ApplyPatch copies the set fields of p onto r.
func ApplyPatch(r *core.Record, p Patch) {
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Category != nil {
		r.Category = strings.TrimSpace(*p.Category)
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Source != nil {
		r.Source = *p.Source
	}
	if p.OccurredAt != nil {
		r.OccurredAt = p.OccurredAt.UTC()
	}
	if p.Ceiling != nil {
		c := *p.Ceiling
		r.Ceiling = &c
	}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil &&
		p.Source == nil && p.OccurredAt == nil && p.Ceiling == nil
}
