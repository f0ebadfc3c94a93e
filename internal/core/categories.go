package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var ErrUnknownCategory = errors.New("unknown category")

var (
	DefaultExpenseCategories = []string{
		"Groceries", "Entertainment", "Transportation", "Utilities", "Healthcare", "Dining",
		"Shopping", "Education", "Housing", "Travel", "Rent", "Other",
	}
	DefaultIncomeSources    = []string{"Salary", "Freelance", "Investment", "Other"}
	DefaultIncomeCategories = []string{"Salary", "Investments", "Business", "Rental", "Dividends", "Gifts", "Other"}
)

// CategoryError rejects a label that is not on an allow-list, with the closest match if any.
type CategoryError struct {
	Value      string
	Suggestion string
}

func (e *CategoryError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown category %q (did you mean %q?)", e.Value, e.Suggestion)
	}
	return fmt.Sprintf("unknown category %q", e.Value)
}

func (e *CategoryError) Unwrap() error { return ErrUnknownCategory }

// AllowList is an immutable set of accepted labels. Matching ignores case and
// surrounding space; Canonical returns the label as it is spelled in the list.
type AllowList struct {
	items []string
	index map[string]string
}

// NewAllowList trims, dedupes and sorts items. Empty entries are skipped.
func NewAllowList(items []string) *AllowList {
	al := &AllowList{index: make(map[string]string, len(items))}
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := al.index[key]; ok {
			continue
		}
		al.index[key] = it
		al.items = append(al.items, it)
	}
	sort.Strings(al.items)
	return al
}

// Items returns a copy of the labels in sorted order.
func (al *AllowList) Items() []string {
	out := make([]string, len(al.items))
	copy(out, al.items)
	return out
}

func (al *AllowList) Len() int { return len(al.items) }

func (al *AllowList) Contains(s string) bool {
	_, ok := al.index[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Canonical resolves s to its allow-list spelling or returns a *CategoryError.
func (al *AllowList) Canonical(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyCategory
	}
	if c, ok := al.index[strings.ToLower(s)]; ok {
		return c, nil
	}
	return "", &CategoryError{Value: s, Suggestion: al.Suggest(s)}
}

// Suggest returns the closest label by edit distance, or "" when nothing is close.
// A label is close when at most a third of its runes (minimum 2) need changing.
func (al *AllowList) Suggest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, it := range al.items {
		d := levenshtein.ComputeDistance(s, strings.ToLower(it))
		if bestDist == -1 || d < bestDist {
			best, bestDist = it, d
		}
	}
	limit := len([]rune(s)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}
