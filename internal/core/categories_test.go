package core

import (
	"errors"
	"testing"
)

func TestAllowListCanonical(t *testing.T) {
	al := NewAllowList(DefaultExpenseCategories)
	got, err := al.Canonical("  groceries")
	if err != nil || got != "Groceries" {
		t.Fatalf("expected Groceries, got %q %v", got, err)
	}

	_, err = al.Canonical("Grocries")
	var ce *CategoryError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CategoryError, got %v", err)
	}
	if ce.Suggestion != "Groceries" {
		t.Fatalf("expected suggestion Groceries, got %q", ce.Suggestion)
	}
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("CategoryError should unwrap to ErrUnknownCategory")
	}

	_, err = al.Canonical("Spaceships")
	if !errors.As(err, &ce) || ce.Suggestion != "" {
		t.Fatalf("distant label should have no suggestion, got %v", err)
	}
	if _, err := al.Canonical(""); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestNewAllowListDedupes(t *testing.T) {
	al := NewAllowList([]string{"b", "A", "a", " ", "B "})
	items := al.Items()
	if len(items) != 2 || items[0] != "A" || items[1] != "b" {
		t.Fatalf("unexpected items %v", items)
	}
}
