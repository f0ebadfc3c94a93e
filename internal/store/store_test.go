package store

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestStoreErrorMessages(t *testing.T) {
	err := Wrap("save", core.KindExpense, errors.New("disk full"))
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %T", err)
	}
	if se.UserMessage() != "could not save expense records" {
		t.Fatalf("unexpected message %q", se.UserMessage())
	}
	if Wrap("load", core.KindIncome, err) != err {
		t.Fatalf("wrapping twice should keep the original error")
	}
	if Wrap("load", core.KindIncome, nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestPrepareInsert(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := core.Money{Cents: 500}
	r, err := PrepareInsert(core.KindBudget, core.Record{Category: " Dining ", Ceiling: &c}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.IsSentinel() || r.Kind != core.KindExpense || r.Category != "Dining" || !r.OccurredAt.Equal(now) {
		t.Fatalf("budget insert should become a sentinel, got %+v", r)
	}
	if _, err := PrepareInsert("loan", core.Record{}, now); !errors.Is(err, core.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := PrepareInsert(core.KindExpense, core.Record{Amount: core.Money{Cents: -1}}, now); err == nil {
		t.Fatalf("negative amounts must be rejected")
	}
}

func TestFilterMatch(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	f := Filter{Category: "A", From: day(2), To: day(5)}
	cases := []struct {
		r    core.Record
		kind core.RecordKind
		want bool
	}{
		{core.Record{Category: "A", OccurredAt: day(2)}, core.KindExpense, true},
		{core.Record{Category: "A", OccurredAt: day(5)}, core.KindExpense, false},
		{core.Record{Category: "B", OccurredAt: day(3)}, core.KindExpense, false},
		{core.Record{Category: "A", OccurredAt: day(3)}, core.KindBudget, false},
	}
	for i, tc := range cases {
		if got := f.Match(tc.kind, tc.r); got != tc.want {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}
