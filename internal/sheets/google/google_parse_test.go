package google

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestRecordRowLayout(t *testing.T) {
	r := core.Record{
		ID:          "r-1",
		OwnerID:     "u-1",
		Kind:        core.KindIncome,
		Amount:      core.Money{Cents: 123456},
		Category:    "Salary",
		Source:      "Employer",
		Description: "March",
		OccurredAt:  time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	got := toStrings(recordRow(r))
	want := []string{"r-1", "2025-03-01 09:30", "income", "Salary", "Employer", "March", "1234.56", "u-1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchingRows(t *testing.T) {
	values := [][]any{
		{"ID", "Date"},
		{"a", "2025-01-01"},
		{},
		{"b"},
		{" a ", "dup"},
	}
	cases := []struct {
		id   string
		want []int64
	}{
		{"a", []int64{4, 1}},
		{"b", []int64{3}},
		{"missing", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := matchingRows(values, tc.id)
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.id, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: got %v, want %v", tc.id, got, tc.want)
			}
		}
	}
}
