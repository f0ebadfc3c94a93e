package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	valid := map[string]int64{
		"1":        100,
		"1.0":      100,
		"1.23":     123,
		"1,23":     123,
		"0.01":     1,
		".5":       50,
		"1.005":    101,
		"12.344":   1234,
		" 2.50 ":   250,
		"99999.99": 9999999,
	}
	for in, want := range valid {
		got, err := ParseDecimalToCents(in)
		if err != nil || got != want {
			t.Errorf("ParseDecimalToCents(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	for _, in := range []string{"", ".", "0", "0.004", "-1", "+1", "1e3", "1.2.3", "1,234.50", "abc", "99999999999999999"} {
		if _, err := ParseDecimalToCents(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseDecimalToCents(%q): expected ErrInvalidAmount, got %v", in, err)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		m      Money
		symbol string
		want   string
	}{
		{Money{}, "€", "€0.00"},
		{Money{Cents: 5}, "€", "€0.05"},
		{Money{Cents: 99999}, "", "999.99"},
		{Money{Cents: 123450}, "₹", "₹1,234.50"},
		{Money{Cents: 100000000}, "$", "$1,000,000.00"},
		{Money{Cents: -1200}, "£", "-£12.00"},
	}
	for _, tc := range cases {
		if got := tc.m.Format(tc.symbol); got != tc.want {
			t.Errorf("Format(%d) = %q, want %q", tc.m.Cents, got, tc.want)
		}
	}
}

func TestMoneyDecimalConversions(t *testing.T) {
	if got := (Money{Cents: 123456}).Plain(); got != "1234.56" {
		t.Fatalf("Plain = %s", got)
	}
	if got := (Money{Cents: -7}).Plain(); got != "-0.07" {
		t.Fatalf("Plain = %s", got)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("10.005")); got.Cents != 1001 {
		t.Fatalf("expected 1001 cents, got %d", got.Cents)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("-10.005")); got.Cents != -1001 {
		t.Fatalf("expected -1001 cents, got %d", got.Cents)
	}
}
