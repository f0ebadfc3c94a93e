package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSimpleInterest(t *testing.T) {
	res, err := SimpleInterest(InterestInput{Principal: d("1000"), RatePercent: d("5"), Years: d("2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Interest.Cents != 10000 || res.FutureValue.Cents != 110000 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCompoundInterest(t *testing.T) {
	cases := []struct {
		in       InterestInput
		interest int64
	}{
		// 1000 * 1.05^2 = 1102.50
		{InterestInput{Principal: d("1000"), RatePercent: d("5"), Years: d("2"), PerYear: 1}, 10250},
		// 1000 * 1.025^4 = 1103.8128...
		{InterestInput{Principal: d("1000"), RatePercent: d("5"), Years: d("2"), PerYear: 2}, 10381},
		// 1000 * 1.1^0.5 = 1048.8088...
		{InterestInput{Principal: d("1000"), RatePercent: d("10"), Years: d("0.5"), PerYear: 1}, 4881},
	}
	for i, tc := range cases {
		res, err := CompoundInterest(tc.in)
		if err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if res.Interest.Cents != tc.interest {
			t.Fatalf("case %d: expected %d, got %d", i, tc.interest, res.Interest.Cents)
		}
	}
}

func TestInterestRejectsNonPositive(t *testing.T) {
	bad := []InterestInput{
		{Principal: d("0"), RatePercent: d("5"), Years: d("1"), PerYear: 1},
		{Principal: d("100"), RatePercent: d("-1"), Years: d("1"), PerYear: 1},
		{Principal: d("100"), RatePercent: d("5"), Years: d("0"), PerYear: 1},
	}
	for i, in := range bad {
		if _, err := SimpleInterest(in); !errors.Is(err, ErrNonPositiveInput) {
			t.Fatalf("case %d: expected ErrNonPositiveInput, got %v", i, err)
		}
	}
	if _, err := CompoundInterest(InterestInput{Principal: d("1"), RatePercent: d("1"), Years: d("1")}); err == nil {
		t.Fatalf("expected error for zero compounding frequency")
	}
}
