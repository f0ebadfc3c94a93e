package core

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var ErrNonPositiveInput = errors.New("please enter valid positive numbers")

var hundred = decimal.NewFromInt(100)

// InterestInput holds calculator inputs. RatePercent is the yearly rate in percent,
// Years may be fractional, PerYear is the compounding frequency.
type InterestInput struct {
	Principal   decimal.Decimal
	RatePercent decimal.Decimal
	Years       decimal.Decimal
	PerYear     int
}

type InterestResult struct {
	Interest    Money
	FutureValue Money
}

func (in InterestInput) validate() error {
	if !in.Principal.IsPositive() || !in.RatePercent.IsPositive() || !in.Years.IsPositive() {
		return ErrNonPositiveInput
	}
	return nil
}

// SimpleInterest computes p·r·t.
func SimpleInterest(in InterestInput) (InterestResult, error) {
	if err := in.validate(); err != nil {
		return InterestResult{}, err
	}
	r := in.RatePercent.Div(hundred)
	interest := in.Principal.Mul(r).Mul(in.Years)
	return InterestResult{
		Interest:    MoneyFromDecimal(interest),
		FutureValue: MoneyFromDecimal(in.Principal.Add(interest)),
	}, nil
}

// CompoundInterest computes p·(1 + r/n)^(n·t). Integer exponents stay in decimal;
// fractional ones fall back to float math for the growth factor only.
func CompoundInterest(in InterestInput) (InterestResult, error) {
	if err := in.validate(); err != nil {
		return InterestResult{}, err
	}
	if in.PerYear <= 0 {
		return InterestResult{}, ErrNonPositiveInput
	}
	n := decimal.NewFromInt(int64(in.PerYear))
	base := decimal.NewFromInt(1).Add(in.RatePercent.Div(hundred).Div(n))
	exp := n.Mul(in.Years)

	var factor decimal.Decimal
	if exp.Equal(exp.Truncate(0)) {
		factor = base.Pow(exp)
	} else {
		b, _ := base.Float64()
		e, _ := exp.Float64()
		factor = decimal.NewFromFloat(math.Pow(b, e))
	}
	total := in.Principal.Mul(factor)
	return InterestResult{
		Interest:    MoneyFromDecimal(total.Sub(in.Principal)),
		FutureValue: MoneyFromDecimal(total),
	}, nil
}
