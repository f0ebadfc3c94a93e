// Package core holds the domain types shared by every fintrack component.
//
// Amounts travel as integer cents. Decimal conversions go through
// shopspring/decimal so display and interest math never touch float64.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount keeps cents*100 inside int64.
var maxAmount = decimal.New(1<<63-1, -4)

// ParseDecimalToCents reads a user-typed positive amount such as "12.34" or
// "12,34" and rounds it half-up to whole cents ("12.345" is 1235). Signs,
// exponents, grouping and zero are rejected with ErrInvalidAmount.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if s == "" || strings.Count(s, ".") > 1 || strings.Trim(s, "0123456789.") != "" || s == "." {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	cents := MoneyFromDecimal(d).Cents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// MoneyFromDecimal rounds a major-unit decimal half away from zero to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// Format renders the amount with a currency symbol, thousands separators and
// two decimals, e.g. "€1,234.50" or "-₹12.00".
func (m Money) Format(symbol string) string {
	plain := m.Plain()
	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign, plain = "-", plain[1:]
	}
	whole, frac, _ := strings.Cut(plain, ".")

	grouped := make([]byte, 0, len(whole)+len(whole)/3)
	for i := range len(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, whole[i])
	}
	return sign + symbol + string(grouped) + "." + frac
}

// Plain renders the amount without symbol or grouping ("1234.50"), used by exports.
func (m Money) Plain() string {
	return m.Decimal().StringFixed(2)
}
