// Package services holds the application logic between the HTTP handlers and
// the record store: cached reads, validated writes, budget and analytics
// aggregation, and the recurring payment processor.
package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// DueChecker decides whether a recurring template should produce a payment now.
// There is one checker per repetition type.
type DueChecker interface {
	IsDue(lastExecution, now time.Time, start core.Date) bool
}

type DailyChecker struct{}

// IsDue is true once per calendar day.
func (DailyChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return !sameDay(lastExecution, now)
}

type WeeklyChecker struct{}

// IsDue is true when at least seven calendar days passed since the last run.
func (WeeklyChecker) IsDue(lastExecution, now time.Time, _ core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	return daysBetween(lastExecution, now) >= 7
}

type MonthlyChecker struct{}

// IsDue is true once per month, from the start date's day on. Days past the
// end of a short month fall on its last day.
func (MonthlyChecker) IsDue(lastExecution, now time.Time, start core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now.Year(), now.Month(), start.Day())
}

type YearlyChecker struct{}

// IsDue is true once per year, from the start date's month and day on.
func (YearlyChecker) IsDue(lastExecution, now time.Time, start core.Date) bool {
	if lastExecution.IsZero() {
		return true
	}
	if lastExecution.Year() == now.Year() {
		return false
	}
	target := time.Month(start.Month())
	switch {
	case now.Month() < target:
		return false
	case now.Month() > target:
		return true
	default:
		return now.Day() >= clampDay(now.Year(), now.Month(), start.Day())
	}
}

var checkers = map[core.RepetitionTypes]DueChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

func CheckerFor(every core.RepetitionTypes) (DueChecker, error) {
	c, ok := checkers[every]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", every)
	}
	return c, nil
}

// IsDue combines the template's active range with its repetition checker.
func IsDue(rp core.RecurringPayment, now time.Time) (bool, error) {
	if !rp.ActiveOn(now) {
		return false, nil
	}
	c, err := CheckerFor(rp.Every)
	if err != nil {
		return false, err
	}
	return c.IsDue(rp.LastExecution, now, rp.StartDate), nil
}

// clampDay returns day, or the last day of the month when the month is shorter.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
