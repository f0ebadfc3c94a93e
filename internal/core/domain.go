package core

import (
	"errors"
	"strings"
	"time"
)

// SentinelDescription marks a zero-amount expense row that only declares a budget ceiling.
const SentinelDescription = "Budget category created"

const (
	KindExpense RecordKind = "expense"
	KindIncome  RecordKind = "income"
	KindBudget  RecordKind = "budget"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

type (
	RecordKind      string
	RepetitionTypes string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64 `json:"cents"`
	}

	// Record is a flat row of the record store. Expense and income rows share it;
	// Source is only set on income, Ceiling only on budget markers.
	Record struct {
		ID          string     `json:"id"`
		OwnerID     string     `json:"owner_id"`
		Kind        RecordKind `json:"kind"`
		Amount      Money      `json:"amount"`
		Category    string     `json:"category,omitempty"`
		Description string     `json:"description,omitempty"`
		Source      string     `json:"source,omitempty"`
		OccurredAt  time.Time  `json:"occurred_at"`
		Ceiling     *Money     `json:"ceiling,omitempty"`
	}

	RecurringPayment struct {
		ID            string
		OwnerID       string
		StartDate     Date
		EndDate       Date
		Every         RepetitionTypes
		Description   string
		Amount        Money
		Category      string
		LastExecution time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCeiling   = errors.New("budget must be greater than zero")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptySource      = errors.New("empty source")
	ErrFutureDate       = errors.New("date is in the future")
	ErrDuplicateBudget  = errors.New("a budget for this category already exists")
	ErrUnknownKind      = errors.New("unknown record kind")
	ErrUnauthenticated  = errors.New("not authenticated")
)

// ValidationError ties a rejected form field to the reason it was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func (k RecordKind) IsValid() bool {
	switch k {
	case KindExpense, KindIncome, KindBudget:
		return true
	default:
		return false
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// NewBudgetMarker builds the sentinel row that declares a category ceiling.
func NewBudgetMarker(category string, ceiling Money, at time.Time) Record {
	c := ceiling
	return Record{
		Kind:        KindExpense,
		Category:    strings.TrimSpace(category),
		Description: SentinelDescription,
		OccurredAt:  at,
		Ceiling:     &c,
	}
}

// IsSentinel reports whether the row is a budget marker rather than real spending.
func (r Record) IsSentinel() bool {
	return r.Amount.Cents == 0 && r.Description == SentinelDescription
}

// HasCeiling reports whether the row carries a budget ceiling.
func (r Record) HasCeiling() bool {
	return r.Ceiling != nil
}

// ValidateExpense checks a user-submitted expense before it reaches the store.
func (r Record) ValidateExpense(now time.Time) error {
	if len(strings.TrimSpace(r.Description)) == 0 {
		return invalid("description", ErrEmptyDescription)
	}
	if len(r.Description) > 200 {
		return invalid("description", errors.New("description too long (max 200 characters)"))
	}
	if err := r.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if strings.TrimSpace(r.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if r.OccurredAt.IsZero() {
		return invalid("date", errors.New("date cannot be zero"))
	}
	// one day of slack covers client clocks ahead of the server
	if r.OccurredAt.After(now.Add(24 * time.Hour)) {
		return invalid("date", ErrFutureDate)
	}
	return nil
}

func (r Record) ValidateIncome() error {
	if strings.TrimSpace(r.Source) == "" {
		return invalid("source", ErrEmptySource)
	}
	if err := r.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if r.OccurredAt.IsZero() {
		return invalid("date", errors.New("date cannot be zero"))
	}
	if len(r.Description) > 200 {
		return invalid("description", errors.New("description too long (max 200 characters)"))
	}
	return nil
}

func (r Record) ValidateBudget() error {
	if strings.TrimSpace(r.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	if r.Ceiling == nil || r.Ceiling.Cents <= 0 {
		return invalid("budget", ErrInvalidCeiling)
	}
	return nil
}

func (rp RecurringPayment) Validate() error {
	if err := rp.StartDate.Validate(); err != nil {
		return invalid("start_date", err)
	}

	if !rp.EndDate.IsZero() {
		if err := rp.EndDate.Validate(); err != nil {
			return invalid("end_date", err)
		}
		if rp.EndDate.Before(rp.StartDate.Time) {
			return invalid("end_date", errors.New("end date must be after start date"))
		}
	}

	switch rp.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return invalid("every", errors.New("invalid repetition type"))
	}

	if len(strings.TrimSpace(rp.Description)) == 0 {
		return invalid("description", ErrEmptyDescription)
	}
	if len(rp.Description) > 200 {
		return invalid("description", errors.New("description too long (max 200 characters)"))
	}
	if err := rp.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if strings.TrimSpace(rp.Category) == "" {
		return invalid("category", ErrEmptyCategory)
	}
	return nil
}

// ActiveOn reports whether the template still produces payments on the given day.
func (rp RecurringPayment) ActiveOn(now time.Time) bool {
	if now.Before(rp.StartDate.Time) {
		return false
	}
	if !rp.EndDate.IsZero() && now.After(rp.EndDate.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
