package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	maxBodyBytes = 64 << 10

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// FormBody holds submitted fields. htmx posts url-encoded forms; JSON objects
// are accepted too and flattened into the same values.
type FormBody struct {
	values url.Values
	json   bool
}

// ReadForm consumes r.Body, up to maxBodyBytes.
func ReadForm(r *http.Request) (*FormBody, error) {
	b := &FormBody{values: url.Values{}}
	if r.Body == nil {
		return b, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0:
		return b, nil
	case raw[0] == '{' || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		for k, v := range obj {
			b.values.Set(k, scalarString(v))
		}
		b.json = true
	default:
		if b.values, err = url.ParseQuery(string(raw)); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Get returns the sanitized value of key, or "".
func (b *FormBody) Get(key string) string {
	return sanitizeInput(b.values.Get(key))
}

// Bool reports whether a checkbox-style field is set.
func (b *FormBody) Bool(key string) bool {
	switch strings.ToLower(b.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (b *FormBody) IsJSON() bool { return b.json }

// scalarString renders JSON scalars the way a form would have sent them.
// Objects and arrays become "".
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// ParseFormOrFail reads the body, or builds the 400 response for a malformed one.
func ParseFormOrFail(r *http.Request) (*FormBody, *HXResponse) {
	b, err := ReadForm(r)
	if err != nil {
		return nil, BadRequest("Invalid request format")
	}
	return b, nil
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// ParseAmount converts a user-entered decimal into money, tagging failures with field.
func ParseAmount(field, value string) (core.Money, error) {
	if value == "" {
		return core.Money{}, &core.ValidationError{Field: field, Err: core.ErrInvalidAmount}
	}
	cents, err := core.ParseDecimalToCents(value)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Err: core.ErrInvalidAmount}
	}
	return core.Money{Cents: cents}, nil
}

// ParseDateTime combines a date and an optional time of day in loc.
// An empty date means now.
func ParseDateTime(dateStr, timeStr string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if dateStr == "" {
		return now, nil
	}
	d, err := time.ParseInLocation(dateLayout, dateStr, loc)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: "date", Err: errors.New("invalid date")}
	}
	if timeStr == "" {
		return d, nil
	}
	tod, err := time.Parse(timeLayout, timeStr)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: "time", Err: errors.New("invalid time")}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// ParseDate parses a calendar date; empty input yields the zero Date.
func ParseDate(field, s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Err: errors.New("invalid date")}
	}
	return core.Date{Time: t}, nil
}

// Filters are the window and category selection of a list page.
type Filters struct {
	Window   core.TimeWindow
	Category string
}

// ParseFilters reads window and category from a query string. Unknown windows
// fall back to all time.
func ParseFilters(q url.Values) Filters {
	w, err := core.ParseTimeWindow(sanitizeInput(q.Get("window")))
	if err != nil {
		w = core.WindowAll
	}
	return Filters{Window: w, Category: sanitizeInput(q.Get("category"))}
}

// InterestRequest is a parsed calculator submission. PerYear 0 selects simple interest.
type InterestRequest struct {
	Input core.InterestInput
	Mode  string
}

var compoundingPerYear = map[string]int{
	"simple":    0,
	"annually":  1,
	"quarterly": 4,
	"monthly":   12,
	"daily":     365,
}

func ParseInterest(p *FormBody) (InterestRequest, error) {
	in := core.InterestInput{}
	for _, f := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"principal", &in.Principal},
		{"rate", &in.RatePercent},
		{"years", &in.Years},
	} {
		d, err := decimal.NewFromString(p.Get(f.name))
		if err != nil {
			return InterestRequest{}, &core.ValidationError{Field: f.name, Err: core.ErrNonPositiveInput}
		}
		*f.dst = d
	}
	mode := p.Get("compounding")
	if mode == "" {
		mode = "simple"
	}
	n, ok := compoundingPerYear[mode]
	if !ok {
		return InterestRequest{}, &core.ValidationError{Field: "compounding", Err: errors.New("unknown compounding")}
	}
	in.PerYear = n
	return InterestRequest{Input: in, Mode: mode}, nil
}
