package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/store"
)

type navItem struct {
	Name  string
	Label string
	Path  string
}

var navigation = []navItem{
	{"expenses", "Expenses", "/"},
	{"transactions", "Transactions", "/transactions"},
	{"budgets", "Budgets", "/budgets"},
	{"income", "Income", "/income"},
	{"analytics", "Analytics", "/analytics"},
	{"recurring", "Recurring", "/recurring"},
	{"interest", "Interest", "/interest"},
}

var windows = []core.TimeWindow{core.WindowAll, core.WindowToday, core.WindowWeek, core.WindowMonth}

// page is the root value of every template execution. Fragments receive it too
// so they can reach the owner's currency symbol.
type page struct {
	Title    string
	Active   string
	Nav      []navItem
	Signed   bool
	Username string
	Settings core.Settings
	Symbol   string
	Now      time.Time
	Data     any
	// Error replaces the page content with a banner when loading failed.
	Error string
}

// DisplayName falls back to the login name.
func (p page) DisplayName() string {
	if p.Settings.DisplayName != "" {
		return p.Settings.DisplayName
	}
	return p.Username
}

// templateFuncs renders instants in loc, the zone forms are parsed in.
func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money, symbol string) string { return m.Format(symbol) },
		"dateTime": func(t time.Time) string {
			return t.In(loc).Format("02 Jan 2006 15:04")
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Format("02 Jan 2006")
		},
		"inputDate":   func(t time.Time) string { return t.In(loc).Format(dateLayout) },
		"inputTime":   func(t time.Time) string { return t.In(loc).Format(timeLayout) },
		"windowLabel": windowLabel,
		"query":       url.QueryEscape,
	}
}

func windowLabel(w core.TimeWindow) string {
	switch w {
	case core.WindowToday:
		return "Today"
	case core.WindowWeek:
		return "Last 7 days"
	case core.WindowMonth:
		return "Last month"
	default:
		return "All time"
	}
}

// newPage resolves the caller's identity and display settings.
func (s *Server) newPage(r *http.Request, active, title string, data any) page {
	p := page{
		Title:    title,
		Active:   active,
		Nav:      navigation,
		Settings: core.DefaultSettings(),
		Now:      s.now().In(s.deps.Location),
		Data:     data,
	}
	if owner, ok := core.OwnerFromContext(r.Context()); ok {
		p.Signed = true
		p.Username = auth.UsernameFromContext(r.Context())
		if u, err := s.deps.Auth.Profile(r.Context(), owner); err == nil {
			p.Settings = u.Settings
		} else {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Profile lookup failed", "owner_id", owner, "error", err)
		}
	}
	p.Symbol = p.Settings.Symbol()
	return p
}

// render executes a named template into a buffer so a failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, p); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			applog.FieldComponent, applog.ComponentTemplate,
			"template", name,
			"error", err)
		ServerError("Failed to render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// loadStatus records a failed page load on p and picks the status to send.
func (s *Server) loadStatus(r *http.Request, p *page, op string, err error) int {
	if err == nil {
		return http.StatusOK
	}
	ctx := r.Context()
	applog.FromContext(ctx).ErrorContext(ctx, "Page data load failed", applog.FieldOperation, op, "error", err)
	var se *store.StoreError
	if errors.As(err, &se) {
		s.metrics.storeErrors.Add(1)
		p.Error = capitalize(se.UserMessage()) + ". Please retry."
		return http.StatusServiceUnavailable
	}
	p.Error = "Something went wrong while loading this page. Please retry."
	return http.StatusInternalServerError
}

// redirect navigates HTMX callers with HX-Redirect and plain forms with 303.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

var fieldLabels = map[string]string{
	"amount":       "Amount",
	"budget":       "Budget",
	"category":     "Category",
	"date":         "Date",
	"time":         "Time",
	"description":  "Description",
	"source":       "Source",
	"start_date":   "Start date",
	"end_date":     "End date",
	"every":        "Repeat",
	"display_name": "Display name",
	"currency":     "Currency",
	"principal":    "Principal",
	"rate":         "Rate",
	"years":        "Years",
	"compounding":  "Compounding",
}

func validationMessage(ve *core.ValidationError) string {
	label, ok := fieldLabels[ve.Field]
	if !ok {
		label = ve.Field
	}
	return label + ": " + capitalize(ve.Err.Error())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fail maps a service error to a response: validation problems become 422
// fragments, store failures 404/503, anything else 500. Every error response
// also raises an error notification.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var ve *core.ValidationError
	var ce *core.CategoryError
	var se *store.StoreError
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		w.Header().Set("HX-Redirect", auth.LoginPath)
		ErrorFragment(http.StatusUnauthorized, "Please log in again.").Write(w)

	case errors.As(err, &ve):
		s.metrics.validationErrors.Add(1)
		Unprocessable(validationMessage(ve)).Write(w)

	case errors.As(err, &ce):
		s.metrics.validationErrors.Add(1)
		Unprocessable(capitalize(ce.Error())).Write(w)

	case errors.Is(err, core.ErrNonPositiveInput):
		s.metrics.validationErrors.Add(1)
		Unprocessable("Please enter valid positive numbers").Write(w)

	case errors.Is(err, store.ErrNotFound):
		NotFound("Not found. It may have been deleted elsewhere.").Write(w)

	case errors.As(err, &se):
		s.metrics.storeErrors.Add(1)
		logger.ErrorContext(ctx, "Store operation failed",
			applog.FieldOperation, op,
			applog.FieldErrorType, "store",
			"error", err)
		Unavailable(capitalize(se.UserMessage())).Write(w)

	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.storeErrors.Add(1)
		logger.ErrorContext(ctx, "Operation timed out", applog.FieldOperation, op, "error", err)
		Unavailable("The service is slow to respond. Please retry.").Write(w)

	default:
		logger.ErrorContext(ctx, "Request failed", applog.FieldOperation, op, "error", err)
		ServerError("Something went wrong. Please retry.").Write(w)
	}
}

// ownerOf returns the signed-in owner; handlers behind write() always have one.
func ownerOf(ctx context.Context) string {
	owner, _ := core.OwnerFromContext(ctx)
	return owner
}
