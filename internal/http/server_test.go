package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
	"fintrack/internal/taxonomy"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv     *Server
	records *services.RecordService
	owner   string
	cookies []*http.Cookie
}

func newTestEnv(t *testing.T, checks map[string]Check) *testEnv {
	t.Helper()
	st := memory.New()
	tx := taxonomy.Static(taxonomy.DefaultLists())
	records := services.NewRecordService(st, cache.NewLRUCache[[]core.Record](100, time.Minute), tx, nil)
	authSvc := auth.NewService(st, st, auth.NewTokens(testSecret, 15*time.Minute, 24*time.Hour), nil)

	srv, err := NewServer(":0", Deps{
		Records:   records,
		Budgets:   services.NewBudgetService(records),
		Analytics: services.NewAnalyticsService(records),
		Recurring: services.NewRecurringService(st, records, nil),
		Auth:      authSvc,
		Checks:    checks,
		Location:  time.UTC,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	sess, err := authSvc.Register(context.Background(), "ada", "correct-horse", "correct-horse")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rec := httptest.NewRecorder()
	auth.SetSessionCookies(rec, sess, false)
	return &testEnv{srv: srv, records: records, owner: sess.UserID, cookies: rec.Result().Cookies()}
}

// do sends an HTMX request; signed attaches the session cookies.
func (e *testEnv) do(t *testing.T, method, path, form string, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("HX-Request", "true")
	if signed {
		for _, c := range e.cookies {
			req.AddCookie(c)
		}
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) expenseIDs(t *testing.T) []string {
	t.Helper()
	ctx := core.WithOwner(context.Background(), e.owner)
	recs, err := e.records.Expenses(ctx, core.WindowAll, "")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestNewServerRequiresServices(t *testing.T) {
	if _, err := NewServer(":0", Deps{}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestAnonymousVisitor(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Sign in to see your data") {
		t.Fatalf("index should prompt for login")
	}

	rr = env.do(t, http.MethodPost, "/expenses", "description=x&amount=1&category=Dining", false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous write: expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("HX-Redirect"); got != auth.LoginPath {
		t.Fatalf("HX-Redirect=%q", got)
	}

	rr = env.do(t, http.MethodGet, "/login", "", false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `action="/login"`) {
		t.Fatalf("login page status=%d", rr.Code)
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		form string
		want int
	}{
		{"bad amount", "description=x&amount=abc&category=Dining", http.StatusUnprocessableEntity},
		{"negative amount", "description=x&amount=-2&category=Dining", http.StatusUnprocessableEntity},
		{"missing description", "description=&amount=1.23&category=Dining", http.StatusUnprocessableEntity},
		{"unknown category", "description=x&amount=1.23&category=Spaceships", http.StatusUnprocessableEntity},
		{"bad date", "description=x&amount=1.23&category=Dining&date=31/01/2025", http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/expenses", tc.form, true)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), `class="error"`) {
				t.Errorf("expected error fragment, got %s", rr.Body.String())
			}
			if !strings.Contains(rr.Header().Get("HX-Trigger"), EventNotification) {
				t.Errorf("expected error notification trigger")
			}
		})
	}

	rr := env.do(t, http.MethodPost, "/expenses", "description=Pizza+night&amount=12.50&category=dining", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, ev := range []string{EventRecordsChanged, EventFormReset, "Expense added"} {
		if !strings.Contains(trigger, ev) {
			t.Errorf("HX-Trigger %q missing %q", trigger, ev)
		}
	}

	rr = env.do(t, http.MethodGet, "/ui/expenses", "", true)
	body := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(body, "Pizza night") || !strings.Contains(body, "Dining") {
		t.Fatalf("list status=%d body=%s", rr.Code, body)
	}
	if !strings.Contains(body, "12.50") {
		t.Errorf("list should show the amount")
	}
}

func TestEditAndDeleteExpense(t *testing.T) {
	env := newTestEnv(t, nil)
	if rr := env.do(t, http.MethodPost, "/expenses", "description=Bus&amount=2&category=Transportation", true); rr.Code != http.StatusOK {
		t.Fatalf("create status=%d", rr.Code)
	}
	ids := env.expenseIDs(t)
	if len(ids) != 1 {
		t.Fatalf("expected one expense, got %d", len(ids))
	}
	id := ids[0]

	rr := env.do(t, http.MethodGet, "/expenses/"+id+"/edit", "", true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `hx-put="/expenses/`+id+`"`) {
		t.Fatalf("edit form status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPut, "/expenses/"+id, "description=Train&amount=7.20&category=Transportation", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d: %s", rr.Code, rr.Body.String())
	}
	if rr = env.do(t, http.MethodGet, "/ui/expenses", "", true); !strings.Contains(rr.Body.String(), "Train") {
		t.Fatalf("list should show the updated description")
	}

	if rr = env.do(t, http.MethodDelete, "/expenses/"+id, "", true); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr = env.do(t, http.MethodDelete, "/expenses/"+id, "", true); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestBudgets(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := env.do(t, http.MethodPost, "/budgets", "category=Dining&amount=100", true); rr.Code != http.StatusOK {
		t.Fatalf("create budget status=%d: %s", rr.Code, rr.Body.String())
	}
	rr := env.do(t, http.MethodPost, "/budgets", "category=dining&amount=50", true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate budget: expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "already exists") {
		t.Errorf("duplicate message missing: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/expenses", "description=Ramen&amount=120&category=Dining", true)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "Dining budget updated") {
		t.Errorf("expected budget notice, got %q", rr.Header().Get("HX-Trigger"))
	}

	rr = env.do(t, http.MethodGet, "/ui/budgets", "", true)
	body := rr.Body.String()
	if !strings.Contains(body, "Over by") || !strings.Contains(body, "20.00") {
		t.Fatalf("budget card should be over by 20.00: %s", body)
	}

	if rr = env.do(t, http.MethodDelete, "/budgets?category=Dining", "", true); rr.Code != http.StatusOK {
		t.Fatalf("remove budget status=%d", rr.Code)
	}
	if rr = env.do(t, http.MethodGet, "/ui/budgets", "", true); !strings.Contains(rr.Body.String(), "No budgets yet") {
		t.Fatalf("budget should be gone")
	}
}

func TestIncomeAndRecurringPages(t *testing.T) {
	env := newTestEnv(t, nil)

	if rr := env.do(t, http.MethodPost, "/income", "source=Salary&amount=2500&description=March", true); rr.Code != http.StatusOK {
		t.Fatalf("create income status=%d: %s", rr.Code, rr.Body.String())
	}
	rr := env.do(t, http.MethodGet, "/ui/income", "", true)
	if !strings.Contains(rr.Body.String(), "2,500.00") {
		t.Fatalf("income total missing: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/recurring", "description=Rent&amount=900&category=Rent&every=monthly&start_date=2025-01-01", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create recurring status=%d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/ui/recurring", "", true)
	if !strings.Contains(rr.Body.String(), "01 Jan 2025") || !strings.Contains(rr.Body.String(), "never") {
		t.Fatalf("recurring list: %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/recurring", "description=Gym&amount=30&category=Other&every=hourly&start_date=2025-01-01", true)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown repetition: expected 422, got %d", rr.Code)
	}

	for _, path := range []string{"/income", "/recurring", "/analytics", "/transactions", "/budgets", "/settings"} {
		if rr := env.do(t, http.MethodGet, path, "", true); rr.Code != http.StatusOK {
			t.Errorf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAnalyticsPanel(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/expenses", "description=a&amount=30&category=Dining", true)
	env.do(t, http.MethodPost, "/expenses", "description=b&amount=10&category=Travel", true)

	rr := env.do(t, http.MethodGet, "/ui/analytics?window=month", "", true)
	body := rr.Body.String()
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, want := range []string{"Dining", "width: 75%", "width: 25%", "40.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("analytics panel missing %q", want)
		}
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/expenses", "description=Book&amount=15&category=Education", true)

	rr := env.do(t, http.MethodGet, "/transactions/export?format=xlsx", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "transactions_") || !strings.HasSuffix(cd, `.xlsx"`) {
		t.Fatalf("content disposition %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("empty export")
	}

	if rr = env.do(t, http.MethodGet, "/transactions/export?format=csv", "", true); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown format: expected 400, got %d", rr.Code)
	}
}

func TestInterestCalculator(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/interest", "principal=1000&rate=10&years=1&compounding=simple", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	if body := rr.Body.String(); !strings.Contains(body, "100.00") || !strings.Contains(body, "1,100.00") {
		t.Fatalf("unexpected result: %s", body)
	}

	if rr = env.do(t, http.MethodPost, "/interest", "principal=abc&rate=10&years=1", false); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad input: expected 422, got %d", rr.Code)
	}
}

func TestSettingsUpdate(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/settings", "display_name=Ada+L&currency=%24&dark_mode=on", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("HX-Refresh") != "true" {
		t.Errorf("settings update should refresh the page")
	}

	body := env.do(t, http.MethodGet, "/", "", true).Body.String()
	if !strings.Contains(body, "Ada L") || !strings.Contains(body, `class="dark"`) {
		t.Fatalf("layout should reflect the new settings")
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	env := newTestEnv(t, map[string]Check{
		"store": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("down") },
	})

	rr := env.do(t, http.MethodGet, "/healthz", "", false)
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil || health["status"] != "ok" {
		t.Fatalf("healthz: %v %v", err, health)
	}

	rr = env.do(t, http.MethodGet, "/readyz", "", false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503, got %d", rr.Code)
	}
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &ready); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if ready.Status != "not_ready" || ready.Checks["store"] != "ok" || ready.Checks["redis"] != "failed: down" {
		t.Fatalf("unexpected readiness %+v", ready)
	}

	env.do(t, http.MethodPost, "/expenses", "description=x&amount=1&category=Dining", true)
	env.do(t, http.MethodPost, "/expenses", "description=x&amount=zero&category=Dining", true)
	body := env.do(t, http.MethodGet, "/metrics", "", false).Body.String()
	for _, want := range []string{"fintrack_records_created_total 1", "fintrack_validation_errors_total 1", "fintrack_websocket_connections 0"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStaticAndWebsocketRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/static/app.js", "", false)
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("static status=%d cache=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}
	if rr = env.do(t, http.MethodGet, "/ws", "", true); rr.Code != http.StatusNotFound {
		t.Fatalf("ws without hub: expected 404, got %d", rr.Code)
	}
}
