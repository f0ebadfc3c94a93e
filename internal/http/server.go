package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/realtime"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// Check is a readiness probe for one dependency.
type Check func(ctx context.Context) error

// Deps are the services the web server renders and mutates.
type Deps struct {
	Records   *services.RecordService
	Budgets   *services.BudgetService
	Analytics *services.AnalyticsService
	Recurring *services.RecurringService
	Auth      *auth.Service
	// Hub is optional; without it /ws answers 404 and pages only refresh after their own writes.
	Hub    *realtime.Hub
	Logger *applog.Logger

	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check

	CookieSecure       bool
	RateLimitPerMinute int
	TrustedProxies     []string
	Location           *time.Location
}

type Server struct {
	http.Server
	deps      Deps
	templates *template.Template
	logger    *applog.Logger
	tracer    *trace.Middleware
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	metrics   appMetrics
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// appMetrics counts domain outcomes for /metrics.
type appMetrics struct {
	recordsCreated   atomic.Int64
	recordsUpdated   atomic.Int64
	recordsDeleted   atomic.Int64
	exports          atomic.Int64
	validationErrors atomic.Int64
	storeErrors      atomic.Int64
}

// NewServer parses the embedded templates, mounts routes and wraps them in the
// middleware chain. The returned server is ready for ListenAndServe.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Records == nil || deps.Budgets == nil || deps.Analytics == nil || deps.Recurring == nil || deps.Auth == nil {
		return nil, errors.New("http server needs the record, budget, analytics, recurring and auth services")
	}
	if deps.Logger == nil {
		deps.Logger = applog.FromContext(context.Background())
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	t, err := template.New("").Funcs(templateFuncs(deps.Location)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		deps:      deps,
		templates: t,
		logger:    deps.Logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		now:       time.Now,
		started:   time.Now(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(s.rateKey, s.onRateLimited)(h)
	h = deps.Auth.Middleware(deps.CookieSecure)(h)
	h = s.detector.Middleware(s.logger.Slog())(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServerFS(sub))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.Handle("GET /settings", write(s.handleSettingsPage))
	mux.Handle("POST /settings", write(s.handleUpdateSettings))
	mux.Handle("POST /settings/password", write(s.handleChangePassword))

	mux.HandleFunc("GET /{$}", s.handleExpensesPage)
	mux.HandleFunc("GET /ui/expenses", s.handleExpenseList)
	mux.Handle("POST /expenses", write(s.handleCreateExpense))
	mux.Handle("GET /expenses/{id}/edit", write(s.handleEditExpenseForm))
	mux.Handle("PUT /expenses/{id}", write(s.handleUpdateExpense))
	mux.Handle("DELETE /expenses/{id}", write(s.handleDeleteExpense))

	mux.HandleFunc("GET /transactions", s.handleTransactionsPage)
	mux.HandleFunc("GET /ui/transactions", s.handleTransactionsTable)
	mux.Handle("GET /transactions/export", write(s.handleExport))

	mux.HandleFunc("GET /budgets", s.handleBudgetsPage)
	mux.HandleFunc("GET /ui/budgets", s.handleBudgetList)
	mux.Handle("POST /budgets", write(s.handleCreateBudget))
	mux.Handle("DELETE /budgets", write(s.handleDeleteBudget))

	mux.HandleFunc("GET /income", s.handleIncomePage)
	mux.HandleFunc("GET /ui/income", s.handleIncomeList)
	mux.Handle("POST /income", write(s.handleCreateIncome))
	mux.Handle("DELETE /income/{id}", write(s.handleDeleteIncome))

	mux.HandleFunc("GET /analytics", s.handleAnalyticsPage)
	mux.HandleFunc("GET /ui/analytics", s.handleAnalyticsPanel)

	mux.HandleFunc("GET /recurring", s.handleRecurringPage)
	mux.HandleFunc("GET /ui/recurring", s.handleRecurringList)
	mux.Handle("POST /recurring", write(s.handleCreateRecurring))
	mux.Handle("DELETE /recurring/{id}", write(s.handleDeleteRecurring))

	mux.HandleFunc("GET /interest", s.handleInterestPage)
	mux.HandleFunc("POST /interest", s.handleCalculateInterest)
	return nil
}

// write guards a handler that needs a signed-in owner.
func write(h http.HandlerFunc) http.Handler {
	return auth.RequireSession(h)
}

// rateKey buckets signed-in users by id and everyone else by client IP.
func (s *Server) rateKey(r *http.Request) string {
	if owner, ok := core.OwnerFromContext(r.Context()); ok {
		return "owner:" + owner
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		"method", r.Method,
		"path", r.URL.Path)
	ErrorFragment(http.StatusTooManyRequests, "Too many requests. Please try again in a minute.").Write(w)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		http.NotFound(w, r)
		return
	}
	s.deps.Hub.ServeWS(w, r)
}

// Shutdown stops background routines and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
