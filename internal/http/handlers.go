package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every dependency check; one failure makes the instance not ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks)+1)
	checks["templates"] = "ok"

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.deps.Checks[name](ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

type metric struct {
	name  string
	help  string
	kind  string
	value int64
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	var wsClients int64
	if s.deps.Hub != nil {
		wsClients = int64(s.deps.Hub.Connections())
	}

	metrics := []metric{
		{"http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests},
		{"http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors},
		{"http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime},
		{"records_created_total", "Records created through the web interface", "counter", s.metrics.recordsCreated.Load()},
		{"records_updated_total", "Records updated through the web interface", "counter", s.metrics.recordsUpdated.Load()},
		{"records_deleted_total", "Records deleted through the web interface", "counter", s.metrics.recordsDeleted.Load()},
		{"exports_total", "Generated xlsx and pdf exports", "counter", s.metrics.exports.Load()},
		{"validation_errors_total", "Rejected form submissions", "counter", s.metrics.validationErrors.Load()},
		{"store_errors_total", "Failed record store operations", "counter", s.metrics.storeErrors.Load()},
		{"rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits},
		{"active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount},
		{"suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests},
		{"blocked_requests_total", "Scanner probes answered with 404", "counter", securityMetrics.BlockedRequests},
		{"websocket_connections", "Open realtime connections", "gauge", wsClients},
		{"uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.started).Seconds())},
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP fintrack_%s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE fintrack_%s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "fintrack_%s %d\n\n", m.name, m.value)
	}
}
