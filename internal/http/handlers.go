package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/auth"
	"ledger/internal/log"
	"ledger/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks the store and reports per-dependency status
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.deps.Ready != nil {
		if err := s.deps.Ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "ok"
	}

	checks["insights"] = "disabled"
	if s.deps.Insights.Enabled() {
		checks["insights"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, help, kind string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_request_duration_ms_avg", "Average request duration in milliseconds", "gauge", traceMetrics.AverageDurationMs)
	metric("http_request_errors_total", "Requests that failed with a server error", "counter", s.appMetrics.requestErrors.Load())
	metric("ledger_transaction_pages_total", "Transaction pages served", "counter", s.appMetrics.transactionPages.Load())
	metric("ledger_reports_total", "Reports served", "counter", s.appMetrics.reportsServed.Load())
	metric("ledger_insights_total", "Insights generated", "counter", s.appMetrics.insightsServed.Load())
	if s.deps.CacheEntries != nil {
		metric("ledger_report_cache_entries", "Entries in the report cache", "gauge", int64(s.deps.CacheEntries()))
	}
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.TotalHits)
	metric("rate_limit_clients", "Clients tracked by the rate limiter", "gauge", rateLimitMetrics.ClientCount)
	metric("security_suspicious_requests_total", "Requests matching probe patterns", "counter", securityMetrics.SuspiciousRequests)
	metric("security_invalid_ip_total", "Malformed forwarded client addresses", "counter", securityMetrics.InvalidIPAttempts)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	page, err := s.deps.Transactions.GetTransactions(r.Context(), user, ParseListRequest(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, log.ComponentTransactions, log.OpList, err)
		return
	}

	s.appMetrics.transactionPages.Add(1)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	report, err := s.deps.Reports.GetReport(r.Context(), user, ParseReportRequest(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, log.ComponentReport, log.OpReport, err)
		return
	}

	s.appMetrics.reportsServed.Add(1)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if !s.deps.Insights.Enabled() {
		s.writeError(w, r, log.ComponentInsights, log.OpInsight, services.ErrInsightsDisabled)
		return
	}

	req, err := ParseInsightRequest(r)
	if err != nil {
		s.writeError(w, r, log.ComponentInsights, log.OpInsight, err)
		return
	}

	insight, err := s.deps.Insights.GetInsight(r.Context(), user, req)
	if err != nil {
		s.writeError(w, r, log.ComponentInsights, log.OpInsight, err)
		return
	}

	s.appMetrics.insightsServed.Add(1)
	writeJSON(w, http.StatusOK, insight)
}
