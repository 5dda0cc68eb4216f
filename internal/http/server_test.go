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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/auth"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
	"ledger/internal/storage/storagetest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, nil }

type testEnv struct {
	server   *Server
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T, generator services.TextGenerator, ready func(context.Context) error) testEnv {
	t.Helper()
	store := memory.New()
	require.NoError(t, storage.Load(context.Background(), store, storagetest.Fixture(), nil))

	clock := func() time.Time { return time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC) }
	reports := services.NewReportService(store, services.WithClock(clock))
	verifier := auth.NewVerifier(testSecret, "")

	srv, err := NewServer(":0", Deps{
		Transactions: services.NewTransactionService(store, 10),
		Reports:      reports,
		Insights:     services.NewInsightService(store, reports, generator, 50),
		Verifier:     verifier,
		Ready:        ready,
		CacheEntries: func() int { return 4 },
	}, Options{AllowedOrigins: []string{"https://app.example"}, RequestsPerMinute: 1000})
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	return testEnv{server: srv, verifier: verifier}
}

func (e testEnv) do(t *testing.T, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		token, err := e.verifier.Issue(core.UserID(user), time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func TestNewServerRequiresVerifier(t *testing.T) {
	_, err := NewServer(":0", Deps{}, Options{})
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = env.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"insights":"disabled"`)

	down := newTestEnv(t, nil, func(context.Context) error { return errors.New("connection refused") })
	w = down.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/v1/reports", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing bearer token"}`, w.Body.String())
}

func TestTransactionsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/v1/transactions?search=coffee&pageSize=1&page=2&accountId=abc", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		PageSize    int `json:"pageSize"`
		CurrentPage int `json:"currentPage"`
		TotalCount  int `json:"totalCount"`
		TotalPages  int `json:"totalPages"`
		Data        []struct {
			ID      int64 `json:"id"`
			Account struct {
				Name string `json:"name"`
			} `json:"account"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 1, page.PageSize)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Data[0].ID)
	assert.Equal(t, "Checking", page.Data[0].Account.Name)
}

func TestTransactionsEndpointEmptyListIsArray(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/v1/transactions", "carol", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, http.MethodGet, "/api/v1/reports?from=2024-01-01&to=2024-01-31", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report core.FinanceReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Len(t, report.Days, 31)
	assert.Equal(t, int64(255000), report.Summary.Income)

	w = env.do(t, http.MethodGet, "/api/v1/reports?from=2024-02-01&to=2024-01-01", "alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"start date should not be greater than end date"}`, w.Body.String())
}

func TestInsightEndpoint(t *testing.T) {
	disabled := newTestEnv(t, nil, nil)
	w := disabled.do(t, http.MethodPost, "/api/v1/insights", "alice", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	reply := "Here you go:\n```json\n{\"spendingHabitsSummary\":\"mostly coffee\",\"strategicRecommendations\":\"brew at home\"}\n```"
	env := newTestEnv(t, stubGenerator{reply: reply}, nil)

	w = env.do(t, http.MethodPost, "/api/v1/insights", "alice", `{"from":"2024-01-01","to":"2024-01-31"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var insight services.Insight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &insight))
	assert.Equal(t, "mostly coffee", insight.SpendingHabitsSummary)

	w = env.do(t, http.MethodPost, "/api/v1/insights", "alice", `{"from":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reports", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	env.server.Router().ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodGet, "/api/v1/reports", "alice", "")

	w := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "ledger_reports_total 1")
	assert.Contains(t, body, "ledger_report_cache_entries 4")
	assert.Contains(t, body, "http_requests_total 1")
}

func TestRateLimitOnAPI(t *testing.T) {
	store := memory.New()
	srv, err := NewServer(":0", Deps{
		Transactions: services.NewTransactionService(store, 10),
		Reports:      services.NewReportService(store),
		Verifier:     auth.NewVerifier(testSecret, ""),
	}, Options{RequestsPerMinute: 1})
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })

	for i, want := range []int{http.StatusUnauthorized, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
		assert.Equal(t, want, w.Code, "request %d", i+1)
	}

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code, "probes are not rate limited")
}
