package http

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ledger/internal/auth"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// Deps are the collaborators the API serves from
type Deps struct {
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Insights     *services.InsightService
	Verifier     *auth.Verifier
	// Ready reports whether the store is reachable; nil means always ready.
	Ready func(ctx context.Context) error
	// CacheEntries reports the report cache size for /metrics; optional.
	CacheEntries func() int
	Logger       *log.Logger
}

// Options tune the middleware chain
type Options struct {
	AllowedOrigins    []string
	AllowCredentials  bool
	RequestsPerMinute int
	TrustedProxies    []string
	RequestTimeout    time.Duration
	ReadHeaderTimeout time.Duration
	SecurityHeaders   *security.HeadersConfig
}

type appMetrics struct {
	uptime           time.Time
	transactionPages atomic.Int64
	reportsServed    atomic.Int64
	insightsServed   atomic.Int64
	requestErrors    atomic.Int64
}

type Server struct {
	http.Server
	router chi.Router
	deps   Deps
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics
}

func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Verifier == nil {
		return nil, errors.New("http: a token verifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}

	detector, err := security.NewDetector(deps.Logger, opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:           chi.NewRouter(),
		deps:             deps,
		logger:           deps.Logger.WithComponent(log.ComponentHTTP),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	headers := security.DefaultHeadersConfig()
	if opts.SecurityHeaders != nil {
		headers = *opts.SecurityHeaders
	}

	s.setupMiddleware(opts, headers)
	s.setupRoutes(opts)
	return s, nil
}

func (s *Server) setupMiddleware(opts Options, headers security.HeadersConfig) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.traceMiddleware.Middleware)
	s.router.Use(security.NewHeadersMiddleware(headers).Middleware)
	s.router.Use(s.securityDetector.Middleware)

	if len(opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
			ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
			AllowCredentials: opts.AllowCredentials,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/metrics", s.handleMetrics)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited))
		r.Use(s.deps.Verifier.Middleware)
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/transactions", s.handleTransactions)
		r.Get("/reports", s.handleReport)
		r.Post("/insights", s.handleInsight)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
}

func (s *Server) onRateLimited(r *http.Request, key string) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, key,
		log.FieldPath, r.URL.Path)
}

// Router exposes the routing tree, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops background work then drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
