// Package cli holds the initialization shared by the ledger subcommands:
// logging, configuration, the store and the report cache.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cache"
	"ledger/internal/config"
	"ledger/internal/insights"
	"ledger/internal/log"
	"ledger/internal/services"
)

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads .env, then the environment, lets override
// apply command line flags, and validates the result.
func LoadAndValidateConfig(override func(*config.Config), envFiles ...string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg := config.Load()
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend creates the configured store.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// ReportCache is the configured cache plus what the server needs to report
// on it and release it.
type ReportCache struct {
	Cache   cache.ReportCache
	Entries func() int
	Manager *cache.Manager
	Close   func() error
}

// OpenReportCache builds the cache named by CACHE_BACKEND. The LRU variant
// gets a manager sweeping expired entries once StartCleanup is called.
func OpenReportCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (*ReportCache, error) {
	logger = logger.WithComponent(log.ComponentCache)
	manager := cache.NewManager()
	noop := func() error { return nil }

	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedisReports(ctx, cache.RedisConfig{URL: cfg.RedisURL, TTL: cfg.CacheTTL})
		if err != nil {
			return nil, fmt.Errorf("connect report cache: %w", err)
		}
		logger.Info("Using Redis report cache", "ttl", cfg.CacheTTL.String())
		return &ReportCache{Cache: rc, Manager: manager, Close: rc.Close}, nil
	case "none":
		logger.Info("Report cache disabled")
		return &ReportCache{Cache: cache.Nop{}, Manager: manager, Close: noop}, nil
	default:
		lru := cache.NewLRUReports(cfg.CacheSize, cfg.CacheTTL)
		manager.Register(lru)
		logger.Info("Using in-process report cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL.String())
		return &ReportCache{Cache: lru, Entries: lru.Size, Manager: manager, Close: noop}, nil
	}
}

// Services bundles the engine entry points.
type Services struct {
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Insights     *services.InsightService
}

// BuildServices wires the engine over store. reportCache may be nil.
func BuildServices(cfg *config.Config, store backend.Store, reportCache cache.ReportCache, logger *log.Logger) (*Services, error) {
	reports := services.NewReportService(store,
		services.WithLookbackDays(cfg.ReportLookbackDays),
		services.WithReportCache(reportCache),
		services.WithReportLogger(logger))

	var generator services.TextGenerator
	if cfg.InsightsEnabled() {
		client, err := insights.NewClient(insights.Config{
			URL:     cfg.InsightsAPIURL,
			APIKey:  cfg.InsightsAPIKey,
			Model:   cfg.InsightsModel,
			Timeout: cfg.InsightsTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("insights client: %w", err)
		}
		generator = client
	}

	return &Services{
		Transactions: services.NewTransactionService(store, cfg.MaxPageSize),
		Reports:      reports,
		Insights:     services.NewInsightService(store, reports, generator, cfg.InsightsMaxTransactions),
	}, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		}
	}()
	return ctx, stop
}

// ShutdownContext bounds cleanup after the main context is gone.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
