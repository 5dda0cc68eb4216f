package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/auth"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/worker"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reporting API",
		Long: `Serve the transaction listing, report and insight endpoints.

Requests under /api/v1 need a bearer token signed with JWT_SECRET. When
AMQP_URL is set the server also consumes ledger change events and drops
the affected users' cached reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve the API")
	}

	ctx, stop := cli.SignalContext(parent, logger)
	defer stop()

	logger.Info("Starting ledger API",
		log.FieldOperation, log.OpStartup,
		"version", version,
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"cache_backend", cfg.CacheBackend,
		"insights_enabled", cfg.InsightsEnabled())

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	rc, err := cli.OpenReportCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		rc.Manager.Stop()
		if err := rc.Close(); err != nil {
			logger.Error("Failed to close report cache", log.FieldError, err)
		}
	}()
	rc.Manager.StartCleanup(time.Minute)

	svc, err := cli.BuildServices(cfg, res.Store, rc.Cache, logger)
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Transactions: svc.Transactions,
		Reports:      svc.Reports,
		Insights:     svc.Insights,
		Verifier:     auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Ready:        res.Ping,
		CacheEntries: rc.Entries,
		Logger:       logger,
	}, apphttp.Options{
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		AllowCredentials:  cfg.CORSAllowCreds,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		RequestTimeout:    cfg.InsightsTimeout + 5*time.Second,
	})
	if err != nil {
		return err
	}
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = cfg.InsightsTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 64 << 10

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		// Replicas share a Redis cache, so one of them handling each event
		// is enough. In-process caches need every replica to see every event.
		queue := ""
		if cfg.CacheBackend == "redis" {
			queue = cfg.AMQPQueue
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, queue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()
		invalidator := worker.NewCacheInvalidator(client, rc.Cache)
		// A dead consumer leaves reports to expire by TTL; keep serving.
		g.Go(func() error {
			if err := invalidator.Run(gctx); err != nil {
				logger.Error("Cache invalidator stopped", log.FieldComponent, log.ComponentWorker, log.FieldError, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped", log.FieldOperation, log.OpShutdown)
		return nil
	})

	return g.Wait()
}
