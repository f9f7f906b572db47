package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"cloudtrim/internal/api"
	"cloudtrim/internal/config"
	"cloudtrim/internal/domain"
	"cloudtrim/internal/inspector"
	awsinspector "cloudtrim/internal/inspector/aws"
	"cloudtrim/internal/observability"
	"cloudtrim/internal/recommend"
	"cloudtrim/internal/secrets"
)

func main() {
	// Initialize structured logger from environment configuration
	logger := observability.NewLogger(observability.ConfigFromEnv())

	configPath := flag.String("config", "", "path to YAML config file")
	genKey := flag.Bool("generate-secrets-key", false, "print a fresh credentials encryption key and exit")
	flag.Parse()

	if *genKey {
		key, err := secrets.GenerateKey()
		if err != nil {
			logger.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// Initialize Sentry if DSN is provided
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	// Select storage based on build tags and config (see store_*.go in this package).
	store := selectStore(logger, cfg)

	// Initialize metrics
	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled", "namespace", metricsCfg.Namespace)
	} else {
		logger.Info("metrics disabled")
	}

	// Credentials encryption at rest.
	var (
		sealer    api.Sealer
		decrypter recommend.Decrypter
	)
	if cfg.SecretsKey != "" {
		box, err := secrets.NewBox(cfg.SecretsKey)
		if err != nil {
			logger.Error("invalid secrets key", "error", err)
			os.Exit(1)
		}
		sealer = box
		decrypter = box
		logger.Info("credential encryption enabled")
	} else {
		logger.Warn("credentials stored unencrypted; set CLOUDTRIM_SECRETS_KEY to enable encryption")
	}

	factory := func(ctx context.Context, account domain.CloudAccount) (inspector.Inspector, inspector.Pricer, error) {
		sess, err := awsinspector.NewSession(ctx, awsinspector.Options{
			Credentials:       account.Credentials,
			Regions:           cfg.AWS.Regions,
			RequestsPerSecond: cfg.AWS.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return sess, sess, nil
	}

	manager := recommend.NewManager(recommend.ManagerOptions{
		Accounts:       store,
		Snapshots:      store,
		Factory:        factory,
		Decrypter:      decrypter,
		Logger:         logger,
		SnapshotMaxAge: cfg.SnapshotMaxAge(),
	})
	orchestrator := recommend.NewOrchestrator(recommend.OrchestratorOptions{
		Manager:               manager,
		Jobs:                  store,
		Logger:                logger,
		Metrics:               metrics,
		MaxWorkers:            cfg.Scan.MaxWorkers,
		JobTimeout:            cfg.Scan.JobTimeout,
		RescanBeforeRemediate: cfg.Scan.RescanBeforeRemediate,
	})
	scheduler := recommend.NewScheduler(store, orchestrator, logger)
	if err := scheduler.Start(context.Background()); err != nil {
		logger.Error("resuming scan schedules failed", "error", err)
	}

	orgLister := func(ctx context.Context) ([]api.OrgAccount, error) {
		members, err := awsinspector.ListOrgAccounts(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]api.OrgAccount, 0, len(members))
		for _, m := range members {
			out = append(out, api.OrgAccount{ID: m.ID, Name: m.Name, Email: m.Email})
		}
		return out, nil
	}

	mux := http.NewServeMux()
	srv := api.NewServer(api.ServerOptions{
		Mux:          mux,
		Store:        store,
		Manager:      manager,
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		Logger:       logger,
		Metrics:      metrics,
		Sealer:       sealer,
		Factory:      factory,
		OrgLister:    orgLister,
	})
	srv.RegisterRoutes()

	rateCfg := api.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
	if rateCfg.Enabled() {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	} else {
		logger.Info("rate limiting disabled")
	}
	if len(cfg.APIKeys) > 0 {
		logger.Info("api key auth enabled", "keys", len(cfg.APIKeys))
	} else {
		logger.Warn("api key auth disabled; set CLOUDTRIM_API_KEYS to enable")
	}

	// Apply middleware stack.
	// Order: metrics (outermost) -> requestID -> logging -> rate limiting -> auth
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.RateLimitMiddleware(rateCfg, logger.Slog()),
		api.APIKeyMiddleware(cfg.APIKeys, logger.Slog()),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("cloudtrim listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown with 15-second timeout
	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	scheduler.Stop()
	logger.Info("scheduler stopped")

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	} else {
		logger.Info("database connection closed")
	}

	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
