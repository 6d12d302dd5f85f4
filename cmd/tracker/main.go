// Package main is the entry point for the tracker service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/lifecycle"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/internal/outage"
	"github.com/justlanded/tracker/internal/push"
	"github.com/justlanded/tracker/internal/reconciler"
	"github.com/justlanded/tracker/internal/reminder"
	"github.com/justlanded/tracker/internal/storage"
	"github.com/justlanded/tracker/internal/store"
	"github.com/justlanded/tracker/internal/travel"
	"github.com/justlanded/tracker/pkg/flightaware"
)

func main() {
	// Determine config path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/config/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tracker",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("log_level", cfg.App.LogLevel),
	)

	// Open the flight store
	st, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open flight store", zap.Error(err))
	}
	defer st.Close()

	if err := st.Ping(); err != nil {
		logger.Fatal("flight store ping failed", zap.Error(err))
	}

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	// Start metrics/health server
	metricsServer := metrics.NewServer(
		cfg.Metrics.Port,
		cfg.Metrics.Path,
		cfg.Health.LivenessPath,
		cfg.Health.ReadinessPath,
		registry,
	)
	metricsServer.UpdateHealthCheck("store", "ok")

	// The outage tracker doubles as the provider client's failure recorder,
	// so every transport failure feeds outage detection.
	tracker := outage.NewTracker(cfg.Outage.MinFailures, logger)

	faClient := flightaware.NewHTTPClient(flightaware.Config{
		BaseURL:         cfg.FlightAware.BaseURL,
		Username:        cfg.FlightAware.Username,
		APIKey:          cfg.FlightAware.APIKey,
		Timeout:         cfg.FlightAware.Timeout.Duration,
		RateLimit:       cfg.FlightAware.RateLimit,
		RateBurst:       cfg.FlightAware.RateBurst,
		DeleteBatchSize: cfg.FlightAware.DeleteBatchSize,
	}, tracker, logger)
	metricsServer.UpdateHealthCheck("provider", "ok")

	pusher := push.NewGateway(cfg.Push, cfg.App.Version, &http.Client{Timeout: cfg.Push.Timeout.Duration}, logger)

	var estimator travel.Estimator = travel.NewClient(cfg.Travel.URL, cfg.Travel.APIKey, cfg.Travel.Timeout.Duration, logger)
	if cfg.Travel.FallbackURL != "" {
		fallback := travel.NewClient(cfg.Travel.FallbackURL, cfg.Travel.APIKey, cfg.Travel.Timeout.Duration, logger)
		estimator = travel.NewChain(logger, estimator, fallback)
	}

	// Create context with cancellation for shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create components
	lm := lifecycle.NewMonitor(st, faClient, tracker, cfg.Lifecycle, m, logger)
	rd := reminder.NewDispatcher(st, estimator, pusher, tracker, cfg.Reminders, m, logger)
	rc := reconciler.NewReconciler(st, faClient, tracker, cfg.Reconciler, m, logger)
	om := outage.NewMonitor(tracker, faClient, cfg.Outage, m, logger)
	sm := storage.NewMonitor(st, cfg.Storage, m, logger)

	// Use errgroup for goroutine lifecycle
	g, gCtx := errgroup.WithContext(ctx)

	// Start metrics server
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
			return metricsServer.Start()
		})
	}

	// Start lifecycle monitor
	if cfg.Lifecycle.Enabled {
		g.Go(func() error {
			lm.Start(gCtx)
			return nil
		})
	}

	// Start reminder dispatcher
	g.Go(func() error {
		rd.Start(gCtx)
		return nil
	})

	// Start alert reconciler
	if cfg.Reconciler.Enabled {
		g.Go(func() error {
			rc.Start(gCtx)
			return nil
		})
	}

	// Start outage monitor
	g.Go(func() error {
		om.Start(gCtx)
		return nil
	})

	// Start storage monitor
	if cfg.Storage.Enabled {
		g.Go(func() error {
			sm.Start(gCtx)
			return nil
		})
	}

	// Mark as ready
	metricsServer.SetReady(true)
	logger.Info("tracker is ready")

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-gCtx.Done():
		logger.Info("context cancelled")
	}

	// Graceful shutdown sequence
	logger.Info("starting graceful shutdown")
	metricsServer.SetReady(false)

	// Cancel context to stop all components
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown metrics server
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	// Wait for all goroutines
	if err := g.Wait(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("tracker shutdown complete")
}

func newLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}
