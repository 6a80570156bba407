package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/schoolboard/internal/adapters/http/api"
	"github.com/okian/schoolboard/internal/adapters/http/swagger"
	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/adapters/source/memory"
	"github.com/okian/schoolboard/internal/adapters/source/sheets"
	"github.com/okian/schoolboard/internal/adapters/source/sqlite"
	app "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var logOpts []logger.Option
	if cfg.LogFormat == "json" {
		logOpts = append(logOpts, logger.WithJSON())
	}
	if err := logger.Init(logOpts...); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Apply configured log level (fallback to info on invalid input)
	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(metricsOptions(cfg)...)

	src, err := openSource(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open source", logger.String("kind", cfg.Source.Kind), logger.Error(err))
		os.Exit(1)
	}
	if c, ok := src.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	opts := append(app.FromConfig(cfg), app.WithLogger(loggerInstance))
	svc := app.New(src, cfg.Tables, opts...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
	go startServiceMetricsUpdater(ctx, svc, metrics.RefreshInterval())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("source", cfg.Source.Kind))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// openSource builds the tabular source selected by source.kind.
func openSource(ctx context.Context, cfg *config.Config, l logger.Logger) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceSheets:
		opts := []sheets.Option{sheets.WithLogger(l)}
		if cfg.Source.CredentialsFile != "" {
			if err := sheets.CheckCredentialsFile(cfg.Source.CredentialsFile); err != nil {
				return nil, err
			}
			opts = append(opts, sheets.WithCredentialsFile(cfg.Source.CredentialsFile))
		}
		if cfg.Source.APIKey != "" {
			opts = append(opts, sheets.WithAPIKey(cfg.Source.APIKey))
		}
		return sheets.New(ctx, opts...)
	case config.SourceSQLite:
		return sqlite.New(cfg.Source.SQLiteDir, sqlite.WithLogger(l)), nil
	case config.SourceYAML:
		return memory.LoadFile(cfg.Source.FixtureFile)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalidConfig, cfg.Source.Kind)
	}
}

// newMux registers the docs and API routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	return mux
}

// metricsOptions maps the metrics section of cfg onto the global manager.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithRefreshInterval(cfg.Metrics.RefreshInterval),
		metrics.WithLatencyBuckets(cfg.Metrics.LatencyBucketsMs),
		metrics.WithConstLabels(cfg.Metrics.Labels),
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges GetStats does not already set.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["warmQueueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workers, ok := stats["warmWorkers"].(int); ok {
		metrics.UpdateWorkerActiveCount(workers)
	}
}
