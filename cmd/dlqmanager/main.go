package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/performance/internal/config"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/outbox"
	"example.com/performance/internal/persistence/postgres"
	httptransport "example.com/performance/internal/transport/http"
)

const defaultDLQBatchSize = 50

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	manager := outbox.NewDLQManager(store.Pool(), cfg.DLQMaxRetries, cfg.DLQBaseDelay)

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := httptransport.ListenAndServe(ctx, metricsSrv, 10*time.Second, logger); err != nil {
			logger.Warn("metrics server error", slog.String("error", err.Error()))
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	logger.Info("dlq manager started",
		slog.Duration("interval", cfg.DLQPollInterval),
		slog.Int("max_retries", cfg.DLQMaxRetries),
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info("dlq manager received shutdown signal")
			<-metricsDone
			return
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				logger.Error("dlq manager error", slog.String("error", err.Error()))
			} else if processed > 0 {
				logger.Info("dlq manager processed entries", slog.Int("count", processed))
			}
		}
	}
}
