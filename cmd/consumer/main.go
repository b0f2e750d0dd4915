package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/performance/internal/cache"
	"example.com/performance/internal/config"
	"example.com/performance/internal/consumer"
	"example.com/performance/internal/domain"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/persistence"
	httptransport "example.com/performance/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	refresher := domain.NewRefresher(store,
		domain.WithRefreshLogger(logger),
		domain.WithInvalidator(cache.New(cfg.CacheInvalidateURL, cfg.CacheInvalidateKey, cfg.HTTPTimeout)),
	)
	handler := consumer.NewRefreshHandler(refresher, logger)

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httptransport.ListenAndServe(ctx, metricsSrv, 0, logger); err != nil {
			logger.Warn("metrics server error", slog.String("error", err.Error()))
		}
	}()

	for _, topic := range cfg.ConsumerTopics {
		reader := consumer.NewKafkaReader(cfg.KafkaBrokers, cfg.ConsumerGroupID, topic)
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With(slog.String("topic", topic))))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			logger.Info("consumer started", slog.String("topic", topic), slog.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped with error", slog.String("topic", topic), slog.String("error", err.Error()))
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	logger.Info("consumer shutdown requested")
	cancel()

	wg.Wait()
}
