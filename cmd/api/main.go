package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/performance/internal/api"
	"example.com/performance/internal/auth"
	"example.com/performance/internal/cache"
	"example.com/performance/internal/config"
	"example.com/performance/internal/domain"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/outbox"
	"example.com/performance/internal/persistence"
	"example.com/performance/internal/persistence/postgres"
	httptransport "example.com/performance/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("performance api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	refresher := domain.NewRefresher(store,
		domain.WithRefreshLogger(logger),
		domain.WithInvalidator(cache.New(cfg.CacheInvalidateURL, cfg.CacheInvalidateKey, cfg.HTTPTimeout)),
	)

	var opts []domain.ServiceOption
	var dispatcher *outbox.Dispatcher
	if pg, ok := store.(*postgres.Store); ok {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, outbox.WithWriteTimeout(cfg.HTTPTimeout))
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pg.Pool(), producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
		go dispatcher.Start(ctx)
	} else {
		logger.Info("no event pipeline for store driver, refreshing in process", slog.String("driver", cfg.StoreDriver))
		opts = append(opts, domain.WithChangeHook(refresher.Trigger(cfg.RefreshTimeout)))
	}

	service := domain.NewService(store, opts...)
	handler := api.NewHandler(service, refresher, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	if cfg.RefreshTimeout > serverCfg.WriteTimeout {
		serverCfg.WriteTimeout = cfg.RefreshTimeout
	}
	server := httptransport.NewServer(serverCfg, router)
	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler())

	metricsErr := make(chan error, 1)
	go func() {
		metricsErr <- httptransport.ListenAndServe(ctx, metricsSrv, serverCfg.ShutdownTimeout, logger)
	}()

	err = httptransport.ListenAndServe(ctx, server, serverCfg.ShutdownTimeout, logger)
	stop()

	if dispatcher != nil {
		dispatcher.Wait()
	}
	if mErr := <-metricsErr; mErr != nil && !errors.Is(mErr, http.ErrServerClosed) {
		logger.Warn("metrics server error", slog.String("error", mErr.Error()))
	}
	return err
}
