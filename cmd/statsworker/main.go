// Command statsworker applies vendor stats events published by the API when the
// events backend is pubsub or kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shopmart/api/internal/di"
	"github.com/shopmart/api/internal/platform/config"
	"github.com/shopmart/api/internal/platform/jobs"
	"github.com/shopmart/api/internal/platform/observability"
	"github.com/shopmart/api/internal/platform/secrets"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("statsworker")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		_ = fetcher.Close()
	}()

	cfg, err := config.Load(ctx,
		config.WithEnvFile(envOrDefault("API_ENV_FILE", ".env")),
		config.WithSecretResolver(fetcher),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if !cfg.Events.WorkerSubscription() {
		logger.Fatal("no vendor stats source configured", zap.String("backend", cfg.Events.Backend))
	}

	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(logger),
		di.WithServiceName("statsworker"),
	)
	if err != nil {
		logger.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("dependency close error", zap.Error(err))
		}
	}()

	consumerOpts := []jobs.ConsumerOption{
		jobs.WithConsumerLogger(logger.Named("consumer")),
		jobs.WithOutcomeRecorder(container.Metrics.StatsEventHandled),
	}

	var consumer runner
	switch cfg.Events.Backend {
	case config.EventsPubSub:
		sub := container.PubSub.Subscription(cfg.Events.PubSubSubscription)
		c, err := jobs.NewPubSubVendorStatsConsumer(sub, container.Services.VendorStats, consumerOpts...)
		if err != nil {
			logger.Fatal("failed to initialise pubsub consumer", zap.Error(err))
		}
		consumer = c
	case config.EventsKafka:
		reader := jobs.NewKafkaReader(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, cfg.Events.KafkaGroup)
		c, err := jobs.NewKafkaVendorStatsConsumer(reader, container.Services.VendorStats, consumerOpts...)
		if err != nil {
			_ = reader.Close()
			logger.Fatal("failed to initialise kafka consumer", zap.Error(err))
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("kafka reader close error", zap.Error(err))
			}
		}()
		consumer = c
	default:
		logger.Fatal("unsupported events backend", zap.String("backend", cfg.Events.Backend))
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, logger, envOrDefault("STATSWORKER_METRICS_ADDR", ":9091"), cfg.Metrics.Path, container.Metrics.Handler())
	}

	logger.Info("vendor stats worker started", zap.String("backend", cfg.Events.Backend))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
		return
	}
	logger.Info("vendor stats worker stopped")
}

func serveMetrics(ctx context.Context, logger *zap.Logger, addr, path string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server error", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(envOrDefault("API_SECRET_FALLBACK_FILE", ".secrets.local")),
	}
	if project := envOrDefault("API_SECRET_PROJECT_ID", envOrDefault("API_FIREBASE_PROJECT_ID", "")); project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func envOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
