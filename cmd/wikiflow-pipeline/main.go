package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"wikiflow/internal/bus"
	"wikiflow/internal/config"
	"wikiflow/internal/dedup"
	"wikiflow/internal/engine"
	"wikiflow/internal/health"
	"wikiflow/internal/logging"
	"wikiflow/internal/pipeline"
	"wikiflow/internal/sink"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	health.Start(ctx, cfg.HealthAddr, logger)
	logger.Info("prometheus metrics available", zap.String("endpoint", cfg.HealthAddr+"/metrics"))

	sub := bus.NewJetStreamSubscriber(bus.JetStreamOptions{
		URLs:           cfg.NATSURLs,
		Username:       cfg.NATSUsername,
		Password:       cfg.NATSPassword,
		ConnectTimeout: cfg.NATSTimeout,
		FetchWait:      cfg.FetchWait,
		StreamName:     cfg.StreamName,
		Subject:        cfg.Subject,
		ConsumerName:   cfg.ConsumerName,
	}, logger)

	writer := buildWriter(cfg, logger)
	store, cleanup := buildDedupStore(ctx, cfg, logger)
	defer cleanup()

	logger.Info("starting wikiflow pipeline",
		zap.Bool("debug", cfg.Debug),
		zap.String("stream", cfg.StreamName),
		zap.String("subject", cfg.Subject),
		zap.String("consumer", cfg.ConsumerName),
		zap.String("sink", cfg.SinkBackend),
		zap.String("table", cfg.SinkTable),
		zap.Int("workers", cfg.Workers),
		zap.Bool("dedup", store != nil))

	eng := engine.NewEngine(sub, pipeline.New(logger), writer, store, cfg.Workers, cfg.FetchBatch, logger)
	if err := eng.Run(ctx); err != nil {
		logger.Error("pipeline stopped", zap.Error(err))
		os.Exit(1)
	}
}

func buildWriter(cfg config.Config, logger *zap.Logger) sink.Writer {
	switch cfg.SinkBackend {
	case "postgres":
		return sink.NewPostgresWriter(cfg.SinkDSN, cfg.SinkTable, logger)
	case "memory":
		logger.Warn("using in-memory sink, rows are not persisted")
		return sink.NewMemoryWriter()
	case "", "clickhouse":
		return sink.NewClickHouseWriter(cfg.SinkDSN, cfg.SinkTable, logger)
	default:
		logger.Warn("unknown sink backend, using clickhouse", zap.String("backend", cfg.SinkBackend))
		return sink.NewClickHouseWriter(cfg.SinkDSN, cfg.SinkTable, logger)
	}
}

// buildDedupStore builds the Redis-backed dedup store, falling back to
// in-memory if Redis is unavailable. Returns nil when dedup is disabled.
func buildDedupStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (dedup.Store, func()) {
	if !cfg.DedupEnabled {
		return nil, func() {}
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, using memory dedup store", zap.String("url", cfg.RedisURL), zap.Error(err))
		return dedup.NewMemoryStore(), func() {}
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.NATSTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using memory dedup store", zap.Error(err))
		_ = client.Close()
		return dedup.NewMemoryStore(), func() {}
	}
	return dedup.NewRedisStore(client, "wikiflow:seen:", cfg.DedupTTL), func() { _ = client.Close() }
}
