package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wikiflow/internal/config"
	"wikiflow/internal/health"
	"wikiflow/internal/logging"
	"wikiflow/internal/publisher"
	"wikiflow/internal/source"

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

	pub := buildPublisher(cfg, logger)
	if err := pub.Connect(); err != nil {
		logger.Error("publisher connect failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = pub.Close() }()

	bridge := source.NewBridge(pub, cfg.Subject, logger)
	client := source.NewClient(cfg.StreamURL, cfg.UserAgent, logger)

	logger.Info("starting wikiflow ingest",
		zap.Bool("debug", cfg.Debug),
		zap.String("stream_url", cfg.StreamURL),
		zap.String("subject", cfg.Subject))

	if err := client.Run(ctx, bridge.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingest stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("ingest stopped")
}

func buildPublisher(cfg config.Config, logger *zap.Logger) publisher.Publisher {
	if len(cfg.NATSURLs) == 0 {
		logger.Warn("NATS URLs missing, using noop publisher")
		return publisher.NewNoopPublisher()
	}
	return publisher.NewJetStreamPublisher(publisher.JetStreamOptions{
		URLs:           cfg.NATSURLs,
		Username:       cfg.NATSUsername,
		Password:       cfg.NATSPassword,
		ConnectTimeout: cfg.NATSTimeout,
		PublishTimeout: cfg.NATSTimeout,
		ConnName:       "wikiflow-ingest-" + time.Now().UTC().Format("060102-150405"),
		StreamName:     cfg.StreamName,
		StreamSubjects: []string{cfg.Subject},
	}, logger)
}
