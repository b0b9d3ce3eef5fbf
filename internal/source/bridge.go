package source

import (
	"context"
	"encoding/json"

	"wikiflow/internal/metrics"
	"wikiflow/internal/model"
	"wikiflow/internal/publisher"

	"go.uber.org/zap"
)

// Bridge validates feed payloads and republishes them onto the bus. Canary
// probes and undecodable payloads never reach the bus.
type Bridge struct {
	pub     publisher.Publisher
	subject string
	retries int
	logger  *zap.Logger
	m       *metrics.Metrics
}

func NewBridge(pub publisher.Publisher, subject string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		pub:     pub,
		subject: subject,
		retries: 3,
		logger:  logger,
		m:       metrics.GlobalMetrics,
	}
}

// Handle is the SSE client's Handler; it publishes one feed payload.
func (b *Bridge) Handle(ctx context.Context, payload []byte) error {
	var evt model.ChangeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		b.m.DecodeErrors.Inc()
		b.logger.Debug("skipping undecodable feed payload", zap.Error(err))
		return nil
	}
	if evt.IsCanary() {
		b.m.CanaryDropped.Inc()
		return nil
	}
	if err := b.pub.PublishWithRetries(ctx, b.subject, payload, b.retries); err != nil {
		b.logger.Warn("publish failed", zap.Error(err))
		return err
	}
	return nil
}
