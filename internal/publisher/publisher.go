package publisher

import (
	"context"

	"go.uber.org/zap"
)

// Publisher pushes raw change payloads onto the bus.
type Publisher interface {
	Connect() error
	Publish(ctx context.Context, subject string, data []byte) error
	PublishWithRetries(ctx context.Context, subject string, data []byte, maxRetries int) error
	Close() error
}

// NoopPublisher is a stub that records the last subject published.
type NoopPublisher struct {
	LastSubject string
	Count       int
	logger      *zap.Logger
}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{logger: zap.NewNop()}
}

func (p *NoopPublisher) Connect() error { return nil }

func (p *NoopPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_ = ctx
	_ = data
	p.LastSubject = subject
	p.Count++
	p.logger.Debug("noop publisher invoked", zap.String("subject", subject))
	return nil
}

func (p *NoopPublisher) PublishWithRetries(ctx context.Context, subject string, data []byte, maxRetries int) error {
	_ = maxRetries
	return p.Publish(ctx, subject, data)
}

func (p *NoopPublisher) Close() error { return nil }
