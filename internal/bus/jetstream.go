package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// JetStreamSubscriber is a durable pull consumer over the change stream.
// Unacked messages accumulate at the server up to MaxAckPending, which is
// where backpressure lives; nothing buffers unboundedly in process.
type JetStreamSubscriber struct {
	opts   JetStreamOptions
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *zap.Logger
}

type JetStreamOptions struct {
	URLs           []string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	FetchWait      time.Duration
	StreamName     string
	Subject        string
	ConsumerName   string
	MaxAckPending  int
}

func NewJetStreamSubscriber(opts JetStreamOptions, logger *zap.Logger) *JetStreamSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JetStreamSubscriber{opts: opts, logger: logger}
}

func (s *JetStreamSubscriber) Connect() error {
	if len(s.opts.URLs) == 0 {
		return fmt.Errorf("no NATS URLs provided")
	}
	natsOpts := []nats.Option{
		nats.Timeout(s.opts.ConnectTimeout),
		nats.Name(s.opts.ConsumerName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			s.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if s.opts.Username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(s.opts.Username, s.opts.Password))
	}

	nc, err := nats.Connect(strings.Join(s.opts.URLs, ","), natsOpts...)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		_ = nc.Drain()
		return fmt.Errorf("jetstream: %w", err)
	}

	maxPending := s.opts.MaxAckPending
	if maxPending <= 0 {
		maxPending = 1024
	}
	sub, err := js.PullSubscribe(s.opts.Subject, s.opts.ConsumerName,
		nats.BindStream(s.opts.StreamName),
		nats.AckExplicit(),
		nats.MaxAckPending(maxPending),
	)
	if err != nil {
		_ = nc.Drain()
		return fmt.Errorf("pull subscribe: %w", err)
	}
	s.nc = nc
	s.sub = sub
	s.logger.Info("subscribed to jetstream",
		zap.String("stream", s.opts.StreamName),
		zap.String("subject", s.opts.Subject),
		zap.String("consumer", s.opts.ConsumerName),
		zap.Int("max_ack_pending", maxPending))
	return nil
}

// Fetch pulls up to batch messages, waiting at most FetchWait. An empty
// result with a nil error means the wait elapsed with nothing to deliver.
func (s *JetStreamSubscriber) Fetch(ctx context.Context, batch int) ([]*Message, error) {
	if s.sub == nil {
		return nil, fmt.Errorf("subscriber not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := s.sub.Fetch(batch, nats.MaxWait(s.fetchWait()))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch: %w", err)
	}
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		m := m
		out = append(out, &Message{
			Data: m.Data,
			Ack:  func() error { return m.Ack() },
			Nack: func() error { return m.Nak() },
		})
	}
	return out, nil
}

func (s *JetStreamSubscriber) Close() error {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.logger.Info("closing nats connection")
		return s.nc.Drain()
	}
	return nil
}

func (s *JetStreamSubscriber) fetchWait() time.Duration {
	if s.opts.FetchWait > 0 {
		return s.opts.FetchWait
	}
	return 2 * time.Second
}
