package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Handler receives the data payload of one SSE message frame.
type Handler func(ctx context.Context, payload []byte) error

// Client streams server-sent events from the recentchange feed. It owns
// reconnection; frame payloads are handed off as opaque bytes.
type Client struct {
	url        string
	userAgent  string
	httpClient *http.Client
	retryWait  time.Duration
	logger     *zap.Logger
}

func NewClient(url, userAgent string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        url,
		userAgent:  userAgent,
		httpClient: &http.Client{},
		retryWait:  time.Second,
		logger:     logger,
	}
}

// Run consumes the feed until the context is cancelled, reconnecting with
// capped exponential backoff when the connection drops. Handler errors are
// logged and do not stop the stream.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	backoff := c.retryWait
	maxBackoff := 30 * c.retryWait

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		body, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("stream connection failed, will retry", zap.Error(err))
			backoff = c.sleepWithBackoff(ctx, backoff, maxBackoff)
			continue
		}
		backoff = c.retryWait

		err = c.consume(ctx, body, handle)
		_ = body.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("stream interrupted, reconnecting", zap.Error(err))
		backoff = c.sleepWithBackoff(ctx, backoff, maxBackoff)
	}
}

func (c *Client) connect(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// The feed requires an identifying user agent.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server response: %d %s", resp.StatusCode, resp.Status)
	}
	c.logger.Info("connected to change stream", zap.String("url", c.url))
	return resp.Body, nil
}

// consume scans SSE frames and dispatches data payloads of "message" events.
func (c *Client) consume(ctx context.Context, r io.Reader, handle Handler) error {
	scanner := bufio.NewScanner(r)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	// Per the SSE spec the event type defaults to "message" and resets at
	// each blank line; data may span multiple lines.
	eventType := "message"
	var data []byte

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()

		switch {
		case len(line) == 0:
			if eventType == "message" && len(data) > 0 {
				if err := handle(ctx, data); err != nil {
					c.logger.Warn("handler failed, skipping event", zap.Error(err))
				}
			}
			eventType = "message"
			data = nil
		case bytes.HasPrefix(line, []byte("event: ")):
			eventType = string(line[7:])
		case bytes.HasPrefix(line, []byte("data: ")):
			payload := line[6:]
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, payload...)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream closed by server")
}

func (c *Client) sleepWithBackoff(ctx context.Context, current, limit time.Duration) time.Duration {
	select {
	case <-ctx.Done():
		return current
	case <-time.After(current):
	}
	next := current * 2
	if next > limit {
		next = limit
	}
	return next
}
