package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wikiflow/internal/bus"
	"wikiflow/internal/dedup"
	"wikiflow/internal/metrics"
	"wikiflow/internal/pipeline"
	"wikiflow/internal/sink"

	"go.uber.org/zap"
)

// Engine coordinates the bus-to-sink flow: a dispatcher pulls batches from
// the bus and a bounded worker pool runs the per-record pipeline. A message
// is acked only after a successful sink write or an explicit drop decision;
// write failures nack for redelivery.
type Engine struct {
	sub        bus.Subscriber
	pipe       *pipeline.Pipeline
	writer     sink.Writer
	dedupStore dedup.Store // nil disables deduplication
	workers    int
	fetchBatch int
	logger     *zap.Logger
	m          *metrics.Metrics
}

func NewEngine(sub bus.Subscriber, pipe *pipeline.Pipeline, writer sink.Writer, dedupStore dedup.Store, workers, fetchBatch int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if fetchBatch <= 0 {
		fetchBatch = 1
	}
	return &Engine{
		sub:        sub,
		pipe:       pipe,
		writer:     writer,
		dedupStore: dedupStore,
		workers:    workers,
		fetchBatch: fetchBatch,
		logger:     logger,
		m:          metrics.GlobalMetrics,
	}
}

// Run processes until the context is cancelled, then drains: queued and
// in-flight records finish, and no new messages are fetched.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", zap.Int("workers", e.workers), zap.Int("fetch_batch", e.fetchBatch))

	if err := e.sub.Connect(); err != nil {
		return fmt.Errorf("subscriber connect: %w", err)
	}
	defer func() { _ = e.sub.Close() }()

	if err := e.writer.Open(ctx); err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer func() { _ = e.writer.Close() }()

	queue := make(chan *bus.Message, e.fetchBatch*2)

	// Drain context outlives cancellation so in-flight writes can finish.
	drainCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range queue {
				e.handle(drainCtx, msg)
			}
		}()
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for ctx.Err() == nil {
		msgs, err := e.sub.Fetch(ctx, e.fetchBatch)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.logger.Warn("bus fetch failed, will retry", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		for _, msg := range msgs {
			e.m.Consumed.Inc()
			queue <- msg
		}
		e.m.QueueUtilization.Set(float64(len(queue)) / float64(cap(queue)))
	}

	close(queue)
	wg.Wait()
	e.logger.Info("engine drained")
	return nil
}

// handle runs one message through the pipeline and resolves its ack. Every
// path either acks (row written, or record dropped on purpose) or nacks
// (sink write failed).
func (e *Engine) handle(ctx context.Context, msg *bus.Message) {
	start := time.Now()
	defer func() {
		e.m.ProcessLatency.Observe(time.Since(start).Seconds())
	}()

	row, err := e.pipe.Process(msg.Data)
	if row == nil {
		// Dropped or filtered; either way the drop decision is final, so
		// the message must not be redelivered.
		if err != nil {
			e.logger.Debug("record dropped", zap.Error(err))
		}
		e.ack(msg)
		return
	}

	if e.dedupStore != nil {
		seen, derr := e.dedupStore.Seen(ctx, row.EventID)
		if derr != nil {
			// Dedup is best-effort; a store failure must not lose data.
			e.logger.Warn("dedup store unavailable, writing anyway", zap.Error(derr))
		} else if seen {
			e.m.DedupHits.Inc()
			e.ack(msg)
			return
		}
	}

	if err := e.writer.Write(ctx, row); err != nil {
		e.m.WriteErrors.Inc()
		e.logger.Warn("sink write failed, nacking for redelivery", zap.String("event_id", row.EventID), zap.Error(err))
		if nerr := msg.Nack(); nerr != nil {
			e.logger.Warn("nack failed", zap.Error(nerr))
		}
		return
	}
	e.m.RowsWritten.Inc()

	// Mark only after the row landed; a failed write stays retryable and a
	// redelivered copy is still written.
	if e.dedupStore != nil {
		if derr := e.dedupStore.Mark(ctx, row.EventID); derr != nil {
			e.logger.Warn("dedup mark failed", zap.String("event_id", row.EventID), zap.Error(derr))
		}
	}
	e.ack(msg)
}

func (e *Engine) ack(msg *bus.Message) {
	if err := msg.Ack(); err != nil {
		e.logger.Warn("ack failed", zap.Error(err))
	}
}
