package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wikiflow/internal/model"
)

// Writer appends output rows to the destination table. Open connects and
// creates the table from the fixed schema if absent; Write is strictly
// append-only and must be safe for concurrent use.
type Writer interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, row *model.OutputRow) error
	Close() error
}

// WriteError reports a failed or rejected sink write. The engine surfaces
// it to the bus by nacking the message for redelivery.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink write: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// parseCanonical turns the canonical datetime string back into a UTC
// time.Time for drivers with typed datetime columns.
func parseCanonical(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
}

// MemoryWriter collects rows in memory. It backs tests and local runs
// without a sink service.
type MemoryWriter struct {
	mu   sync.Mutex
	rows []model.OutputRow

	// FailNext makes the next Write return a WriteError.
	FailNext bool
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Open(ctx context.Context) error {
	_ = ctx
	return nil
}

func (w *MemoryWriter) Write(ctx context.Context, row *model.OutputRow) error {
	_ = ctx
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailNext {
		w.FailNext = false
		return &WriteError{Err: fmt.Errorf("memory writer forced failure")}
	}
	w.rows = append(w.rows, *row)
	return nil
}

func (w *MemoryWriter) Close() error { return nil }

// Rows returns a copy of everything written so far.
func (w *MemoryWriter) Rows() []model.OutputRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.OutputRow, len(w.rows))
	copy(out, w.rows)
	return out
}
