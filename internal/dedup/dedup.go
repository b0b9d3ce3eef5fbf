package dedup

import (
	"context"
	"sync"
)

// Store remembers event ids long enough to drop bus redeliveries before the
// sink write. Seen only checks; Mark records the id after the row has been
// written. Marking only after the write keeps a failed write retryable, at
// the cost of a small window where a concurrent duplicate lands twice.
type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// MemoryStore is an unbounded in-process store for tests and single-node runs.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) Seen(ctx context.Context, eventID string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *MemoryStore) Mark(ctx context.Context, eventID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID] = struct{}{}
	return nil
}
