package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/core"
)

// InMemoryStore is a volatile CheckpointStore implementation storing
// checkpoint rows in a process local map. It is safe for concurrent access
// and best suited for tests or ephemeral demos.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*core.Checkpoint
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]*core.Checkpoint)}
}

// Acquire implements core.CheckpointStore. Handles share the store's state;
// Release is a no-op kept for the scoped-resource discipline.
func (s *InMemoryStore) Acquire(_ context.Context) (core.CheckpointHandle, error) {
	return &memoryHandle{store: s}, nil
}

type memoryHandle struct {
	store *InMemoryStore
}

func (h *memoryHandle) Get(_ context.Context, threadID string) (*core.Checkpoint, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	rows := h.store.threads[threadID]
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[0]
	for _, cp := range rows[1:] {
		if cp.Created.After(latest.Created) {
			latest = cp
		}
	}
	clone := *latest
	clone.Messages = append([]core.Message(nil), latest.Messages...)
	return &clone, nil
}

func (h *memoryHandle) Put(_ context.Context, cp *core.Checkpoint) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	clone := *cp
	if clone.Created.IsZero() {
		clone.Created = time.Now().UTC()
	}
	clone.Updated = time.Now().UTC()
	clone.Messages = append([]core.Message(nil), cp.Messages...)
	h.store.threads[cp.ThreadID] = append(h.store.threads[cp.ThreadID], &clone)
	return nil
}

func (h *memoryHandle) DeleteOlderThan(_ context.Context, threadID string, maxAge time.Duration) (int, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	rows := h.store.threads[threadID]
	kept := rows[:0]
	removed := 0
	for _, cp := range rows {
		if cp.Created.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, cp)
	}
	h.store.threads[threadID] = kept
	return removed, nil
}

func (h *memoryHandle) Release() error { return nil }
