package core

import (
	"context"
	"time"
)

// Checkpoint is the serialized per-thread conversation state enabling
// multi-turn continuity. Created on the first turn, updated every turn, and
// pruned by age when refresh is enabled at invocation start.
type Checkpoint struct {
	ThreadID string    `json:"thread_id"`
	Messages []Message `json:"messages"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// NewCheckpoint creates an empty checkpoint for a thread.
func NewCheckpoint(threadID string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{ThreadID: threadID, Created: now, Updated: now}
}

// CheckpointStore hands out scoped handles onto the checkpoint backend.
// Handles are acquired at call start and released at call end on every exit
// path; they are never held across two separate invocations.
type CheckpointStore interface {
	Acquire(ctx context.Context) (CheckpointHandle, error)
}

// CheckpointHandle is a connection-backed scoped handle. Release must be
// safe to call on every exit path, including after errors and early
// cancellation, and must be idempotent.
type CheckpointHandle interface {
	// Get returns the checkpoint for a thread, or nil when none exists.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)

	// Put creates or replaces the checkpoint for its thread.
	Put(ctx context.Context, cp *Checkpoint) error

	// DeleteOlderThan removes checkpoints for the thread whose age exceeds
	// maxAge, returning the number removed. A no-op when none qualify.
	DeleteOlderThan(ctx context.Context, threadID string, maxAge time.Duration) (int, error)

	// Release returns the handle's resources to the store.
	Release() error
}
