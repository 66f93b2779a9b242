// Package checkpoint contains CheckpointStore implementations: a durable
// SQLite-backed store and a volatile in-memory store for tests and demos.
// The store interface and Checkpoint type reside in the core package.
//
// A thread accumulates one checkpoint row per turn; Get returns the most
// recent one and DeleteOlderThan prunes by age. Handles are scoped per
// invocation: acquired at call start, released on every exit path.
package checkpoint
