package core

import "errors"

// Error taxonomy of the runtime. Callers classify failures with errors.Is;
// producing code wraps these sentinels via fmt.Errorf("%w: ...") so the
// original cause stays inspectable.
var (
	// ErrInvalidConfig signals a bad store type or missing required
	// configuration. Fatal, raised at call time before any store I/O.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrRetrieval signals a failed similarity lookup. Callers degrade to an
	// empty-memory prompt: an agent without memory context is preferable to
	// one that cannot respond.
	ErrRetrieval = errors.New("memory retrieval failed")

	// ErrModelCall signals a failed chat model invocation. Surfaced to the
	// caller as an error envelope.
	ErrModelCall = errors.New("model call failed")

	// ErrCheckpoint signals a checkpoint store failure. Acquisition failures
	// are fatal for the call; pruning failures are logged and swallowed.
	ErrCheckpoint = errors.New("checkpoint store failure")

	// ErrConsolidation signals a failed memory extraction. Never fatal to
	// the triggering turn.
	ErrConsolidation = errors.New("memory consolidation failed")

	// ErrCollection signals a genuine vector store collection lifecycle
	// failure ("already exists" is not an error).
	ErrCollection = errors.New("collection operation failed")
)
