package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/memory"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/tool"
)

const (
	// DefaultRecursionLimit bounds the tool dispatch loop of one turn.
	DefaultRecursionLimit = 25

	placeholderContent = "We are unable to process your request at the moment. Please try again."

	lookingUpStatus  = "Looking up the knowledge base..."
	processingStatus = "Processing the knowledge base..."

	errorCode = 500
)

// Options configures a MemoryAgent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	// RecursionLimit bounds how many model/tool round trips one turn may
	// take.
	RecursionLimit int

	// RefreshCheckpointer enables pruning of checkpoints older than the
	// manager's retention window at the start of every call.
	RefreshCheckpointer bool

	// Tools are additional tools registered next to the built-in memory
	// search and manage tools.
	Tools []tool.Tool

	// Logger is the agent's logger. Defaults to a no-op logger.
	Logger logging.Logger
}

// MemoryAgent wires the chat model, the memory manager, the tool set and
// the checkpoint store into the invoke and stream protocols.
type MemoryAgent struct {
	llm         model.Model
	mgr         *memory.Manager
	checkpoints core.CheckpointStore
	tools       map[string]tool.Tool
	limit       int
	refresh     bool
	logger      logging.Logger

	mu       sync.Mutex
	threadID string
	g        *graph
}

// New creates a memory agent. The memory search and manage tools are
// registered automatically; additional tools come from the options.
func New(llm model.Model, mgr *memory.Manager, checkpoints core.CheckpointStore, optFns ...func(o *Options)) (*MemoryAgent, error) {
	opts := Options{
		RecursionLimit:      DefaultRecursionLimit,
		RefreshCheckpointer: true,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if llm == nil {
		return nil, fmt.Errorf("%w: model must not be nil", core.ErrInvalidConfig)
	}
	if mgr == nil {
		return nil, fmt.Errorf("%w: memory manager must not be nil", core.ErrInvalidConfig)
	}
	if checkpoints == nil {
		return nil, fmt.Errorf("%w: checkpoint store must not be nil", core.ErrInvalidConfig)
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}

	tools := map[string]tool.Tool{}
	for _, t := range []tool.Tool{tool.NewMemorySearchTool(mgr), tool.NewMemoryManageTool(mgr)} {
		tools[t.Name()] = t
	}
	for _, t := range opts.Tools {
		tools[t.Name()] = t
	}

	return &MemoryAgent{
		llm:         llm,
		mgr:         mgr,
		checkpoints: checkpoints,
		tools:       tools,
		limit:       opts.RecursionLimit,
		refresh:     opts.RefreshCheckpointer,
		logger:      opts.Logger,
		threadID:    mgr.Namespace().ThreadID,
	}, nil
}

// resolveThread applies a per-call thread override. The override sticks for
// later calls, mirroring how a conversation adopts its thread on first
// contact. The memory namespace stays as constructed.
func (a *MemoryAgent) resolveThread(threadID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if threadID != "" {
		a.threadID = threadID
	}
	return a.threadID
}

// buildGraph returns the memoized react graph, constructing it on first
// use. Repeated calls are idempotent; the graph holds no per-turn state so
// a rebound checkpoint handle is passed per run instead.
func (a *MemoryAgent) buildGraph() *graph {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.g == nil {
		a.logger.Info("building agent graph", "tools", len(a.tools), "recursion_limit", a.limit)
		a.g = newGraph(a.llm, a.mgr, a.tools, a.limit, a.logger)
	}
	return a.g
}

// prune removes stale checkpoints for the thread. Best effort: a pruning
// failure is logged, never fails the turn.
func (a *MemoryAgent) prune(ctx context.Context, handle core.CheckpointHandle, threadID string) {
	if !a.refresh {
		return
	}
	maxAge := time.Duration(a.mgr.FilterMinutes()) * time.Minute
	removed, err := handle.DeleteOlderThan(ctx, threadID, maxAge)
	if err != nil {
		a.logger.Warn("checkpoint pruning failed", "thread_id", threadID, "error", err)
		return
	}
	if removed > 0 {
		a.logger.Debug("pruned stale checkpoints", "thread_id", threadID, "removed", removed)
	}
}

// consolidate triggers memory extraction for a finished response. Failures
// never surface to the turn; the user-visible result is already determined.
func (a *MemoryAgent) consolidate(ctx context.Context, threadID, response string) {
	_, _, err := a.mgr.Consolidate(ctx, []core.Message{core.AssistantMessage(response)})
	if err != nil {
		a.logger.Warn("consolidation failed", "thread_id", threadID, "error", err)
	}
}

// Invoke runs one full turn and returns exactly one envelope. It never
// returns an error: every failure, from checkpoint acquisition to the model
// call, is folded into an error envelope. When the graph produces no output
// message the placeholder result asking the user to retry is returned.
func (a *MemoryAgent) Invoke(ctx context.Context, prompt, threadID string) core.Envelope {
	tid := a.resolveThread(threadID)

	result := core.Result{
		IsTaskComplete:   false,
		RequireUserInput: true,
		Content:          placeholderContent,
	}

	err := a.withCheckpoint(ctx, tid, func(handle core.CheckpointHandle) error {
		return a.buildGraph().run(ctx, handle, tid, prompt, func(ev GraphEvent) error {
			if ev.Output != "" {
				result = core.Result{IsTaskComplete: true, Content: ev.Output}
				a.consolidate(ctx, tid, ev.Output)
			}
			return nil
		})
	})
	if err != nil {
		a.logger.Error("invoke failed", "thread_id", tid, "error", err)
		return core.NewErrorEnvelope(tid, errorCode, err.Error())
	}

	return core.NewResultEnvelope(tid, result)
}

// Stream runs one turn and yields an envelope per graph event in arrival
// order. An "agent" step reports the knowledge base lookup, a "tools" step
// reports tool processing, and a step carrying final text yields the
// content envelope and triggers consolidation. On failure one diagnostic
// error envelope is emitted and the error is then delivered on the error
// channel, so consumers can tell abnormal termination from completion.
//
// Both channels close when the stream ends. Abandoning consumption requires
// cancelling ctx; the checkpoint handle is released either way.
func (a *MemoryAgent) Stream(ctx context.Context, prompt, threadID string) (<-chan core.Envelope, <-chan error) {
	tid := a.resolveThread(threadID)

	envCh := make(chan core.Envelope)
	errCh := make(chan error, 1)

	send := func(env core.Envelope) error {
		select {
		case envCh <- env:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	go func() {
		defer close(envCh)
		defer close(errCh)

		err := a.withCheckpoint(ctx, tid, func(handle core.CheckpointHandle) error {
			return a.buildGraph().run(ctx, handle, tid, prompt, func(ev GraphEvent) error {
				if ev.Output != "" {
					a.consolidate(ctx, tid, ev.Output)
					return send(core.NewResultEnvelope(tid, core.Result{
						IsTaskComplete: true,
						Content:        ev.Output,
					}))
				}

				switch ev.Kind {
				case EventTools:
					return send(core.NewResultEnvelope(tid, core.Result{
						IsTaskComplete: false,
						Content:        processingStatus,
					}))
				default:
					return send(core.NewResultEnvelope(tid, core.Result{
						IsTaskComplete: true,
						Content:        lookingUpStatus,
					}))
				}
			})
		})
		if err != nil {
			a.logger.Error("stream failed", "thread_id", tid, "error", err)
			// Best effort diagnostic envelope; the authoritative signal is
			// the error channel.
			_ = send(core.NewErrorEnvelope(tid, errorCode, err.Error()))
			errCh <- err
		}
	}()

	return envCh, errCh
}

// withCheckpoint acquires a scoped checkpoint handle, prunes stale state
// when refresh is enabled, runs fn and releases the handle on every exit
// path.
func (a *MemoryAgent) withCheckpoint(ctx context.Context, threadID string, fn func(handle core.CheckpointHandle) error) error {
	handle, err := a.checkpoints.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquire handle: %v", core.ErrCheckpoint, err)
	}
	defer func() {
		if err := handle.Release(); err != nil {
			a.logger.Warn("checkpoint handle release failed", "thread_id", threadID, "error", err)
		}
	}()

	a.prune(ctx, handle, threadID)
	return fn(handle)
}

// MarshalEnvelope renders an envelope in its wire shape. Convenience for
// transports and the CLI.
func MarshalEnvelope(env core.Envelope) (string, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
