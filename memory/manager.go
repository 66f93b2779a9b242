package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/model"
)

const (
	// DefaultFilterMinutes is the default checkpoint retention window.
	DefaultFilterMinutes = 60

	// DefaultRetrieveLimit is the default number of memories injected into
	// the prompt.
	DefaultRetrieveLimit = 5

	// DefaultConsolidationDelay is the default wait before a background
	// consolidation task runs.
	DefaultConsolidationDelay = 10 * time.Second

	baseSystemMessage = "You are a helpful assistant."
)

// Options configures a Manager instance.
//
// Use functional options with NewManager to override defaults.
type Options struct {
	// ThreadID scopes the namespace to a conversation thread. Empty means a
	// fresh random thread.
	ThreadID string

	// UserID scopes the namespace to a user. Empty collapses to the
	// wildcard, sharing memories across users of the thread.
	UserID string

	// SessionID scopes the namespace to a session. Empty collapses to the
	// wildcard.
	SessionID string

	// ActionType selects hotpath or background consolidation.
	ActionType core.ActionType

	// StoreType selects the extraction schema and prompt formatting.
	StoreType core.StoreType

	// FilterMinutes is the checkpoint retention window in minutes.
	FilterMinutes int

	// RetrieveLimit caps how many memories a retrieval returns.
	RetrieveLimit int

	// ConsolidationDelay is how long background tasks wait before running.
	ConsolidationDelay time.Duration

	// CacheTTL bounds how long retrieval results are served from cache.
	CacheTTL time.Duration

	// Logger is the manager's logger. Defaults to a no-op logger.
	Logger logging.Logger
}

// Manager coordinates retrieval, prompt construction and consolidation for
// one namespace. Safe for concurrent use.
type Manager struct {
	namespace     core.Namespace
	storeType     core.StoreType
	actionType    core.ActionType
	filterMinutes int
	retrieveLimit int
	delay         time.Duration
	cacheTTL      time.Duration

	llm       model.Model
	store     core.VectorStore
	cache     *ristretto.Cache
	scheduler *Scheduler
	logger    logging.Logger
}

// NewManager creates a memory manager bound to the namespace derived from
// the thread, user and session identifiers. The store type is validated
// here and again on every consolidation.
func NewManager(llm model.Model, store core.VectorStore, optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{
		ActionType:         core.ActionHotpath,
		StoreType:          core.StoreTypeSemantic,
		FilterMinutes:      DefaultFilterMinutes,
		RetrieveLimit:      DefaultRetrieveLimit,
		ConsolidationDelay: DefaultConsolidationDelay,
		CacheTTL:           5 * time.Second,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if llm == nil {
		return nil, fmt.Errorf("%w: model must not be nil", core.ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store must not be nil", core.ErrInvalidConfig)
	}
	if err := opts.StoreType.Validate(); err != nil {
		return nil, err
	}
	if opts.ActionType != core.ActionHotpath && opts.ActionType != core.ActionBackground {
		return nil, fmt.Errorf("%w: action type must be one of [hotpath background], got %q", core.ErrInvalidConfig, opts.ActionType)
	}
	if opts.FilterMinutes <= 0 {
		opts.FilterMinutes = DefaultFilterMinutes
	}
	if opts.RetrieveLimit <= 0 {
		opts.RetrieveLimit = DefaultRetrieveLimit
	}
	if opts.ThreadID == "" {
		opts.ThreadID = util.NewID()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: retrieval cache: %v", core.ErrInvalidConfig, err)
	}

	ns := core.NewNamespace(opts.ThreadID, opts.UserID, opts.SessionID)
	opts.Logger.Info("memory manager initialized",
		"namespace", ns.Key(), "store_type", opts.StoreType, "action_type", opts.ActionType)

	return &Manager{
		namespace:     ns,
		storeType:     opts.StoreType,
		actionType:    opts.ActionType,
		filterMinutes: opts.FilterMinutes,
		retrieveLimit: opts.RetrieveLimit,
		delay:         opts.ConsolidationDelay,
		cacheTTL:      opts.CacheTTL,
		llm:           llm,
		store:         store,
		cache:         cache,
		scheduler:     NewScheduler(opts.Logger),
		logger:        opts.Logger,
	}, nil
}

// Namespace returns the namespace this manager is bound to.
func (m *Manager) Namespace() core.Namespace { return m.namespace }

// StoreType returns the configured store type.
func (m *Manager) StoreType() core.StoreType { return m.storeType }

// FilterMinutes returns the checkpoint retention window in minutes.
func (m *Manager) FilterMinutes() int { return m.filterMinutes }

// RetrieveContext runs a similarity search scoped to the manager's
// namespace, using the last user message as the query. Failures wrap
// ErrRetrieval so callers can degrade to a memory-free prompt. Recent
// results are served from a short-lived cache.
func (m *Manager) RetrieveContext(ctx context.Context, messages []core.Message) ([]core.SearchResult, error) {
	query := core.LastUserMessage(messages)
	if query == "" {
		return nil, nil
	}

	cacheKey := m.namespace.Key() + "\x00" + query
	if cached, ok := m.cache.Get(cacheKey); ok {
		if results, ok := cached.([]core.SearchResult); ok {
			return results, nil
		}
	}

	results, err := m.store.Search(ctx, m.namespace, query, m.retrieveLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRetrieval, err)
	}

	m.cache.SetWithTTL(cacheKey, results, int64(len(results)+1), m.cacheTTL)
	return results, nil
}

// BuildPrompt prepends the memory-augmented system message to the
// transcript. A retrieval failure is logged and degrades to the base system
// message; it never fails the turn.
func (m *Manager) BuildPrompt(ctx context.Context, messages []core.Message) []core.Message {
	results, err := m.RetrieveContext(ctx, messages)
	if err != nil {
		m.logger.Warn("memory retrieval failed, continuing without memories",
			"namespace", m.namespace.Key(), "error", err)
		results = nil
	}

	system := m.formatSystemMessage(results)
	prompt := make([]core.Message, 0, len(messages)+1)
	prompt = append(prompt, core.SystemMessage(system))
	prompt = append(prompt, messages...)
	return prompt
}

// formatSystemMessage renders retrieved memories into the system message in
// the store type's format.
func (m *Manager) formatSystemMessage(results []core.SearchResult) string {
	if len(results) == 0 {
		return baseSystemMessage
	}

	var b strings.Builder
	b.WriteString(baseSystemMessage)

	switch m.storeType {
	case core.StoreTypeEpisodic:
		b.WriteString("\n\n### EPISODIC MEMORY:")
		for i, r := range results {
			fmt.Fprintf(&b, "\nEpisode %d:\n%s", i+1, r.Item.Text())
		}
	case core.StoreTypeUser:
		fmt.Fprintf(&b, "\n\n<User Profile>\n%s\n</User Profile>", results[0].Item.Text())
	default:
		b.WriteString("\n\n## Memories\n<memories>")
		for _, r := range results {
			fmt.Fprintf(&b, "\n- %s", r.Item.Text())
		}
		b.WriteString("\n</memories>")
	}
	return b.String()
}

// Store writes memory items directly into the namespace, bypassing
// extraction. Used by the manage_memory tool and ingestion wiring.
func (m *Manager) Store(ctx context.Context, items []core.MemoryItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].Kind == "" {
			items[i].Kind = m.storeType
		}
	}
	if err := m.store.Upsert(ctx, m.namespace, items); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConsolidation, err)
	}
	return nil
}

// Consolidate extracts memory items from the given transcript and writes
// them into the namespace. With hotpath action the extraction runs inline
// and the stored items are returned. With background action the work is
// submitted to the scheduler after the configured delay and the returned
// Task lets callers observe completion; background failures are logged, not
// surfaced.
//
// The store type is re-validated on every call.
func (m *Manager) Consolidate(ctx context.Context, messages []core.Message) ([]core.MemoryItem, *Task, error) {
	if err := m.storeType.Validate(); err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, nil
	}

	if m.actionType == core.ActionBackground {
		task := m.scheduler.Submit(func(taskCtx context.Context) error {
			_, err := m.extractAndStore(taskCtx, messages)
			return err
		}, m.delay)
		return nil, task, nil
	}

	items, err := m.extractAndStore(ctx, messages)
	if err != nil {
		return nil, nil, err
	}
	return items, nil, nil
}

func (m *Manager) extractAndStore(ctx context.Context, messages []core.Message) ([]core.MemoryItem, error) {
	started := time.Now()

	items, err := m.extract(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		m.logger.Debug("consolidation extracted nothing", "namespace", m.namespace.Key())
		return nil, nil
	}

	if err := m.store.Upsert(ctx, m.namespace, items); err != nil {
		return nil, fmt.Errorf("%w: store extracted items: %v", core.ErrConsolidation, err)
	}

	m.logger.Info("consolidation complete",
		"namespace", m.namespace.Key(),
		"store_type", m.storeType,
		"items", len(items),
		"duration", time.Since(started))
	return items, nil
}
