// Package memorymesh provides a high-level façade over the memory-augmented
// agent runtime. Most applications interact with this package by:
//  1. Creating an agent via New() (optionally overriding the model provider,
//     vector store, embedder and checkpoint store)
//  2. Calling Invoke for a single response envelope or Stream for
//     incremental envelopes
//
// All defaults are safe for local development and testing: a mock model, an
// in-process vector store with a deterministic embedder, and an in-memory
// checkpoint store. Production deployments supply a real provider and
// durable backends.
package memorymesh

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/memorymesh/agent"
	"github.com/hupe1980/memorymesh/checkpoint"
	"github.com/hupe1980/memorymesh/config"
	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/memory"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/model/anthropic"
	"github.com/hupe1980/memorymesh/model/openai"
	"github.com/hupe1980/memorymesh/tool"
	"github.com/hupe1980/memorymesh/vectorstore/chromem"
)

// Options configures the assembled runtime.
type Options struct {
	// ModelConfig addresses the chat model provider. Provider selects the
	// adapter: "openai", "anthropic" or "mock".
	ModelConfig model.Config

	// Model overrides the provider lookup with a ready model instance.
	Model model.Model

	// ThreadID, UserID and SessionID shape the memory namespace. Empty user
	// and session collapse to wildcards.
	ThreadID  string
	UserID    string
	SessionID string

	// StoreType selects episodic, user or semantic memory.
	StoreType core.StoreType

	// ActionType selects hotpath or background consolidation.
	ActionType core.ActionType

	// FilterMinutes is the checkpoint retention window.
	FilterMinutes int

	// RecursionLimit bounds the tool dispatch loop per turn.
	RecursionLimit int

	// RefreshCheckpointer enables checkpoint pruning at call start.
	RefreshCheckpointer bool

	// ConsolidationDelay is how long background consolidation waits.
	ConsolidationDelay time.Duration

	// VectorStore overrides the default in-process store.
	VectorStore core.VectorStore

	// CollectionName names the vector collection for the default store.
	CollectionName string

	// VectorPersistPath stores the default vector store on disk.
	VectorPersistPath string

	// Embedder overrides the default deterministic embedder.
	Embedder core.Embedder

	// CheckpointStore overrides the default in-memory store.
	CheckpointStore core.CheckpointStore

	// Tools are registered next to the built-in memory tools.
	Tools []tool.Tool

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// New assembles a ready MemoryAgent. Any unset dependency is initialized
// with a local implementation.
func New(optFns ...func(o *Options)) (*agent.MemoryAgent, error) {
	opts := Options{
		ModelConfig:         model.Config{Provider: "mock", Model: "mock", Temperature: 0.7},
		StoreType:           core.StoreTypeSemantic,
		ActionType:          core.ActionHotpath,
		FilterMinutes:       memory.DefaultFilterMinutes,
		RecursionLimit:      agent.DefaultRecursionLimit,
		RefreshCheckpointer: true,
		ConsolidationDelay:  memory.DefaultConsolidationDelay,
		CollectionName:      "memorymesh",
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	llm := opts.Model
	if llm == nil {
		var err error
		llm, err = buildModel(opts.ModelConfig)
		if err != nil {
			return nil, err
		}
	}

	embedder := opts.Embedder
	if embedder == nil {
		embedder = embedding.NewHashEmbedder(0)
	}

	vectors := opts.VectorStore
	if vectors == nil {
		store, err := chromem.New(embedder, func(o *chromem.Options) {
			o.CollectionName = opts.CollectionName
			o.PersistPath = opts.VectorPersistPath
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureCollection(context.Background(), core.CollectionConfig{
			Name:      opts.CollectionName,
			Dimension: embedder.Dimensions(),
			Distance:  core.DistanceCosine,
		}); err != nil {
			return nil, err
		}
		vectors = store
	}

	checkpoints := opts.CheckpointStore
	if checkpoints == nil {
		checkpoints = checkpoint.NewInMemoryStore()
	}

	mgr, err := memory.NewManager(llm, vectors, func(o *memory.Options) {
		o.ThreadID = opts.ThreadID
		o.UserID = opts.UserID
		o.SessionID = opts.SessionID
		o.StoreType = opts.StoreType
		o.ActionType = opts.ActionType
		o.FilterMinutes = opts.FilterMinutes
		o.ConsolidationDelay = opts.ConsolidationDelay
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return agent.New(llm, mgr, checkpoints, func(o *agent.Options) {
		o.RecursionLimit = opts.RecursionLimit
		o.RefreshCheckpointer = opts.RefreshCheckpointer
		o.Tools = opts.Tools
		o.Logger = opts.Logger
	})
}

// NewFromConfig assembles a MemoryAgent from environment-driven
// configuration, applying any additional overrides afterwards.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*agent.MemoryAgent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config must not be nil", core.ErrInvalidConfig)
	}

	var checkpoints core.CheckpointStore
	if cfg.Checkpoint.Backend == "sqlite" {
		store, err := checkpoint.NewSQLiteStore(checkpoint.ConnInfo{
			Host: cfg.Checkpoint.Host,
			Port: cfg.Checkpoint.Port,
			DB:   cfg.Checkpoint.DB,
			Path: cfg.Checkpoint.Path,
		})
		if err != nil {
			return nil, err
		}
		checkpoints = store
	}

	base := func(o *Options) {
		o.ModelConfig = model.Config{
			Model:       cfg.Model.Model,
			Provider:    cfg.Model.Provider,
			APIKey:      cfg.Model.APIKey,
			BaseURL:     cfg.Model.BaseURL,
			Temperature: cfg.Model.Temperature,
		}
		o.StoreType = core.StoreType(cfg.Agent.StoreType)
		o.ActionType = core.ActionType(cfg.Agent.ActionType)
		o.FilterMinutes = cfg.Agent.FilterMinutes
		o.RecursionLimit = cfg.Agent.RecursionLimit
		o.CollectionName = cfg.Vector.Collection
		o.VectorPersistPath = cfg.Vector.PersistPath
		o.CheckpointStore = checkpoints
	}

	return New(append([]func(o *Options){base}, optFns...)...)
}

// buildModel maps a provider-neutral model config onto an adapter.
func buildModel(cfg model.Config) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "mock", "":
		return model.NewMockModel(cfg.Model, "mock"), nil
	default:
		return nil, fmt.Errorf("%w: unknown model provider %q", core.ErrInvalidConfig, cfg.Provider)
	}
}
