// Package config loads runtime configuration from the environment. Every
// knob has a sensible default so a zero-config start works against the
// in-process backends.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ModelConfig addresses the chat model provider.
type ModelConfig struct {
	Model       string  `env:"MEMORYMESH_MODEL" envDefault:"gpt-4o-mini"`
	Provider    string  `env:"MEMORYMESH_PROVIDER" envDefault:"mock"`
	APIKey      string  `env:"MEMORYMESH_API_KEY"`
	BaseURL     string  `env:"MEMORYMESH_BASE_URL"`
	Temperature float64 `env:"MEMORYMESH_TEMPERATURE" envDefault:"0.7"`
}

// CheckpointConfig addresses the checkpoint backend. Host, port and db are
// kept for networked backends; the SQLite backend uses Path.
type CheckpointConfig struct {
	Backend string `env:"MEMORYMESH_CHECKPOINT_BACKEND" envDefault:"memory"`
	Host    string `env:"MEMORYMESH_CHECKPOINT_HOST" envDefault:"localhost"`
	Port    int    `env:"MEMORYMESH_CHECKPOINT_PORT" envDefault:"6379"`
	DB      int    `env:"MEMORYMESH_CHECKPOINT_DB" envDefault:"0"`
	Path    string `env:"MEMORYMESH_CHECKPOINT_PATH"`
}

// VectorConfig addresses the vector store backend.
type VectorConfig struct {
	Collection  string `env:"MEMORYMESH_VECTOR_COLLECTION" envDefault:"memorymesh"`
	PersistPath string `env:"MEMORYMESH_VECTOR_PERSIST_PATH"`
	Dimension   int    `env:"MEMORYMESH_VECTOR_DIMENSION" envDefault:"384"`
	Distance    string `env:"MEMORYMESH_VECTOR_DISTANCE" envDefault:"cosine"`
}

// AgentConfig holds invocation engine settings.
type AgentConfig struct {
	StoreType      string `env:"MEMORYMESH_STORE_TYPE" envDefault:"semantic"`
	ActionType     string `env:"MEMORYMESH_ACTION_TYPE" envDefault:"hotpath"`
	FilterMinutes  int    `env:"MEMORYMESH_FILTER_MINUTES" envDefault:"60"`
	RecursionLimit int    `env:"MEMORYMESH_RECURSION_LIMIT" envDefault:"25"`
}

// Config is the full runtime configuration.
type Config struct {
	Model      ModelConfig
	Checkpoint CheckpointConfig
	Vector     VectorConfig
	Agent      AgentConfig
	LogLevel   string `env:"MEMORYMESH_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
