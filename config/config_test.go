package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 0.7, cfg.Model.Temperature)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, "memorymesh", cfg.Vector.Collection)
	assert.Equal(t, "cosine", cfg.Vector.Distance)
	assert.Equal(t, "semantic", cfg.Agent.StoreType)
	assert.Equal(t, 60, cfg.Agent.FilterMinutes)
	assert.Equal(t, 25, cfg.Agent.RecursionLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MEMORYMESH_PROVIDER", "openai")
	t.Setenv("MEMORYMESH_MODEL", "gpt-4o")
	t.Setenv("MEMORYMESH_STORE_TYPE", "episodic")
	t.Setenv("MEMORYMESH_FILTER_MINUTES", "15")
	t.Setenv("MEMORYMESH_CHECKPOINT_BACKEND", "sqlite")
	t.Setenv("MEMORYMESH_CHECKPOINT_PATH", "/tmp/cp.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Model)
	assert.Equal(t, "episodic", cfg.Agent.StoreType)
	assert.Equal(t, 15, cfg.Agent.FilterMinutes)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)
	assert.Equal(t, "/tmp/cp.db", cfg.Checkpoint.Path)
}
