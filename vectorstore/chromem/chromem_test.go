package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(context.Background(), core.CollectionConfig{Name: "test"}))
	return store
}

func TestStore_EnsureCollection(t *testing.T) {
	store, err := New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)

	ctx := context.Background()

	// Idempotent.
	require.NoError(t, store.EnsureCollection(ctx, core.CollectionConfig{Name: "test"}))
	require.NoError(t, store.EnsureCollection(ctx, core.CollectionConfig{Name: "test"}))

	// Cosine is the only supported metric.
	err = store.EnsureCollection(ctx, core.CollectionConfig{Name: "test", Distance: core.DistanceEuclidean})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestStore_SearchBeforeEnsure(t *testing.T) {
	store, err := New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)

	_, err = store.Search(context.Background(), core.NewNamespace("t1", "", ""), "anything", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCollection)
}

func TestStore_UpsertAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ns := core.NewNamespace("t1", "u1", "")

	items := []core.MemoryItem{
		{Kind: core.StoreTypeSemantic, Triple: &core.Triple{Subject: "user", Predicate: "likes", Object: "jazz"}},
		{Kind: core.StoreTypeSemantic, Triple: &core.Triple{Subject: "user", Predicate: "lives in", Object: "Berlin"}},
	}
	require.NoError(t, store.Upsert(ctx, ns, items))

	results, err := store.Search(ctx, ns, "user likes jazz", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Items round trip with their structured payloads intact.
	for _, r := range results {
		assert.Equal(t, ns, r.Item.Namespace)
		assert.Equal(t, core.StoreTypeSemantic, r.Item.Kind)
		require.NotNil(t, r.Item.Triple)
		assert.NotEmpty(t, r.Item.ID)
		assert.False(t, r.Item.CreatedAt.IsZero())
	}
}

func TestStore_SearchEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), core.NewNamespace("t1", "", ""), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_NamespaceIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	nsA := core.NewNamespace("t1", "alice", "")
	nsB := core.NewNamespace("t1", "bob", "")

	require.NoError(t, store.Upsert(ctx, nsA, []core.MemoryItem{
		{Kind: core.StoreTypeSemantic, Content: "alice prefers tea"},
	}))
	require.NoError(t, store.Upsert(ctx, nsB, []core.MemoryItem{
		{Kind: core.StoreTypeSemantic, Content: "bob prefers coffee"},
	}))

	results, err := store.Search(ctx, nsA, "beverage preference", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice prefers tea", results[0].Item.Content)
}

func TestStore_AddDocumentsDedupe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ns := core.NewNamespace("t1", "", "")

	docs := []core.Document{
		{Content: "The capital of France is Paris."},
		{Content: "Go is a statically typed language."},
	}
	stored, err := store.AddDocuments(ctx, ns, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	// Re-adding identical text stores nothing.
	stored, err = store.AddDocuments(ctx, ns, []core.Document{
		{Content: "The capital of France is Paris."},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)

	// A rephrased near-duplicate is not caught by the exact-text filter.
	stored, err = store.AddDocuments(ctx, ns, []core.Document{
		{Content: "Paris is the capital of France."},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestStore_SearchLimitClamped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ns := core.NewNamespace("t1", "", "")

	_, err := store.AddDocuments(ctx, ns, []core.Document{{Content: "only one document"}})
	require.NoError(t, err)

	// Asking for more results than stored documents must not error.
	results, err := store.Search(ctx, ns, "document", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_DeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DeleteCollection(ctx))

	_, err := store.Search(ctx, core.NewNamespace("t1", "", ""), "anything", 3)
	assert.ErrorIs(t, err, core.ErrCollection)
}
