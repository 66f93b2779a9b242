package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/model"
)

// stubStore is a canned VectorStore for manager tests. It records writes
// and serves fixed search results.
type stubStore struct {
	mu        sync.Mutex
	results   []core.SearchResult
	searchErr error
	upserted  []core.MemoryItem
	searches  int
}

var _ core.VectorStore = (*stubStore)(nil)

func (s *stubStore) EnsureCollection(context.Context, core.CollectionConfig) error { return nil }

func (s *stubStore) Upsert(_ context.Context, ns core.Namespace, items []core.MemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		item.Namespace = ns
		s.upserted = append(s.upserted, item)
	}
	return nil
}

func (s *stubStore) AddDocuments(_ context.Context, _ core.Namespace, docs []core.Document) (int, error) {
	return len(docs), nil
}

func (s *stubStore) Search(context.Context, core.Namespace, string, int) ([]core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

func (s *stubStore) DeleteCollection(context.Context) error { return nil }

func (s *stubStore) upsertedItems() []core.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MemoryItem(nil), s.upserted...)
}

func newTestManager(t *testing.T, store core.VectorStore, optFns ...func(o *Options)) *Manager {
	t.Helper()
	mgr, err := NewManager(model.NewMockModel("test", "mock"), store, optFns...)
	require.NoError(t, err)
	return mgr
}

func TestNewManager_Validation(t *testing.T) {
	llm := model.NewMockModel("test", "mock")
	store := &stubStore{}

	_, err := NewManager(nil, store)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewManager(llm, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewManager(llm, store, func(o *Options) { o.StoreType = "procedural" })
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewManager(llm, store, func(o *Options) { o.ActionType = "deferred" })
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestNewManager_NamespaceDefaults(t *testing.T) {
	mgr := newTestManager(t, &stubStore{}, func(o *Options) { o.ThreadID = "t1" })

	ns := mgr.Namespace()
	assert.Equal(t, "memories/t1/*/*", ns.Key())

	// Omitted thread gets a generated one.
	mgr = newTestManager(t, &stubStore{})
	assert.NotEmpty(t, mgr.Namespace().ThreadID)
}

func TestBuildPrompt_Semantic(t *testing.T) {
	store := &stubStore{results: []core.SearchResult{
		{Item: core.MemoryItem{Kind: core.StoreTypeSemantic, Triple: &core.Triple{Subject: "user", Predicate: "likes", Object: "jazz"}}, Score: 0.9},
	}}
	mgr := newTestManager(t, store, func(o *Options) { o.ThreadID = "t1" })

	prompt := mgr.BuildPrompt(context.Background(), []core.Message{core.UserMessage("what do I like?")})
	require.Len(t, prompt, 2)
	assert.Equal(t, core.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "You are a helpful assistant.")
	assert.Contains(t, prompt[0].Content, "<memories>")
	assert.Contains(t, prompt[0].Content, "user likes jazz")
}

func TestBuildPrompt_Episodic(t *testing.T) {
	store := &stubStore{results: []core.SearchResult{
		{Item: core.MemoryItem{Kind: core.StoreTypeEpisodic, Episode: &core.Episode{
			Observation: "asked about sorting",
			Thoughts:    "step through the algorithm",
			Action:      "explained quicksort",
			Result:      "understood",
		}}},
		{Item: core.MemoryItem{Kind: core.StoreTypeEpisodic, Episode: &core.Episode{
			Observation: "asked about trees",
			Thoughts:    "draw it out",
			Action:      "explained BSTs",
			Result:      "understood",
		}}},
	}}
	mgr := newTestManager(t, store, func(o *Options) {
		o.ThreadID = "t1"
		o.StoreType = core.StoreTypeEpisodic
	})

	prompt := mgr.BuildPrompt(context.Background(), []core.Message{core.UserMessage("explain heaps")})
	system := prompt[0].Content
	assert.Contains(t, system, "### EPISODIC MEMORY:")
	assert.Contains(t, system, "Episode 1:")
	assert.Contains(t, system, "Episode 2:")
	assert.Contains(t, system, "When: asked about sorting")
}

func TestBuildPrompt_UserProfile(t *testing.T) {
	store := &stubStore{results: []core.SearchResult{
		{Item: core.MemoryItem{Kind: core.StoreTypeUser, Profile: &core.Profile{Name: "Ada", Preferences: []string{"short answers"}}}},
		{Item: core.MemoryItem{Kind: core.StoreTypeUser, Profile: &core.Profile{Name: "stale"}}},
	}}
	mgr := newTestManager(t, store, func(o *Options) {
		o.ThreadID = "t1"
		o.StoreType = core.StoreTypeUser
	})

	prompt := mgr.BuildPrompt(context.Background(), []core.Message{core.UserMessage("hi")})
	system := prompt[0].Content
	assert.Contains(t, system, "<User Profile>")
	assert.Contains(t, system, "Name: Ada")
	// Only the most relevant profile entry is injected.
	assert.NotContains(t, system, "stale")
}

func TestBuildPrompt_DegradesOnRetrievalFailure(t *testing.T) {
	store := &stubStore{searchErr: errors.New("backend down")}
	mgr := newTestManager(t, store, func(o *Options) { o.ThreadID = "t1" })

	prompt := mgr.BuildPrompt(context.Background(), []core.Message{core.UserMessage("hello")})
	require.Len(t, prompt, 2)
	assert.Equal(t, "You are a helpful assistant.", prompt[0].Content)
}

func TestRetrieveContext_WrapsErrRetrieval(t *testing.T) {
	store := &stubStore{searchErr: errors.New("backend down")}
	mgr := newTestManager(t, store, func(o *Options) { o.ThreadID = "t1" })

	_, err := mgr.RetrieveContext(context.Background(), []core.Message{core.UserMessage("hello")})
	assert.ErrorIs(t, err, core.ErrRetrieval)
}

func TestRetrieveContext_NoUserMessage(t *testing.T) {
	store := &stubStore{}
	mgr := newTestManager(t, store, func(o *Options) { o.ThreadID = "t1" })

	results, err := mgr.RetrieveContext(context.Background(), []core.Message{core.SystemMessage("setup")})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, store.searches)
}

func TestConsolidate_Hotpath(t *testing.T) {
	llm := model.NewMockModel("test", "mock")
	llm.Script(model.Response{
		Content:      `[{"subject": "user", "predicate": "prefers", "object": "tea"}]`,
		FinishReason: "stop",
	})
	store := &stubStore{}

	mgr, err := NewManager(llm, store, func(o *Options) { o.ThreadID = "t1"; o.UserID = "u1" })
	require.NoError(t, err)

	items, task, err := mgr.Consolidate(context.Background(), []core.Message{
		core.UserMessage("I prefer tea over coffee"),
	})
	require.NoError(t, err)
	assert.Nil(t, task)
	require.Len(t, items, 1)

	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, mgr.Namespace(), items[0].Namespace)
	require.NotNil(t, items[0].Triple)
	assert.Equal(t, "tea", items[0].Triple.Object)

	stored := store.upsertedItems()
	require.Len(t, stored, 1)
	assert.Equal(t, items[0].ID, stored[0].ID)
}

func TestConsolidate_StoreTypeRevalidated(t *testing.T) {
	mgr := newTestManager(t, &stubStore{}, func(o *Options) { o.ThreadID = "t1" })
	mgr.storeType = "procedural"

	_, _, err := mgr.Consolidate(context.Background(), []core.Message{core.UserMessage("hi")})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestConsolidate_Background(t *testing.T) {
	llm := model.NewMockModel("test", "mock")
	llm.Script(model.Response{
		Content:      `[{"subject": "user", "predicate": "prefers", "object": "tea"}]`,
		FinishReason: "stop",
	})
	store := &stubStore{}

	mgr, err := NewManager(llm, store, func(o *Options) {
		o.ThreadID = "t1"
		o.ActionType = core.ActionBackground
		o.ConsolidationDelay = 50 * time.Millisecond
	})
	require.NoError(t, err)

	started := time.Now()
	items, task, err := mgr.Consolidate(context.Background(), []core.Message{
		core.UserMessage("I prefer tea over coffee"),
	})
	require.NoError(t, err)
	assert.Nil(t, items)
	require.NotNil(t, task)
	// Submission must not wait for the delay.
	assert.Less(t, time.Since(started), 50*time.Millisecond)

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("background task did not finish")
	}
	require.NoError(t, task.Err())
	assert.Len(t, store.upsertedItems(), 1)
}

func TestConsolidate_EmptyTranscript(t *testing.T) {
	mgr := newTestManager(t, &stubStore{}, func(o *Options) { o.ThreadID = "t1" })

	items, task, err := mgr.Consolidate(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Nil(t, task)
}

func TestExtract_InstructionsPerStoreType(t *testing.T) {
	tests := []struct {
		storeType core.StoreType
		want      string
	}{
		{core.StoreTypeEpisodic, "chain of reasoning"},
		{core.StoreTypeUser, "Extract user profile information"},
		{core.StoreTypeSemantic, "Extract user preferences and any other useful information"},
	}

	for _, tt := range tests {
		t.Run(string(tt.storeType), func(t *testing.T) {
			assert.Contains(t, instructionsFor(tt.storeType), tt.want)
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain array", input: `[{"a":1}]`, want: `[{"a":1}]`},
		{name: "fenced", input: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		{name: "surrounding prose", input: "Here you go:\n[{\"a\":1}]\nDone.", want: `[{"a":1}]`},
		{name: "empty array", input: "[]", want: "[]"},
		{name: "no array", input: "nothing to extract", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONArray(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExtract_MalformedResponse(t *testing.T) {
	llm := model.NewMockModel("test", "mock")
	llm.Script(model.Response{Content: "I could not produce JSON", FinishReason: "stop"})

	mgr, err := NewManager(llm, &stubStore{}, func(o *Options) { o.ThreadID = "t1" })
	require.NoError(t, err)

	_, _, err = mgr.Consolidate(context.Background(), []core.Message{core.UserMessage("hi")})
	assert.ErrorIs(t, err, core.ErrConsolidation)
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler(nil)

	ran := false
	task := s.Submit(func(context.Context) error {
		ran = true
		return nil
	}, 50*time.Millisecond)
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelled task never signalled done")
	}
	assert.False(t, ran)
}

func TestScheduler_ErrExposed(t *testing.T) {
	s := NewScheduler(nil)

	task := s.Submit(func(context.Context) error {
		return fmt.Errorf("boom")
	}, time.Millisecond)

	<-task.Done()
	require.Error(t, task.Err())
	assert.True(t, strings.Contains(task.Err().Error(), "boom"))
}
