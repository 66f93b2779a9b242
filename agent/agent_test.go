package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/checkpoint"
	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/memory"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/vectorstore/chromem"
)

// countingModel wraps a Model and counts Generate calls. Used to observe
// how often consolidation runs.
type countingModel struct {
	inner *model.MockModel
	calls atomic.Int64
}

func (m *countingModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	m.calls.Add(1)
	return m.inner.Generate(ctx, req)
}

func (m *countingModel) Info() model.Info { return m.inner.Info() }

type fixture struct {
	agent      *MemoryAgent
	agentLLM   *model.MockModel
	extractLLM *countingModel
}

func newFixture(t *testing.T, optFns ...func(o *Options)) *fixture {
	t.Helper()

	vectors, err := chromem.New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)
	require.NoError(t, vectors.EnsureCollection(context.Background(), core.CollectionConfig{Name: "agent-test"}))

	extractLLM := &countingModel{inner: model.NewMockModel("extractor", "mock")}

	mgr, err := memory.NewManager(extractLLM, vectors, func(o *memory.Options) {
		o.ThreadID = "t1"
	})
	require.NoError(t, err)

	agentLLM := model.NewMockModel("chat", "mock")
	a, err := New(agentLLM, mgr, checkpoint.NewInMemoryStore(), optFns...)
	require.NoError(t, err)

	return &fixture{agent: a, agentLLM: agentLLM, extractLLM: extractLLM}
}

func TestNew_Validation(t *testing.T) {
	vectors, err := chromem.New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)
	mgr, err := memory.NewManager(model.NewMockModel("m", "mock"), vectors)
	require.NoError(t, err)

	_, err = New(nil, mgr, checkpoint.NewInMemoryStore())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = New(model.NewMockModel("m", "mock"), nil, checkpoint.NewInMemoryStore())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = New(model.NewMockModel("m", "mock"), mgr, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestInvoke_Success(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.Script(model.Response{Content: "Hello there.", FinishReason: "stop"})

	env := f.agent.Invoke(context.Background(), "hi", "t1")

	require.NotNil(t, env.Result)
	assert.Nil(t, env.Error)
	assert.Equal(t, "2.0", env.Protocol)
	assert.Equal(t, "t1", env.ID)
	assert.True(t, env.Result.IsTaskComplete)
	assert.Equal(t, "Hello there.", env.Result.Content)
}

func TestInvoke_ModelFailureBecomesErrorEnvelope(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.FailWith(errors.New("upstream unavailable"))

	env := f.agent.Invoke(context.Background(), "hi", "t1")

	require.NotNil(t, env.Error)
	assert.Nil(t, env.Result)
	assert.Equal(t, 500, env.Error.Code)
	assert.Contains(t, env.Error.Message, "upstream unavailable")
}

func TestInvoke_PlaceholderWhenNoOutput(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.Script(model.Response{Content: "", FinishReason: "stop"})

	env := f.agent.Invoke(context.Background(), "hi", "t1")

	require.NotNil(t, env.Result)
	assert.False(t, env.Result.IsTaskComplete)
	assert.True(t, env.Result.RequireUserInput)
	assert.Equal(t, "We are unable to process your request at the moment. Please try again.", env.Result.Content)
}

func TestInvoke_ThreadOverride(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.Script(model.Response{Content: "ok", FinishReason: "stop"})

	env := f.agent.Invoke(context.Background(), "hi", "custom-thread")
	assert.Equal(t, "custom-thread", env.ID)

	// The override sticks for subsequent calls.
	f.agentLLM.Script(model.Response{Content: "ok again", FinishReason: "stop"})
	env = f.agent.Invoke(context.Background(), "hi again", "")
	assert.Equal(t, "custom-thread", env.ID)
}

func TestInvoke_TranscriptPersistsAcrossTurns(t *testing.T) {
	store := checkpoint.NewInMemoryStore()

	vectors, err := chromem.New(embedding.NewHashEmbedder(0))
	require.NoError(t, err)
	require.NoError(t, vectors.EnsureCollection(context.Background(), core.CollectionConfig{Name: "agent-test"}))

	extractor := model.NewMockModel("extractor", "mock")
	mgr, err := memory.NewManager(extractor, vectors, func(o *memory.Options) { o.ThreadID = "t1" })
	require.NoError(t, err)

	llm := model.NewMockModel("chat", "mock")
	a, err := New(llm, mgr, store)
	require.NoError(t, err)

	llm.Script(
		model.Response{Content: "first answer", FinishReason: "stop"},
		model.Response{Content: "second answer", FinishReason: "stop"},
	)

	f1 := a.Invoke(context.Background(), "first question", "t1")
	require.Nil(t, f1.Error)
	f2 := a.Invoke(context.Background(), "second question", "t1")
	require.Nil(t, f2.Error)

	handle, err := store.Acquire(context.Background())
	require.NoError(t, err)
	defer handle.Release()

	cp, err := handle.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, cp)

	var contents []string
	for _, msg := range cp.Messages {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"first question", "first answer", "second question", "second answer"}, contents)
}

func TestStream_Ordering(t *testing.T) {
	f := newFixture(t)

	f.agentLLM.Script(
		model.Response{
			ToolCalls:    []model.ToolCall{{ID: "call-1", Name: "search_memory", Arguments: `{"query": "preferences"}`}},
			FinishReason: "tool_calls",
		},
		model.Response{Content: "You like jazz.", FinishReason: "stop"},
	)

	f.extractLLM.inner.AddResponse("You like jazz.", "[]")
	before := f.extractLLM.calls.Load()

	envCh, errCh := f.agent.Stream(context.Background(), "what do I like?", "t1")

	var envelopes []core.Envelope
	for env := range envCh {
		envelopes = append(envelopes, env)
	}
	require.NoError(t, <-errCh)

	require.Len(t, envelopes, 3)

	require.NotNil(t, envelopes[0].Result)
	assert.True(t, envelopes[0].Result.IsTaskComplete)
	assert.Equal(t, "Looking up the knowledge base...", envelopes[0].Result.Content)

	require.NotNil(t, envelopes[1].Result)
	assert.False(t, envelopes[1].Result.IsTaskComplete)
	assert.Equal(t, "Processing the knowledge base...", envelopes[1].Result.Content)

	require.NotNil(t, envelopes[2].Result)
	assert.True(t, envelopes[2].Result.IsTaskComplete)
	assert.Equal(t, "You like jazz.", envelopes[2].Result.Content)

	// Consolidation ran exactly once, on the output-bearing event.
	assert.Equal(t, before+1, f.extractLLM.calls.Load())
}

func TestStream_FailureEmitsErrorEnvelopeThenError(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.FailWith(errors.New("model exploded"))

	envCh, errCh := f.agent.Stream(context.Background(), "hi", "t1")

	var envelopes []core.Envelope
	for env := range envCh {
		envelopes = append(envelopes, env)
	}
	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelCall)

	require.Len(t, envelopes, 1)
	require.NotNil(t, envelopes[0].Error)
	assert.Equal(t, 500, envelopes[0].Error.Code)
	assert.Contains(t, envelopes[0].Error.Message, "model exploded")
}

func TestStream_AbandonmentReleasesHandle(t *testing.T) {
	f := newFixture(t)
	f.agentLLM.Script(
		model.Response{
			ToolCalls:    []model.ToolCall{{ID: "call-1", Name: "search_memory", Arguments: `{"query": "x"}`}},
			FinishReason: "tool_calls",
		},
		model.Response{Content: "done", FinishReason: "stop"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	envCh, errCh := f.agent.Stream(ctx, "hi", "t1")

	// Consume one envelope, then walk away.
	<-envCh
	cancel()

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after cancellation")
	}

	// The store must be reusable; a leaked handle would not surface here
	// for the in-memory store, but a stuck goroutine would have failed the
	// timeout above.
	env := func() core.Envelope {
		f.agentLLM.Script(model.Response{Content: "fresh", FinishReason: "stop"})
		return f.agent.Invoke(context.Background(), "hello", "t1")
	}()
	require.Nil(t, env.Error)
}

func TestInvoke_RecursionLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RecursionLimit = 2 })

	loop := model.Response{
		ToolCalls:    []model.ToolCall{{ID: "c", Name: "search_memory", Arguments: `{"query": "x"}`}},
		FinishReason: "tool_calls",
	}
	f.agentLLM.Script(loop, loop, loop)

	env := f.agent.Invoke(context.Background(), "hi", "t1")

	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "recursion limit")
}
