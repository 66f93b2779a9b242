package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/memorymesh/core"
)

func TestInMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	handle, err := store.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Release()

	cp := core.NewCheckpoint("t1")
	cp.Messages = []core.Message{core.UserMessage("hello")}
	if err := handle.Put(ctx, cp); err != nil {
		t.Fatal(err)
	}

	got, err := handle.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Messages[0].Content != "hello" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Mutating the returned copy must not affect the stored state.
	got.Messages[0].Content = "mutated"
	again, _ := handle.Get(ctx, "t1")
	if again.Messages[0].Content != "hello" {
		t.Fatal("Get must return an independent copy")
	}

	old := core.NewCheckpoint("t1")
	old.Created = time.Now().UTC().Add(-2 * time.Hour)
	if err := handle.Put(ctx, old); err != nil {
		t.Fatal(err)
	}
	removed, err := handle.DeleteOlderThan(ctx, "t1", time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 pruned, got %d (%v)", removed, err)
	}
}
