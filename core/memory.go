package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StoreType selects the extraction schema and retrieval formatting for a
// memory manager instance. The set is closed; Validate rejects anything
// else.
type StoreType string

const (
	// StoreTypeEpisodic captures full reasoning traces.
	StoreTypeEpisodic StoreType = "episodic"
	// StoreTypeUser captures a single logical user profile slot.
	StoreTypeUser StoreType = "user"
	// StoreTypeSemantic captures subject-predicate-object facts.
	StoreTypeSemantic StoreType = "semantic"
)

// Validate returns ErrInvalidConfig (wrapped) unless t is a member of the
// closed enum. It is called at every site accepting a store type, not only
// at construction.
func (t StoreType) Validate() error {
	switch t {
	case StoreTypeEpisodic, StoreTypeUser, StoreTypeSemantic:
		return nil
	default:
		return fmt.Errorf("%w: store type must be one of [episodic user semantic], got %q", ErrInvalidConfig, string(t))
	}
}

// ActionType selects when consolidation runs relative to the user-visible
// turn.
type ActionType string

const (
	// ActionHotpath runs extraction synchronously inside the turn.
	ActionHotpath ActionType = "hotpath"
	// ActionBackground defers extraction to a delayed fire-and-forget task.
	ActionBackground ActionType = "background"
)

// Episode is a reasoning trace extracted from a successful exchange.
type Episode struct {
	Observation string `json:"observation"`
	Thoughts    string `json:"thoughts"`
	Action      string `json:"action"`
	Result      string `json:"result"`
}

// Profile is a free-form structured user profile record. It occupies a
// single logical slot: a newer extraction supersedes older entries without
// physically deleting them.
type Profile struct {
	Name        string   `json:"name,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// Triple is a subject-predicate-object shaped fact.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// MemoryItem is a single durable memory owned by exactly one namespace.
// Exactly one of the variant payloads is set for extracted items; raw
// ingested documents carry only Content. Items are never mutated in place.
type MemoryItem struct {
	ID        string    `json:"id"`
	Namespace Namespace `json:"namespace"`
	Kind      StoreType `json:"kind"`
	Content   string    `json:"content,omitempty"`
	Episode   *Episode  `json:"episode,omitempty"`
	Profile   *Profile  `json:"profile,omitempty"`
	Triple    *Triple   `json:"triple,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Text renders the item for embedding and prompt injection. The variant
// payload wins over the raw content field.
func (m MemoryItem) Text() string {
	switch {
	case m.Episode != nil:
		return fmt.Sprintf("When: %s\nThought: %s\nDid: %s\nResult: %s",
			m.Episode.Observation, m.Episode.Thoughts, m.Episode.Action, m.Episode.Result)
	case m.Profile != nil:
		var b strings.Builder
		if m.Profile.Name != "" {
			fmt.Fprintf(&b, "Name: %s\n", m.Profile.Name)
		}
		if m.Profile.Summary != "" {
			fmt.Fprintf(&b, "About: %s\n", m.Profile.Summary)
		}
		if len(m.Profile.Preferences) > 0 {
			fmt.Fprintf(&b, "Preferences: %s\n", strings.Join(m.Profile.Preferences, "; "))
		}
		return strings.TrimRight(b.String(), "\n")
	case m.Triple != nil:
		return fmt.Sprintf("%s %s %s", m.Triple.Subject, m.Triple.Predicate, m.Triple.Object)
	default:
		return m.Content
	}
}

// SearchResult pairs a retrieved item with its similarity score.
type SearchResult struct {
	Item  MemoryItem `json:"item"`
	Score float32    `json:"score"`
}

// Document is a raw ingestion payload handed to VectorStore.AddDocuments.
type Document struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Distance enumerates similarity metrics understood at the vector backend
// boundary.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceEuclidean Distance = "euclidean"
	DistanceDot       Distance = "dot"
	DistanceManhattan Distance = "manhattan"
)

// CollectionConfig addresses a vector collection at the backend.
type CollectionConfig struct {
	Name      string
	Dimension int
	Distance  Distance
}

// VectorStore is the namespace-partitioned similarity storage contract.
//
// AddDocuments applies an approximate duplicate filter: an incoming document
// is skipped when the top-1 nearest existing item is textually identical.
// The filter may produce false negatives on near-duplicate phrasing; this is
// a documented limitation of the source behavior, not a bug to silently fix.
type VectorStore interface {
	// EnsureCollection creates the collection if absent. Idempotent; fails
	// with ErrCollection only on genuine backend errors.
	EnsureCollection(ctx context.Context, cfg CollectionConfig) error

	// Upsert writes extracted memory items into the namespace partition.
	Upsert(ctx context.Context, ns Namespace, items []MemoryItem) error

	// AddDocuments writes raw documents, skipping approximate duplicates.
	// Returns the number of documents actually stored.
	AddDocuments(ctx context.Context, ns Namespace, docs []Document) (int, error)

	// Search returns up to k items from the namespace ordered by similarity
	// to the query text.
	Search(ctx context.Context, ns Namespace, query string, k int) ([]SearchResult, error)

	// DeleteCollection drops the backing collection.
	DeleteCollection(ctx context.Context) error
}
