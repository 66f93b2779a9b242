package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
	"github.com/hupe1980/memorymesh/logging"
)

// Options configures the chromem-backed vector store.
type Options struct {
	// CollectionName names the backing collection. All namespaces live in
	// this one collection, partitioned by metadata.
	CollectionName string

	// PersistPath, when non-empty, stores the database on disk at the given
	// directory instead of keeping it purely in memory.
	PersistPath string

	// Compress enables gzip compression for the persistent backend.
	Compress bool

	// Logger is the store's logger. Defaults to a no-op logger.
	Logger logging.Logger
}

// Store implements core.VectorStore over an embedded chromem-go database.
type Store struct {
	db       *chromemgo.DB
	col      *chromemgo.Collection
	embedder core.Embedder
	opts     Options
}

var _ core.VectorStore = (*Store)(nil)

// New creates a chromem vector store. The embedder produces vectors for
// both writes and queries; chromem's own embedding hooks stay unused so the
// store controls exactly which model embeds what.
func New(embedder core.Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		CollectionName: "memorymesh",
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder must not be nil", core.ErrInvalidConfig)
	}

	var db *chromemgo.DB
	if opts.PersistPath != "" {
		var err error
		db, err = chromemgo.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: open persistent db: %v", core.ErrCollection, err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	return &Store{
		db:       db,
		embedder: embedder,
		opts:     opts,
	}, nil
}

// EnsureCollection creates the backing collection if it does not exist yet.
// Calling it again with the same config is a no-op. Only cosine similarity
// is supported by the backend, so any other distance is a config error.
func (s *Store) EnsureCollection(_ context.Context, cfg core.CollectionConfig) error {
	if cfg.Distance != "" && cfg.Distance != core.DistanceCosine {
		return fmt.Errorf("%w: chromem supports cosine distance only, got %q", core.ErrInvalidConfig, cfg.Distance)
	}
	if cfg.Dimension != 0 && cfg.Dimension != s.embedder.Dimensions() {
		return fmt.Errorf("%w: collection dimension %d does not match embedder dimension %d",
			core.ErrInvalidConfig, cfg.Dimension, s.embedder.Dimensions())
	}

	name := cfg.Name
	if name == "" {
		name = s.opts.CollectionName
	}

	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: ensure collection %q: %v", core.ErrCollection, name, err)
	}

	s.col = col
	s.opts.CollectionName = name
	s.opts.Logger.Debug("vector collection ready", "collection", name, "dimension", s.embedder.Dimensions())
	return nil
}

// Upsert embeds and stores extracted memory items under the namespace
// partition. The full item is serialized into metadata so retrieval can
// reconstruct it without a second lookup.
func (s *Store) Upsert(ctx context.Context, ns core.Namespace, items []core.MemoryItem) error {
	col, err := s.collection()
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.ID == "" {
			item.ID = util.NewID()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		item.Namespace = ns

		text := item.Text()
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: embed item %s: %v", core.ErrCollection, item.ID, err)
		}

		itemJSON, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("%w: marshal item %s: %v", core.ErrCollection, item.ID, err)
		}

		doc := chromemgo.Document{
			ID:        item.ID,
			Content:   text,
			Embedding: embedding,
			Metadata: map[string]string{
				"namespace":  ns.Key(),
				"kind":       string(item.Kind),
				"item_json":  string(itemJSON),
				"created_at": item.CreatedAt.Format(time.RFC3339),
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("%w: add item %s: %v", core.ErrCollection, item.ID, err)
		}
	}

	s.opts.Logger.Debug("stored memory items", "namespace", ns.Key(), "count", len(items))
	return nil
}

// AddDocuments embeds and stores raw documents, skipping a document when
// the nearest existing entry in the namespace has identical text. The
// filter is approximate: rephrased duplicates pass through.
func (s *Store) AddDocuments(ctx context.Context, ns core.Namespace, docs []core.Document) (int, error) {
	col, err := s.collection()
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, d := range docs {
		embedding, err := s.embedder.Embed(ctx, d.Content)
		if err != nil {
			return stored, fmt.Errorf("%w: embed document: %v", core.ErrCollection, err)
		}

		dup, err := s.isDuplicate(ctx, col, ns, embedding, d.Content)
		if err != nil {
			return stored, err
		}
		if dup {
			s.opts.Logger.Debug("skipping duplicate document", "namespace", ns.Key())
			continue
		}

		id := d.ID
		if id == "" {
			id = util.NewID()
		}
		metadata := map[string]string{
			"namespace":  ns.Key(),
			"kind":       "document",
			"created_at": time.Now().UTC().Format(time.RFC3339),
		}
		for k, v := range d.Metadata {
			if _, reserved := metadata[k]; !reserved {
				metadata[k] = v
			}
		}

		doc := chromemgo.Document{
			ID:        id,
			Content:   d.Content,
			Embedding: embedding,
			Metadata:  metadata,
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return stored, fmt.Errorf("%w: add document: %v", core.ErrCollection, err)
		}
		stored++
	}

	s.opts.Logger.Debug("stored documents", "namespace", ns.Key(), "stored", stored, "skipped", len(docs)-stored)
	return stored, nil
}

// Search returns up to k items from the namespace ordered by similarity to
// the query. An empty collection yields an empty result, never an error.
func (s *Store) Search(ctx context.Context, ns core.Namespace, query string, k int) ([]core.SearchResult, error) {
	col, err := s.collection()
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: search limit must be positive, got %d", core.ErrInvalidConfig, k)
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", core.ErrCollection, err)
	}

	results, err := s.query(ctx, col, ns, embedding, k)
	if err != nil {
		return nil, err
	}

	out := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		item, err := itemFromResult(r, ns)
		if err != nil {
			s.opts.Logger.Warn("skipping unreadable result", "id", r.ID, "error", err)
			continue
		}
		out = append(out, core.SearchResult{Item: item, Score: r.Similarity})
	}
	return out, nil
}

// DeleteCollection drops the backing collection and all its namespaces.
func (s *Store) DeleteCollection(_ context.Context) error {
	if err := s.db.DeleteCollection(s.opts.CollectionName); err != nil {
		return fmt.Errorf("%w: delete collection %q: %v", core.ErrCollection, s.opts.CollectionName, err)
	}
	s.col = nil
	return nil
}

func (s *Store) collection() (*chromemgo.Collection, error) {
	if s.col == nil {
		return nil, fmt.Errorf("%w: collection not initialized, call EnsureCollection first", core.ErrCollection)
	}
	return s.col, nil
}

// query wraps QueryEmbedding, clamping k to the collection size because the
// backend rejects nResults larger than the document count.
func (s *Store) query(ctx context.Context, col *chromemgo.Collection, ns core.Namespace, embedding []float32, k int) ([]chromemgo.Result, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	where := map[string]string{"namespace": ns.Key()}

	// The backend also rejects nResults above the post-filter match count,
	// so retry downward until the query fits the namespace partition.
	for ; k >= 1; k-- {
		results, err := col.QueryEmbedding(ctx, embedding, k, where, nil)
		if err == nil {
			return results, nil
		}
		if !isTooFewDocsError(err) {
			return nil, fmt.Errorf("%w: query: %v", core.ErrCollection, err)
		}
	}
	return nil, nil
}

func isTooFewDocsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nResults must be")
}

// isDuplicate reports whether the nearest stored entry in the namespace
// carries exactly the given text.
func (s *Store) isDuplicate(ctx context.Context, col *chromemgo.Collection, ns core.Namespace, embedding []float32, text string) (bool, error) {
	results, err := s.query(ctx, col, ns, embedding, 1)
	if err != nil {
		return false, err
	}
	return len(results) > 0 && results[0].Content == text, nil
}

// itemFromResult reconstructs a MemoryItem from a stored document. Items
// written by Upsert round trip through their serialized form; raw documents
// come back as content-only items.
func itemFromResult(r chromemgo.Result, ns core.Namespace) (core.MemoryItem, error) {
	if raw, ok := r.Metadata["item_json"]; ok {
		var item core.MemoryItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return core.MemoryItem{}, fmt.Errorf("unmarshal stored item: %w", err)
		}
		return item, nil
	}

	item := core.MemoryItem{
		ID:        r.ID,
		Namespace: ns,
		Content:   r.Content,
	}
	if ts, ok := r.Metadata["created_at"]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			item.CreatedAt = t
		}
	}
	return item, nil
}
