package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/logging"
)

// Loader turns source locations into documents.
type Loader interface {
	Load(ctx context.Context, urls []string) ([]core.Document, error)
}

// Splitter turns a document into smaller chunks suitable for embedding.
type Splitter interface {
	Split(doc core.Document) []core.Document
}

// HTTPLoader fetches documents over HTTP and strips markup down to plain
// text.
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader creates a loader with a default timeout-bounded client.
func NewHTTPLoader(optFns ...func(c *http.Client)) *HTTPLoader {
	client := &http.Client{Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(client)
	}
	return &HTTPLoader{client: client}
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// Load fetches each URL and returns one document per successful fetch. A
// non-2xx status is an error; markup is reduced to whitespace-normalized
// text.
func (l *HTTPLoader) Load(ctx context.Context, urls []string) ([]core.Document, error) {
	docs := make([]core.Document, 0, len(urls))
	for _, url := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", url, err)
		}

		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
		}

		docs = append(docs, core.Document{
			Content:  stripMarkup(string(body)),
			Metadata: map[string]string{"source": url},
		})
	}
	return docs, nil
}

func stripMarkup(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CharacterSplitter chunks documents by rune count with a fixed overlap
// between consecutive chunks.
type CharacterSplitter struct {
	ChunkSize int
	Overlap   int
}

// NewCharacterSplitter creates a splitter. Non-positive sizes fall back to
// 1000 character chunks with 200 characters of overlap.
func NewCharacterSplitter(chunkSize, overlap int) *CharacterSplitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 200
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}
	return &CharacterSplitter{ChunkSize: chunkSize, Overlap: overlap}
}

// Split returns the document's content in overlapping chunks, carrying the
// source metadata onto every chunk.
func (s *CharacterSplitter) Split(doc core.Document) []core.Document {
	runes := []rune(doc.Content)
	if len(runes) <= s.ChunkSize {
		if strings.TrimSpace(doc.Content) == "" {
			return nil
		}
		return []core.Document{doc}
	}

	step := s.ChunkSize - s.Overlap
	var chunks []core.Document
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		metadata := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata["chunk"] = fmt.Sprintf("%d", len(chunks))

		chunks = append(chunks, core.Document{
			Content:  string(runes[start:end]),
			Metadata: metadata,
		})

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Pipeline loads, splits and stores documents into one namespace.
type Pipeline struct {
	loader   Loader
	splitter Splitter
	store    core.VectorStore
	logger   logging.Logger
}

// NewPipeline assembles an ingestion pipeline.
func NewPipeline(loader Loader, splitter Splitter, store core.VectorStore, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Pipeline{loader: loader, splitter: splitter, store: store, logger: logger}
}

// Run ingests the given URLs into the namespace and returns the number of
// chunks actually stored after duplicate suppression.
func (p *Pipeline) Run(ctx context.Context, ns core.Namespace, urls []string) (int, error) {
	docs, err := p.loader.Load(ctx, urls)
	if err != nil {
		return 0, err
	}

	var chunks []core.Document
	for _, doc := range docs {
		chunks = append(chunks, p.splitter.Split(doc)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	stored, err := p.store.AddDocuments(ctx, ns, chunks)
	if err != nil {
		return stored, err
	}

	p.logger.Info("ingestion complete",
		"namespace", ns.Key(), "urls", len(urls), "chunks", len(chunks), "stored", stored)
	return stored, nil
}
