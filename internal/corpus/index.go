package corpus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"trustcheck-backend/internal/llm"
)

// DefaultTopK is the retrieval depth when callers pass no explicit value.
const DefaultTopK = 3

// Match is one ranked retrieval hit.
type Match struct {
	Rank       int     `json:"rank"`
	ChunkIndex int     `json:"chunkIndex"`
	Chunk      string  `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// Index serves nearest-neighbor lookups over the cached corpus. It is safe
// for concurrent use; concurrent builds of the same fingerprint collapse to
// one ingestion run.
type Index struct {
	Embedder  llm.Embedder
	Store     *Store
	SourceDir string

	mu    sync.RWMutex
	entry *Entry

	group singleflight.Group
}

// NewIndex constructs an Index over the given source directory.
func NewIndex(embedder llm.Embedder, store *Store, sourceDir string) *Index {
	return &Index{Embedder: embedder, Store: store, SourceDir: sourceDir}
}

// LoadOrBuild returns the cache entry matching the current source set,
// loading it from disk when the fingerprint is known and running the full
// ingestion pipeline (extract, chunk, embed, persist) when it is not.
func (ix *Index) LoadOrBuild(ctx context.Context) (*Entry, error) {
	fingerprint, err := Fingerprint(ix.SourceDir)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	if ix.entry != nil && ix.entry.Fingerprint == fingerprint {
		entry := ix.entry
		ix.mu.RUnlock()
		return entry, nil
	}
	ix.mu.RUnlock()

	val, err, _ := ix.group.Do(fingerprint, func() (any, error) {
		if entry, ok, err := ix.Store.Load(fingerprint); err != nil {
			return nil, err
		} else if ok {
			return entry, nil
		}

		entry, err := buildEntry(ctx, ix.SourceDir, fingerprint, ix.Embedder)
		if err != nil {
			return nil, err
		}
		if err := ix.Store.Save(entry); err != nil {
			return nil, err
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry := val.(*Entry)
	ix.mu.Lock()
	ix.entry = entry
	ix.mu.Unlock()
	return entry, nil
}

// Query embeds text with the corpus embedding function and returns the topK
// most similar chunks by cosine similarity, ties broken by ascending chunk
// index. An absent or empty corpus yields an empty result, not an error.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	entry, err := ix.LoadOrBuild(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSources) {
			return []Match{}, nil
		}
		return nil, err
	}
	if len(entry.Chunks) == 0 {
		return []Match{}, nil
	}

	vectors, err := ix.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}
	query := vectors[0]

	matches := make([]Match, len(entry.Chunks))
	for i, chunk := range entry.Chunks {
		matches[i] = Match{
			ChunkIndex: i,
			Chunk:      chunk,
			Similarity: cosineSimilarity(query, entry.Embeddings[i]),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})

	if topK > len(matches) {
		topK = len(matches)
	}
	top := matches[:topK]
	for i := range top {
		top[i].Rank = i + 1
	}
	return top, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
