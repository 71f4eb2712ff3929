package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorEmbedder returns fixed vectors per input text and counts calls.
type vectorEmbedder struct {
	vectors map[string][]float32
	calls   int64
}

func (e *vectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt64(&e.calls, 1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{0, 0, 1}
	}
	return out, nil
}

// seedIndex primes the store with a prebuilt entry matching the source dir's
// fingerprint, so queries never hit the ingestion path.
func seedIndex(t *testing.T, embedder *vectorEmbedder, chunks []string, embeddings [][]float32) (*Index, string) {
	t.Helper()
	sourceDir := t.TempDir()
	writeSource(t, sourceDir, "report.pdf", "더미 원문")

	fp, err := Fingerprint(sourceDir)
	require.NoError(t, err)

	cacheDir := t.TempDir()
	store := NewStore(cacheDir)
	require.NoError(t, store.Save(&Entry{Fingerprint: fp, Chunks: chunks, Embeddings: embeddings}))

	return NewIndex(embedder, store, sourceDir), cacheDir
}

func TestQueryRanksBySimilarity(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"질의문": {1, 0, 0},
	}}
	ix, _ := seedIndex(t, embedder,
		[]string{"직교 청크", "동일 청크", "대각 청크"},
		[][]float32{{0, 1, 0}, {1, 0, 0}, {1, 1, 0}},
	)

	matches, err := ix.Query(context.Background(), "질의문", 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, 1, matches[0].Rank)
	assert.Equal(t, "동일 청크", matches[0].Chunk)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)

	assert.Equal(t, "대각 청크", matches[1].Chunk)
	assert.Equal(t, "직교 청크", matches[2].Chunk)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
	assert.Greater(t, matches[1].Similarity, matches[2].Similarity)
}

func TestQueryTiesBreakOnChunkIndex(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"질의문": {1, 0, 0},
	}}
	ix, _ := seedIndex(t, embedder,
		[]string{"청크0", "청크1", "청크2"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {1, 0, 0}},
	)

	matches, err := ix.Query(context.Background(), "질의문", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].ChunkIndex)
	assert.Equal(t, 2, matches[1].ChunkIndex)
}

func TestQueryCapsTopKAtCorpusSize(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{}}
	ix, _ := seedIndex(t, embedder,
		[]string{"청크"},
		[][]float32{{0, 0, 1}},
	)

	matches, err := ix.Query(context.Background(), "질의문", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestQueryEmptySourceDirYieldsEmptyResult(t *testing.T) {
	embedder := &vectorEmbedder{}
	ix := NewIndex(embedder, NewStore(t.TempDir()), t.TempDir())

	matches, err := ix.Query(context.Background(), "질의문", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.EqualValues(t, 0, atomic.LoadInt64(&embedder.calls))
}

func TestLoadOrBuildServesFromCacheWithoutEmbedding(t *testing.T) {
	embedder := &vectorEmbedder{}
	ix, _ := seedIndex(t, embedder, []string{"청크"}, [][]float32{{1, 0, 0}})

	entry, err := ix.LoadOrBuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"청크"}, entry.Chunks)
	assert.EqualValues(t, 0, atomic.LoadInt64(&embedder.calls),
		"cache hit must not re-embed the corpus")
}

func TestLoadOrBuildReusesInMemoryEntry(t *testing.T) {
	embedder := &vectorEmbedder{}
	ix, cacheDir := seedIndex(t, embedder, []string{"청크"}, [][]float32{{1, 0, 0}})

	_, err := ix.LoadOrBuild(context.Background())
	require.NoError(t, err)

	// Remove the on-disk pair; the memory copy must still serve.
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, os.Remove(filepath.Join(cacheDir, e.Name())))
	}

	entry, err := ix.LoadOrBuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"청크"}, entry.Chunks)
}
