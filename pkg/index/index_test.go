package index_test

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/pkg/index"
)

// fakeEmbedder maps tokens onto hashed buckets, giving deterministic
// vectors where shared vocabulary means smaller cosine distance.
type fakeEmbedder struct {
	dim   int
	calls int
	fail  bool
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail {
		return nil, assert.AnError
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[h.Sum32()%uint32(f.dim)]++
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func chunk(text string, meta map[string]string) models.Chunk {
	return models.Chunk{Text: text, Metadata: meta}
}

func TestBuildAndSearch(t *testing.T) {
	emb := &fakeEmbedder{dim: 32}
	chunks := []models.Chunk{
		chunk("funding for young individual artists", map[string]string{"program_id": "1"}),
		chunk("tax credits for large corporations", map[string]string{"program_id": "2"}),
		chunk("grants for young artists and creators", map[string]string{"program_id": "3"}),
	}

	idx, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{})
	require.NoError(t, err)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	query, err := emb.CreateEmbedding(context.Background(), []string{"young artists funding"})
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), query[0], 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Sorted by non-decreasing distance.
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Score, results[i].Score)
	}
	// The corporate chunk shares no query vocabulary and ranks last.
	assert.Equal(t, "2", results[2].Chunk.Metadata["program_id"])
}

func TestSearchDeterminism(t *testing.T) {
	emb := &fakeEmbedder{dim: 16}
	chunks := []models.Chunk{
		chunk("alpha beta gamma", nil),
		chunk("delta epsilon zeta", nil),
		chunk("alpha delta", nil),
	}

	idx, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{})
	require.NoError(t, err)

	query, err := emb.CreateEmbedding(context.Background(), []string{"alpha"})
	require.NoError(t, err)

	first, err := idx.Search(context.Background(), query[0], 3)
	require.NoError(t, err)
	second, err := idx.Search(context.Background(), query[0], 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSearchTiesBreakByInsertionOrder(t *testing.T) {
	idx, err := index.New(2)
	require.NoError(t, err)

	// Identical vectors, distinct chunks.
	chunks := []models.Chunk{
		chunk("first", map[string]string{"program_id": "1"}),
		chunk("second", map[string]string{"program_id": "2"}),
		chunk("third", map[string]string{"program_id": "3"}),
	}
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	require.NoError(t, idx.Add(context.Background(), chunks, vectors))

	results, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].Chunk.Metadata["program_id"])
	assert.Equal(t, "2", results[1].Chunk.Metadata["program_id"])
	assert.Equal(t, "3", results[2].Chunk.Metadata["program_id"])
}

func TestSearchLimits(t *testing.T) {
	emb := &fakeEmbedder{dim: 8}
	chunks := []models.Chunk{chunk("one", nil), chunk("two", nil)}

	idx, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{})
	require.NoError(t, err)

	query, err := emb.CreateEmbedding(context.Background(), []string{"one"})
	require.NoError(t, err)

	// Fewer than k entries: returns everything.
	results, err := idx.Search(context.Background(), query[0], 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// k must be positive.
	_, err = idx.Search(context.Background(), query[0], 0)
	assert.Error(t, err)
	_, err = idx.Search(context.Background(), query[0], -1)
	assert.Error(t, err)
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := index.New(4)
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 2}, 1)
	assert.Error(t, err)
}

func TestBuildFailsAtomically(t *testing.T) {
	emb := &fakeEmbedder{dim: 8, fail: true}
	chunks := []models.Chunk{chunk("one", nil)}

	idx, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{})
	assert.Error(t, err)
	assert.Nil(t, idx)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	emb := &fakeEmbedder{dim: 16}
	chunks := []models.Chunk{
		chunk("persisted grant chunk", map[string]string{"program_id": "9", "country": "Canada"}),
		chunk("another chunk of text", map[string]string{"program_id": "10"}),
	}

	built, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "grants_index.json")
	require.NoError(t, built.Save(path))

	loaded, err := index.Load(path)
	require.NoError(t, err)

	count, err := loaded.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A loaded index answers queries identically to the built one:
	// same vectors, same chunk text, same metadata, no re-embedding.
	query, err := emb.CreateEmbedding(context.Background(), []string{"persisted grant"})
	require.NoError(t, err)

	fromBuilt, err := built.Search(context.Background(), query[0], 2)
	require.NoError(t, err)
	fromLoaded, err := loaded.Search(context.Background(), query[0], 2)
	require.NoError(t, err)
	assert.Equal(t, fromBuilt, fromLoaded)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	_, err := index.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0644))

	_, err := index.Load(path)
	assert.ErrorIs(t, err, index.ErrCorrupt)
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mismatch.json")
	data := `{"dimension": 4, "entries": [{"vector": [1, 2], "chunk": {"text": "t", "metadata": {}}}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := index.Load(path)
	assert.ErrorIs(t, err, index.ErrCorrupt)
}

func TestBuildBatchesAndProgress(t *testing.T) {
	emb := &fakeEmbedder{dim: 8}
	var chunks []models.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunk("chunk", nil))
	}

	var progress []int
	_, err := index.Build(context.Background(), chunks, emb, index.BuildConfig{
		BatchSize: 4,
		OnProgress: func(done, total int) {
			assert.Equal(t, 10, total)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, []int{4, 8, 10}, progress)
}
