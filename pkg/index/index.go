package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/internal/types"
)

var (
	// ErrNotFound reports that no persisted index exists at the given path.
	// Callers fall back to a fresh build.
	ErrNotFound = errors.New("index not found")
	// ErrCorrupt reports that a persisted index exists but cannot be parsed.
	ErrCorrupt = errors.New("index corrupt")
)

// Entry pairs one chunk with its embedding. Entries are created once at
// build time and never mutated.
type Entry struct {
	Vector []float32    `json:"vector"`
	Chunk  models.Chunk `json:"chunk"`
}

// Index is an in-memory similarity index over embedded chunks, persistable
// to a single file. After build or load it is read-only; concurrent
// searches need no external coordination.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []Entry
}

type indexFile struct {
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

// New creates an empty index for vectors of the given width.
func New(dimension int) (*Index, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &Index{dimension: dimension}, nil
}

// BuildConfig controls the bulk build.
type BuildConfig struct {
	BatchSize  int
	OnProgress func(done, total int)
}

// Build embeds every chunk and returns a fully populated index. The build
// is atomic: any embedding failure fails the whole build and nothing is
// returned.
func Build(ctx context.Context, chunks []models.Chunk, embedder types.Embedder, config BuildConfig) (*Index, error) {
	if config.BatchSize == 0 {
		config.BatchSize = 64
	}

	idx, err := New(embedder.Dimension())
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(chunks); i += config.BatchSize {
		end := i + config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", i, end-1, err)
		}

		if err := idx.Add(ctx, batch, vectors); err != nil {
			return nil, err
		}
		if config.OnProgress != nil {
			config.OnProgress(end, len(chunks))
		}
	}

	return idx, nil
}

// Load reads a previously persisted index. It returns ErrNotFound when the
// path is absent and ErrCorrupt when the file exists but cannot be parsed.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if file.Dimension < 1 {
		return nil, fmt.Errorf("%w: %s: invalid dimension %d", ErrCorrupt, path, file.Dimension)
	}
	for i, e := range file.Entries {
		if len(e.Vector) != file.Dimension {
			return nil, fmt.Errorf("%w: %s: entry %d has dimension %d, expected %d",
				ErrCorrupt, path, i, len(e.Vector), file.Dimension)
		}
	}

	return &Index{
		dimension: file.Dimension,
		entries:   file.Entries,
	}, nil
}

// Save persists the index. The file is written to a temp path and renamed
// so a crash never leaves a half-written index behind.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	file := indexFile{
		Dimension: ix.dimension,
		Entries:   ix.entries,
	}
	data, err := json.Marshal(file)
	ix.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Add appends chunks with their vectors, preserving insertion order.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, v := range vectors {
		if len(v) != ix.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), ix.dimension)
		}
	}
	for i := range chunks {
		ix.entries = append(ix.entries, Entry{Vector: vectors[i], Chunk: chunks[i]})
	}
	return nil
}

// Search returns the k nearest chunks by cosine distance, closest first.
// Ties break by insertion order.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vector), ix.dimension)
	}

	scores := make([]float32, len(ix.entries))
	order := make([]int, len(ix.entries))
	for i, e := range ix.entries {
		scores[i] = cosineDistance(vector, e.Vector)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]models.SearchResult, 0, k)
	for _, j := range order[:k] {
		results = append(results, models.SearchResult{
			Chunk: ix.entries[j].Chunk,
			Score: scores[j],
		})
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

// Close is a no-op for the in-memory index.
func (ix *Index) Close() error { return nil }

// cosineDistance is 1 - cosine similarity: 0 means identical direction,
// lower means more similar.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	sim := dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
	return 1 - sim
}
