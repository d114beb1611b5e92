package types

import (
	"context"

	"github.com/grantlab/grantrag/internal/models"
)

// Core interfaces

// Embedder converts text into fixed-width vectors. A single pinned model
// must be used for both index build and query embedding.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator produces free text from a prompt. Failures are opaque; callers
// are expected to degrade to a placeholder rather than abort.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex stores embedded chunks and answers nearest-neighbor queries.
// Entries are immutable once added; the whole index is rebuilt, never
// mutated entry-by-entry.
type VectorIndex interface {
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Normalizer turns one raw record into a flat document.
type Normalizer interface {
	Normalize(record models.RawRecord) models.Document
}

// Processor splits documents into retrieval-sized chunks.
type Processor interface {
	Process(docs []models.Document) ([]models.Chunk, error)
}
