package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when an entry's vector dimension
	// disagrees with the index's configured dimension. Mixing embedding
	// models within one index is a configuration error, caught at write
	// time.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrWriteFailure wraps storage-level failures during upsert.
	ErrWriteFailure = errors.New("vector index write failure")
)

// Entry is the searchable unit: one embedded chunk scoped to a project.
type Entry struct {
	ProjectID  string
	AssetID    string
	ChunkIndex int
	Vector     []float32
	Text       string
	Metadata   map[string]interface{}
}

// Hit is a search result with its similarity score in [0,1].
type Hit struct {
	Entry
	Score float32
}

// Index stores embedded chunks per project and answers k-NN queries.
// Upsert replaces all prior entries for each asset present in the batch
// atomically: a concurrent reader sees either the old set or the new set,
// never a mix. Search is always scoped to a single project.
type Index interface {
	Upsert(ctx context.Context, projectID string, entries []Entry) error
	Search(ctx context.Context, projectID string, vector []float32, k int) ([]Hit, error)
	DeleteAsset(ctx context.Context, projectID, assetID string) error

	// Durable reports whether entries survive process restart.
	// In-memory implementations return false; tests rely on this flag.
	Durable() bool
}
