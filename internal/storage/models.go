package storage

import "context"

// Metric is the distance function a backend orders candidates by.
type Metric string

const (
	// MetricL2 is Euclidean distance, used with the local hashing embedder.
	MetricL2 Metric = "l2"
	// MetricCosine is cosine distance (1 - cosine similarity), used with remote embedders.
	MetricCosine Metric = "cosine"
)

// Metadata is stored next to every record.
type Metadata struct {
	DocumentID string
	ChunkIndex int
}

// Record is the unit persisted in the index. It is only ever replaced whole.
type Record struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Vector     []float32
}

// Hit is a query result. Distance comes from the backend; Similarity is
// derived by the Index.
type Hit struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Text       string
	Distance   float64
	Similarity float64
}

// Backend is a persistent vector store. Implementations are safe for
// concurrent use.
type Backend interface {
	// Name identifies the backend in logs and diagnostics.
	Name() string
	// Compatible reports whether the stored data was built with dim and metric.
	// A store that does not exist yet is compatible.
	Compatible(ctx context.Context, dim int, metric Metric) (bool, error)
	// Ensure creates the store if it is missing. Idempotent.
	Ensure(ctx context.Context, dim int, metric Metric) error
	// Recreate drops all data and creates an empty store.
	Recreate(ctx context.Context, dim int, metric Metric) error
	// Replace deletes any record sharing an id with records, then inserts records.
	Replace(ctx context.Context, records []Record) error
	// Prune deletes the records of documentID with a chunk index >= keep.
	Prune(ctx context.Context, documentID string, keep int) error
	// Search returns up to limit nearest records, nearest first. A non-empty
	// documentIDs restricts the search to those documents.
	Search(ctx context.Context, vector []float32, limit int, documentIDs []string) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) error
	Close() error
}
