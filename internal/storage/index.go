package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bull/futurenest-rag/internal/embedding"
)

const (
	// DefaultMinSimilarityLocal is the floor for the local hashing embedder.
	DefaultMinSimilarityLocal = 0.45
	// DefaultMinSimilarityRemote is the floor for remote embedding models.
	DefaultMinSimilarityRemote = 0.30

	maxCandidates = 100
)

// IndexOptions configures an Index.
type IndexOptions struct {
	MinSimilarityLocal  float64
	MinSimilarityRemote float64
	Logger              *slog.Logger
}

// Index is the vector index used by ingest and retrieval. It owns one backend
// and one embedding provider for its whole lifetime. The backend is prepared
// lazily on first use; if the stored vectors were built with another
// dimension or metric the store is dropped and recreated empty.
type Index struct {
	backend   Backend
	provider  embedding.Provider
	minLocal  float64
	minRemote float64
	logger    *slog.Logger

	mu    sync.Mutex
	ready bool
	dim   int
}

// NewIndex creates an Index. Zero floors take the package defaults.
func NewIndex(backend Backend, provider embedding.Provider, opts IndexOptions) *Index {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinSimilarityLocal <= 0 {
		opts.MinSimilarityLocal = DefaultMinSimilarityLocal
	}
	if opts.MinSimilarityRemote <= 0 {
		opts.MinSimilarityRemote = DefaultMinSimilarityRemote
	}
	return &Index{
		backend:   backend,
		provider:  provider,
		minLocal:  opts.MinSimilarityLocal,
		minRemote: opts.MinSimilarityRemote,
		logger:    opts.Logger,
	}
}

// Provider returns the embedding provider bound to the index.
func (ix *Index) Provider() embedding.Provider { return ix.provider }

// BackendName returns the backend identifier.
func (ix *Index) BackendName() string { return ix.backend.Name() }

// Metric returns the distance metric used for the active provider.
func (ix *Index) Metric() Metric {
	if ix.provider.Kind() == embedding.KindLocal {
		return MetricL2
	}
	return MetricCosine
}

// MinSimilarity returns the floor applied to query results.
func (ix *Index) MinSimilarity() float64 {
	if ix.provider.Kind() == embedding.KindLocal {
		return ix.minLocal
	}
	return ix.minRemote
}

// Similarity converts a backend distance into a score in [0, 1].
func (ix *Index) Similarity(distance float64) float64 {
	if ix.Metric() == MetricL2 {
		if distance < 0 {
			distance = 0
		}
		return 1 / (1 + distance)
	}
	return max(0, 1-distance)
}

// ensure prepares the backend once. Failures are not remembered so the next
// call tries again.
func (ix *Index) ensure(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ready {
		return nil
	}

	dim := ix.provider.Dimension()
	if dim <= 0 {
		vecs, err := ix.provider.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			return fmt.Errorf("probe embedding dimension: %w", err)
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return fmt.Errorf("probe embedding dimension: empty vector")
		}
		dim = len(vecs[0])
	}
	metric := ix.Metric()

	ok, err := ix.backend.Compatible(ctx, dim, metric)
	if err != nil {
		return fmt.Errorf("check index compatibility: %w", err)
	}
	if !ok {
		ix.logger.Warn("Recreating vector index",
			"backend", ix.backend.Name(),
			"dimension", dim,
			"metric", metric,
			"error", ErrIndexInconsistent,
		)
		if err := ix.backend.Recreate(ctx, dim, metric); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
	} else if err := ix.backend.Ensure(ctx, dim, metric); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	ix.dim = dim
	ix.ready = true
	return nil
}

// Upsert embeds texts and replaces the records with the given ids. Re-running
// it with the same ids leaves exactly one record per id. Returns the number of
// records written.
func (ix *Index) Upsert(ctx context.Context, ids, texts []string, metas []Metadata) (int, error) {
	if len(ids) != len(texts) || len(ids) != len(metas) {
		return 0, fmt.Errorf("%w: %d ids, %d texts, %d metadatas", ErrInvalidRecord, len(ids), len(texts), len(metas))
	}
	if len(ids) == 0 {
		return 0, nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return 0, fmt.Errorf("%w: empty id", ErrInvalidRecord)
		}
		if seen[id] {
			return 0, fmt.Errorf("%w: duplicate id %q", ErrInvalidRecord, id)
		}
		seen[id] = true
	}

	if err := ix.ensure(ctx); err != nil {
		return 0, err
	}

	vectors, err := ix.provider.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(vectors))
	}

	records := make([]Record, len(ids))
	for i := range ids {
		if len(vectors[i]) != ix.dim {
			return 0, fmt.Errorf("%w: record %s has %d dimensions, index expects %d",
				ErrDimensionMismatch, ids[i], len(vectors[i]), ix.dim)
		}
		records[i] = Record{
			ID:         ids[i],
			DocumentID: metas[i].DocumentID,
			ChunkIndex: metas[i].ChunkIndex,
			Text:       texts[i],
			Vector:     vectors[i],
		}
	}

	if err := ix.backend.Replace(ctx, records); err != nil {
		return 0, fmt.Errorf("replace records: %w", err)
	}
	return len(records), nil
}

// Prune removes the chunks of documentID from index keep onwards.
func (ix *Index) Prune(ctx context.Context, documentID string, keep int) error {
	if err := ix.ensure(ctx); err != nil {
		return err
	}
	return ix.backend.Prune(ctx, documentID, keep)
}

// Query returns up to topK hits ordered by decreasing similarity. The
// candidate set is oversampled before the similarity floor is applied.
func (ix *Index) Query(ctx context.Context, text string, topK int, documentIDs []string) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := ix.ensure(ctx); err != nil {
		return nil, err
	}

	vectors, err := ix.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != ix.dim {
		return nil, fmt.Errorf("%w: query vector does not match index dimension %d", ErrDimensionMismatch, ix.dim)
	}
	// A zero vector is equidistant from every record and matches nothing.
	if isZero(vectors[0]) {
		ix.logger.Debug("Query embedded to a zero vector", "query", text)
		return nil, nil
	}

	candidates, err := ix.backend.Search(ctx, vectors[0], min(topK*10, maxCandidates), documentIDs)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	floor := ix.MinSimilarity()
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		c.Similarity = ix.Similarity(c.Distance)
		if c.Similarity < floor {
			continue
		}
		hits = append(hits, c)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Reset drops every record and recreates the store for the active provider.
func (ix *Index) Reset(ctx context.Context) error {
	if err := ix.ensure(ctx); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.backend.Recreate(ctx, ix.dim, ix.Metric())
}

// Count returns the number of stored records.
func (ix *Index) Count(ctx context.Context) (int, error) {
	if err := ix.ensure(ctx); err != nil {
		return 0, err
	}
	return ix.backend.Count(ctx)
}

// Health checks the backend connection.
func (ix *Index) Health(ctx context.Context) error {
	return ix.backend.Health(ctx)
}

// Close releases the backend.
func (ix *Index) Close() error {
	return ix.backend.Close()
}
