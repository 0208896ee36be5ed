package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the Qdrant collection holding all chunks.
const DefaultCollection = "documents"

// pointNamespace derives stable point UUIDs from chunk ids.
var pointNamespace = uuid.MustParse("6f1c2a9e-5b7d-4c1e-9a3f-2d8e4b6c7a10")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantBackend wraps the Qdrant client with connection management and health checks.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	metric     Metric
}

// NewQdrantBackend creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantBackend(cfg QdrantConfig) (*QdrantBackend, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	b := &QdrantBackend{
		client:     client,
		collection: cfg.Collection,
		metric:     MetricCosine,
	}

	if err := b.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return b, nil
}

func (b *QdrantBackend) Name() string { return "qdrant" }

// retryPolicy is the shared backoff: 500ms initial, 10s max interval, 30s total.
func retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(eb, ctx)
}

func (b *QdrantBackend) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return b.Health(ctx)
	}, retryPolicy(ctx))
}

// Health performs a single health check against Qdrant.
func (b *QdrantBackend) Health(ctx context.Context) error {
	result, err := b.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

func distanceFor(metric Metric) qdrant.Distance {
	if metric == MetricCosine {
		return qdrant.Distance_Cosine
	}
	return qdrant.Distance_Euclid
}

// Compatible compares the collection's vector size and distance with the
// active provider. Collections using named vectors are never compatible.
func (b *QdrantBackend) Compatible(ctx context.Context, dim int, metric Metric) (bool, error) {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return true, nil
	}

	info, err := b.client.GetCollectionInfo(ctx, b.collection)
	if err != nil {
		return false, fmt.Errorf("failed to get collection: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return false, nil
	}
	return params.GetSize() == uint64(dim) && params.GetDistance() == distanceFor(metric), nil
}

// Ensure creates the collection and its document_id payload index if missing.
func (b *QdrantBackend) Ensure(ctx context.Context, dim int, metric Metric) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	b.metric = metric
	if exists {
		return nil
	}
	return b.create(ctx, dim, metric)
}

// Recreate deletes the collection and creates it again empty.
func (b *QdrantBackend) Recreate(ctx context.Context, dim int, metric Metric) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	b.metric = metric
	return b.create(ctx, dim, metric)
}

func (b *QdrantBackend) create(ctx context.Context, dim int, metric Metric) error {
	err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: distanceFor(metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without this index the document filter degrades to a full scan.
	_, err = b.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: b.collection,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field document_id: %w", err)
	}
	return nil
}

// PointID maps a chunk id to its deterministic Qdrant point UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Replace deletes the points for the record ids and upserts the records in
// batches of 100.
func (b *QdrantBackend) Replace(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, len(records))
	for i, r := range records {
		ids[i] = qdrant.NewIDUUID(PointID(r.ID))
	}
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(records); i += batchSize {
		end := min(i+batchSize, len(records))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j, r := range records[i:end] {
			points = append(points, &qdrant.PointStruct{
				Id:      ids[i+j],
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"chunk_id":    r.ID,
					"document_id": r.DocumentID,
					"chunk_index": r.ChunkIndex,
					"text":        r.Text,
				}),
			})
		}

		if err := b.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// Prune deletes trailing chunks left over from a longer earlier version of
// the document.
func (b *QdrantBackend) Prune(ctx context.Context, documentID string, keep int) error {
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
				qdrant.NewRange("chunk_index", &qdrant.Range{Gte: qdrant.PtrOf(float64(keep))}),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to prune points: %w", err)
	}
	return nil
}

func (b *QdrantBackend) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	return backoff.Retry(func() error {
		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: b.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}, retryPolicy(ctx))
}

// Search queries nearest points. Qdrant reports cosine similarity for cosine
// collections and the distance itself for Euclid; both are turned into a distance.
func (b *QdrantBackend) Search(ctx context.Context, vector []float32, limit int, documentIDs []string) ([]Hit, error) {
	query := &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if len(documentIDs) > 0 {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("document_id", documentIDs...),
			},
		}
	}

	cosine := b.metric == MetricCosine

	results, err := b.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		d := float64(result.Score)
		if cosine {
			d = 1 - d
		}
		hits = append(hits, Hit{
			ID:         payload["chunk_id"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
			Text:       payload["text"].GetStringValue(),
			Distance:   d,
		})
	}
	return hits, nil
}

// Count returns the exact number of points.
func (b *QdrantBackend) Count(ctx context.Context) (int, error) {
	n, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: b.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Close closes the Qdrant client connection.
func (b *QdrantBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

var _ Backend = (*QdrantBackend)(nil)
