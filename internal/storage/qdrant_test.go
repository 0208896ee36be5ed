//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/futurenest-rag/internal/embedding"
)

// setupTestQdrant creates a backend on a throwaway collection.
// Skips test if Qdrant is not running.
func setupTestQdrant(t *testing.T) *QdrantBackend {
	backend, err := NewQdrantBackend(QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		Collection: "test_" + uuid.New().String()[:8],
	})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() {
		backend.client.DeleteCollection(context.Background(), backend.collection)
		backend.Close()
	})
	return backend
}

func TestQdrant_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(setupTestQdrant(t), embedding.NewHashProvider(0), IndexOptions{})

	texts := []string{"勞工每日正常工作時間不得超過八小時", "雇主延長勞工工作時間者應給付加班費"}
	_, err := ix.Upsert(ctx, []string{"lsa:0", "lsa:1"}, texts, metas("lsa", 2))
	require.NoError(t, err)
	_, err = ix.Upsert(ctx, []string{"lsa:0", "lsa:1"}, texts, metas("lsa", 2))
	require.NoError(t, err)

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "Re-upsert must not duplicate points")

	hits, err := ix.Query(ctx, texts[1], 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "lsa:1", hits[0].ID)
	assert.Equal(t, "lsa", hits[0].DocumentID)
	assert.Equal(t, 1, hits[0].ChunkIndex)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
}

func TestQdrant_DocumentFilter(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(setupTestQdrant(t), embedding.NewHashProvider(0), IndexOptions{})

	text := "工資由勞雇雙方議定之"
	_, err := ix.Upsert(ctx, []string{"a:0", "b:0"}, []string{text, text},
		[]Metadata{{DocumentID: "a"}, {DocumentID: "b"}})
	require.NoError(t, err)

	hits, err := ix.Query(ctx, text, 5, []string{"a"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].DocumentID)
}

func TestQdrant_Compatible(t *testing.T) {
	ctx := context.Background()
	backend := setupTestQdrant(t)

	ok, err := backend.Compatible(ctx, 8, MetricL2)
	require.NoError(t, err)
	assert.True(t, ok, "Missing collection is compatible")

	require.NoError(t, backend.Ensure(ctx, 8, MetricL2))

	ok, err = backend.Compatible(ctx, 16, MetricL2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = backend.Compatible(ctx, 8, MetricCosine)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, PointID("lsa:3"), PointID("lsa:3"))
	assert.NotEqual(t, PointID("lsa:3"), PointID("lsa:4"))
	_, err := uuid.Parse(PointID("lsa:3"))
	assert.NoError(t, err)
}

func TestPgvector_UpsertAndQuery(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	backend, err := NewPgvectorBackend(ctx, dsn, "test_"+uuid.New().String()[:8])
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(func() {
		backend.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+backend.ident)
		backend.Close()
	})

	ix := NewIndex(backend, embedding.NewHashProvider(0), IndexOptions{})
	texts := []string{"特別休假", "延長工時"}
	_, err = ix.Upsert(ctx, []string{"a:0", "b:0"}, texts,
		[]Metadata{{DocumentID: "a"}, {DocumentID: "b"}})
	require.NoError(t, err)

	hits, err := ix.Query(ctx, texts[1], 5, []string{"b"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b:0", hits[0].ID)

	ok, err := backend.Compatible(ctx, embedding.DefaultHashDimension, MetricL2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = backend.Compatible(ctx, 1536, MetricCosine)
	require.NoError(t, err)
	assert.False(t, ok)
}
