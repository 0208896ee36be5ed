package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	n, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := backend.Compatible(ctx, 8, MetricL2)
	require.NoError(t, err)
	assert.True(t, ok, "a database without a records table accepts any layout")
}

func TestSQLite_RecordsWithoutMetadata(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	_, err = backend.db.ExecContext(ctx, createRecords)
	require.NoError(t, err)

	ok, err := backend.Compatible(ctx, 8, MetricL2)
	require.NoError(t, err)
	assert.True(t, ok, "an empty legacy table is reusable")

	_, err = backend.db.ExecContext(ctx,
		`INSERT INTO records(id, document_id, chunk_index, text, vector) VALUES('a:0', 'a', 0, 'x', ?)`,
		encodeVector([]float32{1, 0}))
	require.NoError(t, err)

	n, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err = backend.Compatible(ctx, 8, MetricL2)
	require.NoError(t, err)
	assert.False(t, ok, "rows of unknown layout must be recreated")
}

func TestSQLite_CountAfterEnsure(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	require.NoError(t, backend.Ensure(ctx, 2, MetricL2))
	n, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := backend.Compatible(ctx, 2, MetricL2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = backend.Compatible(ctx, 3, MetricL2)
	require.NoError(t, err)
	assert.False(t, ok)
}
