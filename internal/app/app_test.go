package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/futurenest-rag/internal/config"
	"github.com/bull/futurenest-rag/internal/embedding"
	"github.com/bull/futurenest-rag/internal/rag"
	"github.com/bull/futurenest-rag/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Dir = t.TempDir()
	cfg.Templates.Dir = t.TempDir()
	cfg.Templates.AutoIngest = true
	text := "勞動基準法\n第 24 條\n雇主延長勞工工作時間者，其延長工作時間之工資應加給。\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Templates.Dir, "labor_standards_act.txt"), []byte(text), 0o644))
	return cfg
}

func TestNew_LocalFallbacks(t *testing.T) {
	cfg := testConfig(t)
	var logs bytes.Buffer

	a, err := New(context.Background(), cfg, NewLogger(&logs, "info"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, embedding.KindLocal, a.Index.Provider().Kind())
	assert.Equal(t, "sqlite", a.Index.BackendName())
	assert.Equal(t, "demo", a.Service.Generator().Provider())
	assert.FileExists(t, filepath.Join(cfg.Index.Dir, "index.db"))
	assert.Contains(t, logs.String(), "Using local embedding provider")
}

func TestAutoIngest(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, NewLogger(&bytes.Buffer{}, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.AutoIngest(context.Background())

	n, err := a.Index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err := a.Service.Answer(context.Background(), rag.Request{Message: "第二十四條"})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "勞基法第24條", resp.Sources[0].ArticleReference)
}

func TestAutoIngestDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Templates.AutoIngest = false
	a, err := New(context.Background(), cfg, NewLogger(&bytes.Buffer{}, "error"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.AutoIngest(context.Background())

	n, err := a.Index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(context.Background(), config.IndexConfig{Backend: "redis"})
	assert.ErrorIs(t, err, storage.ErrUnsupportedBackend)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "WARN")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
