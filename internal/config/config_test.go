package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	PathEnv, "OPENAI_API_KEY", "OPENAI_BASE_URL", "EMBEDDING_MODEL", "EMBEDDING_DIMENSION",
	"CHAT_MODEL", "SYSTEM_PROMPT", "INLINE_CITATIONS", "SNIPPET_MAX_CHARS",
	"VECTOR_BACKEND", "VECTOR_DIR", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY",
	"QDRANT_COLLECTION", "DATABASE_URL", "MIN_SIMILARITY_LOCAL", "MIN_SIMILARITY_REMOTE",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "TEMPLATES_DIR", "AUTO_INGEST_TEMPLATES",
	"SERVER_MODE", "PORT", "LOG_LEVEL", "GITHUB_TOKEN",
}

// clearEnv blanks every variable Load reads; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Index.Backend)
	assert.Equal(t, 600, cfg.Chunker.Size)
	assert.Equal(t, 150, cfg.Chunker.Overlap)
	assert.InDelta(t, 0.45, cfg.Index.MinSimilarityLocal, 1e-9)
	assert.InDelta(t, 0.30, cfg.Index.MinSimilarityRemote, 1e-9)
	assert.Equal(t, 300, cfg.Generation.SnippetMaxChars)
	assert.False(t, cfg.Generation.InlineCitations)
	assert.False(t, cfg.Templates.AutoIngest)
	assert.Equal(t, "stdio", cfg.Server.Mode)
	assert.Equal(t, 6334, cfg.Index.Qdrant.Port)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
index:
  backend: qdrant
  qdrant:
    host: qdrant.internal
    collection: laws
chunker:
  size: 400
  overlap: 50
generation:
  inline_citations: true
`)
	t.Setenv("QDRANT_HOST", "override.local")
	t.Setenv("CHUNK_OVERLAP", "80")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendQdrant, cfg.Index.Backend)
	assert.Equal(t, "override.local", cfg.Index.Qdrant.Host)
	assert.Equal(t, "laws", cfg.Index.Qdrant.Collection)
	assert.Equal(t, 6334, cfg.Index.Qdrant.Port, "unset file keys keep defaults")
	assert.Equal(t, 400, cfg.Chunker.Size)
	assert.Equal(t, 80, cfg.Chunker.Overlap)
	assert.True(t, cfg.Generation.InlineCitations)
}

func TestLoad_PathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(PathEnv, writeFile(t, "log_level: debug\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, "index: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_EnvTypes(t *testing.T) {
	clearEnv(t)
	t.Setenv("INLINE_CITATIONS", "1")
	t.Setenv("AUTO_INGEST_TEMPLATES", "true")
	t.Setenv("MIN_SIMILARITY_REMOTE", "0.25")
	t.Setenv("SNIPPET_MAX_CHARS", "not-a-number")
	t.Setenv("VECTOR_BACKEND", "PGVECTOR")
	t.Setenv("DATABASE_URL", "postgres://localhost/rag")
	t.Setenv("SERVER_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Generation.InlineCitations)
	assert.True(t, cfg.Templates.AutoIngest)
	assert.InDelta(t, 0.25, cfg.Index.MinSimilarityRemote, 1e-9)
	assert.Equal(t, 300, cfg.Generation.SnippetMaxChars, "unparsable values keep the previous value")
	assert.Equal(t, BackendPgvector, cfg.Index.Backend)
	assert.Equal(t, "http", cfg.Server.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Index.Backend = "redis" }, "unknown vector backend"},
		{"pgvector without dsn", func(c *Config) { c.Index.Backend = BackendPgvector }, "DATABASE_URL"},
		{"zero chunk size", func(c *Config) { c.Chunker.Size = 0 }, "chunk size"},
		{"overlap too large", func(c *Config) { c.Chunker.Overlap = 600 }, "chunk overlap"},
		{"floor out of range", func(c *Config) { c.Index.MinSimilarityLocal = 1.5 }, "MIN_SIMILARITY_LOCAL"},
		{"bad server mode", func(c *Config) { c.Server.Mode = "grpc" }, "server mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	require.NoError(t, Default().Validate())
}
