package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/futurenest-rag/internal/rag"
)

func TestDocumentID(t *testing.T) {
	tests := map[string]string{
		"docs/overtime.md":        "overtime",
		"/tmp/labor law 2024.txt": "labor_law_2024",
		"notes/a:b.pdf":           "a_b",
		"plain":                   "plain",
		"dir/archive.tar.txt":     "archive.tar",
	}
	for in, want := range tests {
		assert.Equal(t, want, documentID(in), in)
	}
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.txt", "sub/b.md", "sub/deeper/c.md"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	paths, err := expandPatterns([]string{
		filepath.Join(dir, "**", "*.md"),
		filepath.Join(dir, "sub", "b.md"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "sub", "b.md"),
		filepath.Join(dir, "sub", "deeper", "c.md"),
	}, paths, "duplicates collapse")

	_, err = expandPatterns([]string{filepath.Join(dir, "*.pdf")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}

func TestIngestThenAsk(t *testing.T) {
	for _, k := range []string{"RAG_CONFIG", "OPENAI_API_KEY", "DATABASE_URL", "AUTO_INGEST_TEMPLATES"} {
		t.Setenv(k, "")
	}
	t.Setenv("VECTOR_BACKEND", "sqlite")
	t.Setenv("VECTOR_DIR", t.TempDir())
	t.Setenv("TEMPLATES_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	doc := filepath.Join(t.TempDir(), "overtime.txt")
	require.NoError(t, os.WriteFile(doc, []byte("延長工作時間在二小時以內者，按平日每小時工資額加給三分之一以上。"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"ingest", doc})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Documents: 1/1")

	out.Reset()
	rootCmd.SetArgs([]string{"ask", "--json", "延長工作時間", "加給"})
	require.NoError(t, rootCmd.Execute())

	var resp rag.Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, rag.ModeRAG, resp.Mode)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, "overtime", resp.Sources[0].DocumentID)
}
