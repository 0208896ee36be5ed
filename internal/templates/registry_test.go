package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRegistry_ListKeepsOrder(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), []Meta{
		{ID: "b", Filename: "b.txt", Title: "B"},
		{ID: "a", Filename: "a.txt"},
	})
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "a", list[1].Title, "title defaults to id")

	list[0].Title = "mutated"
	assert.Equal(t, "B", reg.Title("b"), "List returns a copy")
}

func TestRegistry_RejectsBadEntries(t *testing.T) {
	_, err := NewRegistry(t.TempDir(), []Meta{{ID: "x"}})
	assert.Error(t, err)

	_, err = NewRegistry(t.TempDir(), []Meta{
		{ID: "x", Filename: "x.txt"},
		{ID: "x", Filename: "y.txt"},
	})
	assert.Error(t, err)
}

func TestRegistry_NotFound(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), Defaults)
	require.NoError(t, err)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.LoadText("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// Registered but the file is missing.
	_, err = reg.LoadText("labor_standards_act")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "", reg.Title("nope"))
	assert.Equal(t, "勞基法", reg.Title("labor_standards_act"))
}

func TestRegistry_LoadText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain.txt", "第 1 條\n內容。\n")
	writeFile(t, dir, "rich.md", "# 法規\n\n## 第 1 條\n\n*內容*。\n")

	reg, err := NewRegistry(dir, []Meta{
		{ID: "plain", Filename: "plain.txt"},
		{ID: "rich", Filename: "rich.md"},
	})
	require.NoError(t, err)

	text, err := reg.LoadText("plain")
	require.NoError(t, err)
	assert.Equal(t, "第 1 條\n內容。\n", text)

	text, err = reg.LoadText("rich")
	require.NoError(t, err)
	assert.Equal(t, "法規\n第 1 條\n內容。", text)

	outline, err := reg.Outline("rich")
	require.NoError(t, err)
	assert.Len(t, outline, 2)

	outline, err = reg.Outline("plain")
	require.NoError(t, err)
	assert.Nil(t, outline)
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# 加班\n\n延長工時應給付**加班費**。\n")

	text, err := ReadText(filepath.Join(dir, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "加班\n延長工時應給付加班費。", text)

	_, err = ReadText(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
