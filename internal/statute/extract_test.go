package statute

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/futurenest-rag/internal/templates"
)

const actText = `勞動基準法

第一章 總則
第 1 條
為規定勞動條件最低標準，特制定本法。
第 2 條
本法用詞，定義如下。依第一條規定辦理。

第十二章 附則
第七十條
雇主僱用勞工人數在三十人以上者，應訂立工作規則。
第 71 條
工作規則違反法令者，無效。
`

func TestExtract_LineMarkers(t *testing.T) {
	got, ok := Extract(actText, 2)
	require.True(t, ok)
	assert.Equal(t, "第 2 條\n本法用詞，定義如下。依第一條規定辦理。", got, "stops before the chapter marker, ignores the inline reference")

	got, ok = Extract(actText, 70)
	require.True(t, ok)
	assert.Equal(t, "第七十條\n雇主僱用勞工人數在三十人以上者，應訂立工作規則。", got)

	got, ok = Extract(actText, 71)
	require.True(t, ok)
	assert.Equal(t, "第 71 條\n工作規則違反法令者，無效。", got)
}

func TestExtract_NotFound(t *testing.T) {
	_, ok := Extract(actText, 99)
	assert.False(t, ok)

	_, ok = Extract("", 1)
	assert.False(t, ok)

	_, ok = Extract(actText, 0)
	assert.False(t, ok)
}

func TestExtract_InlineMarkers(t *testing.T) {
	text := "第1條 甲乙丙。第2條 丁戊己。第三章 其他"
	got, ok := Extract(text, 2)
	require.True(t, ok)
	assert.Equal(t, "第2條 丁戊己。", got)
}

type fakeLibrary struct {
	metas []templates.Meta
	texts map[string]string
	loads atomic.Int32
}

func (f *fakeLibrary) List() []templates.Meta { return f.metas }

func (f *fakeLibrary) LoadText(id string) (string, error) {
	f.loads.Add(1)
	text, ok := f.texts[id]
	if !ok {
		return "", errors.New("missing")
	}
	return text, nil
}

func TestExtractor_FindFirstHitAndCache(t *testing.T) {
	lib := &fakeLibrary{
		metas: []templates.Meta{
			{ID: "broken", Title: "壞"},
			{ID: "act", Title: "勞基法"},
			{ID: "copy", Title: "副本"},
		},
		texts: map[string]string{"act": actText, "copy": actText},
	}
	ex := NewExtractor(lib, nil)

	hit, ok := ex.Find(70, nil)
	require.True(t, ok)
	assert.Equal(t, "act", hit.DocumentID)
	assert.Equal(t, "勞基法第70條", hit.Reference())
	assert.Equal(t, "act:article:70", hit.SourceID())

	loads := lib.loads.Load()
	_, ok = ex.Find(70, nil)
	require.True(t, ok)
	// Only the failing document is loaded again.
	assert.Equal(t, loads+1, lib.loads.Load())

	hit, ok = ex.Find(70, []string{"copy"})
	require.True(t, ok)
	assert.Equal(t, "copy", hit.DocumentID)

	_, ok = ex.Find(99, nil)
	assert.False(t, ok)
}
