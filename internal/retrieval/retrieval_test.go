package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/futurenest-rag/internal/statute"
	"github.com/bull/futurenest-rag/internal/storage"
)

type stubSearcher struct {
	hits    []storage.Hit
	err     error
	calls   int
	lastTop int
}

func (s *stubSearcher) Query(_ context.Context, _ string, topK int, _ []string) ([]storage.Hit, error) {
	s.calls++
	s.lastTop = topK
	return s.hits, s.err
}

type stubFinder struct {
	articles map[int]statute.Hit
	calls    []int
}

func (f *stubFinder) Find(n int, _ []string) (statute.Hit, bool) {
	f.calls = append(f.calls, n)
	hit, ok := f.articles[n]
	return hit, ok
}

func article70() statute.Hit {
	return statute.Hit{
		DocumentID: "labor_standards_act",
		Title:      "勞基法",
		Article:    70,
		Text:       "第 七十 條\n雇主僱用勞工人數在三十人以上者，應依其事業性質，訂立工作規則。",
	}
}

func TestFastPath(t *testing.T) {
	finder := &stubFinder{articles: map[int]statute.Hit{70: article70()}}
	r := New(&stubSearcher{}, finder, nil)

	hit, ok := r.FastPath(statute.Normalize("勞基法第七十條是什麼"), nil)
	require.True(t, ok)
	assert.Equal(t, 70, hit.Article)

	_, ok = r.FastPath("第70條和第71條的差別", nil)
	assert.False(t, ok, "Two articles are not a fast path")

	_, ok = r.FastPath("加班費怎麼算", nil)
	assert.False(t, ok)

	_, ok = New(nil, nil, nil).FastPath("第70條", nil)
	assert.False(t, ok)
}

func TestRetrieve_IndexFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("index unreachable")}
	r := New(searcher, nil, nil)

	contexts := r.Retrieve(context.Background(), "加班費怎麼算", 5, nil)
	assert.Empty(t, contexts)
	assert.Equal(t, 1, searcher.calls)
}

func TestRetrieve_DedupesAndTruncates(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.Hit{
		{ID: "a", Text: "one", Similarity: 0.9},
		{ID: "a", Text: "one again", Similarity: 0.8},
		{ID: "b", Text: "two", Similarity: 0.7},
		{ID: "c", Text: "three", Similarity: 0.6},
	}}
	r := New(searcher, nil, nil)

	contexts := r.Retrieve(context.Background(), "question", 2, nil)
	require.Len(t, contexts, 2)
	assert.Equal(t, "a", contexts[0].ID)
	assert.Equal(t, "one", contexts[0].Text, "First occurrence wins")
	assert.Equal(t, "b", contexts[1].ID)
}

func TestReprioritize(t *testing.T) {
	contexts := []Context{
		{ID: "x", Text: "工資由勞雇雙方議定之。"},
		{ID: "y", Text: "依第三十條規定延長工作時間"},
		{ID: "z", Text: "第 30 條 勞工正常工作時間"},
		{ID: "y", Text: "duplicate"},
	}

	got := Reprioritize(contexts, []int{30}, 5)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"y", "z", "x"}, ids(got))
	assert.True(t, got[0].Pinned)
	assert.True(t, got[1].Pinned)
	assert.False(t, got[2].Pinned)

	assert.Len(t, Reprioritize(contexts, []int{30}, 1), 1)
}

func TestRetrieve_ExtractionFallback(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.Hit{
		{ID: "lsa:4", DocumentID: "labor_standards_act", Text: "工資由勞雇雙方議定之。", Similarity: 0.5},
	}}
	finder := &stubFinder{articles: map[int]statute.Hit{70: article70()}}
	r := New(searcher, finder, nil)

	contexts := r.Retrieve(context.Background(), "第70條和第71條", 5, nil)
	require.Len(t, contexts, 2)
	assert.Equal(t, "labor_standards_act:article:70", contexts[0].ID)
	assert.Equal(t, 1.0, contexts[0].Score)
	assert.True(t, contexts[0].Pinned)
	assert.Equal(t, "lsa:4", contexts[1].ID)
	assert.Equal(t, []int{70, 71}, finder.calls)
}

func TestRetrieve_NoFallbackWhenContextMatches(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.Hit{
		{ID: "lsa:9", Text: "第七十條 雇主僱用勞工人數在三十人以上者", Similarity: 0.5},
	}}
	finder := &stubFinder{articles: map[int]statute.Hit{70: article70()}}
	r := New(searcher, finder, nil)

	contexts := r.Retrieve(context.Background(), "第70條和第71條", 5, nil)
	require.Len(t, contexts, 1)
	assert.Equal(t, "lsa:9", contexts[0].ID)
	assert.Equal(t, []int{71}, finder.calls)
}

func TestRetrieve_FullWidthDigitsMatchArticle(t *testing.T) {
	searcher := &stubSearcher{hits: []storage.Hit{
		{ID: "lsa:4", Text: "工資由勞雇雙方議定之。", Similarity: 0.6},
		{ID: "lsa:9", Text: "第 ７０ 條 雇主僱用勞工人數在三十人以上者", Similarity: 0.5},
	}}
	finder := &stubFinder{articles: map[int]statute.Hit{70: article70()}}
	r := New(searcher, finder, nil)

	contexts := r.Retrieve(context.Background(), "第70條和第71條", 5, nil)
	assert.Equal(t, []string{"lsa:9", "lsa:4"}, ids(contexts))
	assert.True(t, contexts[0].Pinned)
	assert.Equal(t, []int{71}, finder.calls, "no extraction for an article already retrieved")
}

func TestFilterAndRank_OrdersByLexicalScore(t *testing.T) {
	contexts := []Context{
		{ID: "1", Text: "公司股東會的召集程序。"},
		{ID: "2", Text: "雇主延長勞工工作時間者，延長工作時間之工資應加給。"},
		{ID: "3", Text: "勞工每日正常工作時間不得超過八小時。"},
	}

	got := FilterAndRank("延長工作時間的工資怎麼算", contexts)
	require.NotEmpty(t, got)
	assert.Equal(t, "2", got[0].ID)
	assert.NotContains(t, ids(Contexts(got)), "1")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Lexical, got[i].Lexical)
	}
}

func TestFilterAndRank_Deterministic(t *testing.T) {
	contexts := []Context{
		{ID: "a", Text: "特別休假日數依年資計算"},
		{ID: "b", Text: "特別休假未休完應發給工資"},
		{ID: "c", Text: "例假日出勤應加倍發給工資"},
		{ID: "d", Text: "休假期間工資照給"},
	}

	first := FilterAndRank("特別休假工資", contexts)
	for range 5 {
		assert.Equal(t, first, FilterAndRank("特別休假工資", contexts))
	}
}

func TestFilterAndRank_KeepsPinned(t *testing.T) {
	contexts := []Context{
		{ID: "hr", Text: "員工手冊第三章請假規定"},
		{ID: "lsa:article:70", Text: "雇主僱用勞工人數在三十人以上者，應訂立工作規則。", Pinned: true},
	}

	got := FilterAndRank("xyz", contexts)
	require.NotEmpty(t, got)
	assert.Equal(t, "lsa:article:70", got[0].ID)
}

func TestFilterAndRank_DedupesPrefixAndCaps(t *testing.T) {
	contexts := []Context{
		{ID: "a", Text: "加班費依延長工作時間計算一"},
		{ID: "dup", Text: "加班費依延長工作時間計算一\n"},
	}
	for i := 1; i < 12; i++ {
		contexts = append(contexts, Context{
			ID:   string(rune('a' + i)),
			Text: "加班費依延長工作時間計算" + string(rune('一'+i)),
		})
	}

	got := FilterAndRank("加班費", contexts)
	require.Len(t, got, MaxRanked)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID, "Same normalized prefix keeps the first")
	assert.NotContains(t, ids(Contexts(got)), "dup")
}

func TestFilterAndRank_StricterFloorForManyCandidates(t *testing.T) {
	weak := Context{ID: "weak", Text: "規費說明"}
	few := []Context{{ID: "strong", Text: "資遣費計算"}, weak}
	many := append([]Context{}, few...)
	for i := range 5 {
		many = append(many, Context{ID: string(rune('p' + i)), Text: "資遣費計算" + string(rune('甲'+i))})
	}

	query := "資遣費計算"
	lexical := FilterAndRank(query, []Context{weak})
	require.Len(t, lexical, 1)
	s := lexical[0].Lexical
	require.True(t, s >= minScore && s < minScoreStrict, "weak score %v must sit between the floors", s)

	assert.Contains(t, ids(Contexts(FilterAndRank(query, few))), "weak")
	assert.NotContains(t, ids(Contexts(FilterAndRank(query, many))), "weak")
}

func TestFilterAndRank_EmptyQueryKeepsOrder(t *testing.T) {
	contexts := []Context{{ID: "a", Text: "one"}, {ID: "b", Text: "two"}}
	got := FilterAndRank("？！", contexts)
	assert.Equal(t, []string{"a", "b"}, ids(Contexts(got)))
	assert.Nil(t, FilterAndRank("q", nil))
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("第70條 Overtime 工資")

	for _, want := range []string{"70", "overtime", "工資", "條", "工", "資"} {
		assert.True(t, tokens[want], "missing token %q", want)
	}
	assert.False(t, tokens["第"], "Non-domain single characters are not tokens")
}

func TestPhrasesOf(t *testing.T) {
	assert.Equal(t, []string{"加班費", "怎麼算"}, phrasesOf("加班費是怎麼算"))
	assert.Empty(t, phrasesOf("abc 的"))
}

func ids(contexts []Context) []string {
	out := make([]string, len(contexts))
	for i, c := range contexts {
		out[i] = c.ID
	}
	return out
}
