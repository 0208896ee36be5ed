package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statuteSample = "第 1 條\n為規定勞動條件最低標準，保障勞工權益，加強勞雇關係，促進社會與經濟發展，特制定本法。" +
	"本法未規定者，適用其他法律之規定。\n第 2 條\n本法用詞，定義如下：勞工：指受雇主僱用從事工作獲致工資者。" +
	"雇主：指僱用勞工之事業主、事業經營之負責人或代表事業主處理有關勞工事務之人。" +
	"工資：指勞工因工作而獲得之報酬！包括工資、薪金及按計時、計日、計月、計件以現金或實物等方式給付之獎金？" +
	"平均工資；指計算事由發生之當日前六個月內所得工資總額除以該期間之總日數所得之金額。\n"

// rebuild removes the carried overlap from every fragment after the first.
func rebuild(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		skip := 0
		if prev := []rune(chunks[i-1]); overlap > 0 && len(prev) > overlap {
			skip = overlap
		}
		sb.WriteString(string([]rune(c)[skip:]))
	}
	return sb.String()
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	assert.Equal(t, []string{"短文。"}, Split("短文。", 600, 150))
	assert.Equal(t, []string{""}, Split("", 600, 150))
}

func TestSplit_NonPositiveChunkSize(t *testing.T) {
	assert.Equal(t, []string{statuteSample}, Split(statuteSample, 0, 150))
	assert.Equal(t, []string{statuteSample}, Split(statuteSample, -5, 0))
}

func TestSplit_ReconstructsSource(t *testing.T) {
	cases := []struct {
		size, overlap int
	}{
		{20, 5},
		{40, 10},
		{60, 0},
		{30, 30},
		{15, 100},
		{80, 20},
	}
	for _, tc := range cases {
		chunks := Split(statuteSample, tc.size, tc.overlap)
		require.NotEmpty(t, chunks)
		assert.Equal(t, statuteSample, rebuild(chunks, tc.overlap), "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestSplit_CarriesOverlap(t *testing.T) {
	chunks := Split(statuteSample, 40, 10)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		if len(prev) <= 10 {
			continue
		}
		tail := string(prev[len(prev)-10:])
		assert.True(t, strings.HasPrefix(chunks[i], tail), "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestSplit_KeepsOversizeSentenceWhole(t *testing.T) {
	long := strings.Repeat("工", 50) + "。"
	text := "短句。" + long + "尾句。"

	chunks := Split(text, 10, 0)
	assert.Contains(t, chunks, long)
	assert.Equal(t, text, rebuild(chunks, 0))
}

func TestSplit_IsDeterministic(t *testing.T) {
	first := Split(statuteSample, 25, 8)
	second := Split(statuteSample, 25, 8)
	assert.Equal(t, first, second)
}

func TestSentences_KeepTerminators(t *testing.T) {
	got := Sentences("甲。乙！！丙？\n丁")
	assert.Equal(t, []string{"甲。", "乙！！", "丙？\n", "丁"}, got)
	assert.Equal(t, "甲。乙！！丙？\n丁", strings.Join(got, ""))
}

func TestChunker_Options(t *testing.T) {
	c := New(WithChunkSize(40), WithOverlap(10))
	assert.Equal(t, 40, c.ChunkSize())
	assert.Equal(t, 10, c.Overlap())
	assert.Equal(t, Split(statuteSample, 40, 10), c.Split(statuteSample))

	d := New()
	assert.Equal(t, DefaultChunkSize, d.ChunkSize())
	assert.Equal(t, DefaultOverlap, d.Overlap())
}
