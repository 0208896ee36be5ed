package statute

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChineseNum(t *testing.T) {
	cases := map[string]int{
		"一":   1,
		"九":   9,
		"十":   10,
		"十一":  11,
		"二十":  20,
		"二十三": 23,
		"九十九": 99,
		"零":   0,
		"一百":  0,
		"":    0,
		"十十":  0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseChineseNum(in), "ParseChineseNum(%q)", in)
	}
}

func TestNormalize(t *testing.T) {
	assert.Contains(t, Normalize("第十一條"), "第11條")
	assert.Contains(t, Normalize("請問 第 二 十 三 條 的內容"), "第23條")
	assert.Equal(t, "第20條", Normalize("第  20 條"))
	assert.Equal(t, "勞基法第70條是什麼", Normalize("勞基法第七十條是什麼"))
	assert.Equal(t, "勞基法第70條是什麼", Normalize("勞基法第70條是什麼"))
	assert.Equal(t, "第７０條", Normalize("第 ７０ 條"), "full-width digits keep their form")
	assert.Equal(t, "第零條", Normalize("第零條"), "unsupported numerals are left alone")
	assert.Equal(t, "沒有條文", Normalize("沒有條文"))
}

func TestFoldDigits(t *testing.T) {
	assert.Equal(t, "第70條", FoldDigits("第７０條"))
	assert.Equal(t, "第70條", FoldDigits(Normalize("第 ７０ 條")))
	assert.Equal(t, "工資abc", FoldDigits("工資abc"))
}

func TestArticlePattern_FindAll(t *testing.T) {
	var got []string
	for _, m := range ArticlePattern.FindAllStringSubmatch("第7條與第  25 條", -1) {
		got = append(got, strings.TrimSpace(m[1]))
	}
	assert.Equal(t, []string{"7", "25"}, got)
}

func TestArticleNumbers(t *testing.T) {
	assert.Equal(t, []int{70}, ArticleNumbers("第70條與第七十條"))
	assert.Equal(t, []int{7, 25}, ArticleNumbers("第7條與第  25 條"))
	assert.Equal(t, []int{70}, ArticleNumbers("第７０條"))
	assert.Empty(t, ArticleNumbers("加班費怎麼算"))

	n, ok := SingleArticle("勞基法第70條是什麼")
	assert.True(t, ok)
	assert.Equal(t, 70, n)

	_, ok = SingleArticle("第30條和第32條")
	assert.False(t, ok)

	assert.Equal(t, "第38條", Marker(38))
}
