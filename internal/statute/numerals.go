// Package statute normalizes article references and extracts article text from
// statute-style reference documents.
package statute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ArticlePattern matches an article reference such as 第70條, 第 七十 條 or
// 第 二 十 三 條. The first group holds the numeral, possibly with spaces.
var ArticlePattern = regexp.MustCompile(`第\s*((?:[0-9０-９]\s*)+|(?:[零一二三四五六七八九十百]\s*)+)條`)

var chineseValue = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

// ParseChineseNum converts a small Chinese numeral to an int.
//
// Supported forms are a single digit, 十, 十X, X十 and X十Y. Anything else,
// including 零, returns 0.
func ParseChineseNum(s string) int {
	r := []rune(strings.TrimSpace(s))
	switch len(r) {
	case 1:
		if r[0] == '十' {
			return 10
		}
		return chineseValue[r[0]]
	case 2:
		if r[0] == '十' {
			if v, ok := chineseValue[r[1]]; ok {
				return 10 + v
			}
			return 0
		}
		if r[1] == '十' {
			if v, ok := chineseValue[r[0]]; ok {
				return v * 10
			}
		}
		return 0
	case 3:
		tens, okT := chineseValue[r[0]]
		ones, okO := chineseValue[r[2]]
		if okT && okO && r[1] == '十' {
			return tens*10 + ones
		}
	}
	return 0
}

// Normalize rewrites every article reference in s to 第<digits>條 with the
// whitespace removed. Chinese numerals become Arabic digits; numerals that
// ParseChineseNum does not support are left as written.
func Normalize(s string) string {
	return ArticlePattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := ArticlePattern.FindStringSubmatch(match)
		numeral := stripSpace(sub[1])
		if isDigits(numeral) {
			return "第" + numeral + "條"
		}
		n := ParseChineseNum(numeral)
		if n == 0 {
			return match
		}
		return "第" + strconv.Itoa(n) + "條"
	})
}

// ArticleNumbers returns the distinct article numbers referenced in s, in
// order of first appearance.
func ArticleNumbers(s string) []int {
	var (
		out  []int
		seen = make(map[int]bool)
	)
	for _, sub := range ArticlePattern.FindAllStringSubmatch(s, -1) {
		n := numeralValue(sub[1])
		if n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// SingleArticle reports the article number when s references exactly one.
func SingleArticle(s string) (int, bool) {
	nums := ArticleNumbers(s)
	if len(nums) != 1 {
		return 0, false
	}
	return nums[0], true
}

// Marker formats the canonical reference for article n.
func Marker(n int) string {
	return fmt.Sprintf("第%d條", n)
}

// numeralValue parses an Arabic, full-width or Chinese numeral.
func numeralValue(raw string) int {
	numeral := stripSpace(raw)
	if isDigits(numeral) {
		n, err := strconv.Atoi(FoldDigits(numeral))
		if err != nil {
			return 0
		}
		return n
	}
	return ParseChineseNum(numeral)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= '０' && r <= '９') {
			return false
		}
	}
	return true
}

// FoldDigits rewrites full-width digits as ASCII digits.
func FoldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}
