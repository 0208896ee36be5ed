package statute

import (
	"regexp"
	"strings"
)

const numeralClass = `((?:[0-9０-９]\s*)+|(?:[零一二三四五六七八九十百]\s*)+)`

var (
	articleLine = regexp.MustCompile(`(?m)^[ \t　]*第[ \t]*` + numeralClass + `條`)
	chapterLine = regexp.MustCompile(`(?m)^[ \t　]*第[ \t]*[0-9０-９零一二三四五六七八九十百][0-9０-９零一二三四五六七八九十百 \t]*章`)
	chapterAny  = regexp.MustCompile(`第\s*[0-9０-９零一二三四五六七八九十百]+\s*章`)
)

// Extract returns the text of article n: from its marker up to, but not
// including, the next article or chapter marker, or the end of text.
//
// Markers at the start of a line are preferred so that cross references inside
// an article body ("依第三十條規定") do not cut it short. When that finds
// nothing, markers anywhere in the text are used.
func Extract(text string, n int) (string, bool) {
	if n <= 0 || text == "" {
		return "", false
	}
	if articleLine.MatchString(text) {
		if section, ok := extractWith(text, n, articleLine, chapterLine); ok {
			return section, true
		}
	}
	return extractWith(text, n, ArticlePattern, chapterAny)
}

func extractWith(text string, n int, article, chapter *regexp.Regexp) (string, bool) {
	locs := article.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		if numeralValue(text[loc[2]:loc[3]]) != n {
			continue
		}

		start, end := loc[0], len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if ch := chapter.FindStringIndex(text[loc[1]:end]); ch != nil {
			end = loc[1] + ch[0]
		}

		section := strings.TrimSpace(text[start:end])
		if section == "" {
			return "", false
		}
		return section, true
	}
	return "", false
}
