package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bull/futurenest-rag/internal/statute"
)

const (
	// MaxRanked caps the contexts kept by FilterAndRank.
	MaxRanked = 8

	minScore       = 0.05
	minScoreStrict = 0.10
	// Above this many candidates the stricter minimum applies.
	strictAbove = 5
	prefixRunes = 50

	weightJaccard = 0.4
	weightKeyword = 0.3
	weightPhrase  = 0.3
)

// domainChars are single characters that carry meaning in labor and
// workplace questions on their own.
var domainChars = map[rune]bool{
	'薪': true, '假': true, '資': true, '工': true, '時': true,
	'法': true, '條': true, '罰': true, '休': true, '約': true,
	'職': true, '險': true, '保': true, '退': true, '費': true,
}

// stopChars split query phrases.
var stopChars = map[rune]bool{
	'的': true, '是': true, '嗎': true, '呢': true, '了': true,
	'在': true, '和': true, '與': true, '及': true, '或': true,
	'有': true, '要': true, '請': true, '問': true, '吧': true,
}

// Ranked is a context with its lexical score.
type Ranked struct {
	Context
	Lexical float64
}

// FilterAndRank scores contexts lexically against query and returns at most
// MaxRanked of them, best first. Pinned contexts are kept regardless of score
// and sort ahead of the rest. Ties keep input order, and of two contexts with
// the same normalized prefix the earlier one wins. The result is deterministic.
func FilterAndRank(query string, contexts []Context) []Ranked {
	if len(contexts) == 0 {
		return nil
	}

	normalized := statute.Normalize(query)
	queryTokens := tokenize(normalized)
	phrases := phrasesOf(normalized)

	ranked := make([]Ranked, len(contexts))
	for i, c := range contexts {
		ranked[i] = Ranked{Context: c, Lexical: score(queryTokens, phrases, statute.Normalize(c.Text))}
	}

	// No lexical signal in the query; keep retrieval order.
	if len(queryTokens) == 0 {
		return capRanked(dedupeByPrefix(ranked))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Pinned != ranked[j].Pinned {
			return ranked[i].Pinned
		}
		return ranked[i].Lexical > ranked[j].Lexical
	})

	floor := minScore
	if len(ranked) > strictAbove {
		floor = minScoreStrict
	}
	kept := ranked[:0]
	for _, r := range ranked {
		if r.Pinned || r.Lexical >= floor {
			kept = append(kept, r)
		}
	}
	return capRanked(dedupeByPrefix(kept))
}

// Contexts strips the scores.
func Contexts(ranked []Ranked) []Context {
	out := make([]Context, len(ranked))
	for i, r := range ranked {
		out[i] = r.Context
	}
	return out
}

func score(queryTokens map[string]bool, phrases []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	textTokens := tokenize(text)

	var inter, contained int
	for tok := range queryTokens {
		if textTokens[tok] {
			inter++
		}
		if strings.Contains(lower, tok) {
			contained++
		}
	}
	union := len(queryTokens) + len(textTokens) - inter
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(inter) / float64(union)
	}
	keyword := float64(contained) / float64(len(queryTokens))

	phrase := 0.0
	if len(phrases) > 0 {
		var hits int
		for _, p := range phrases {
			if strings.Contains(text, p) {
				hits++
			}
		}
		phrase = float64(hits) / float64(len(phrases))
	}

	return weightJaccard*jaccard + weightKeyword*keyword + weightPhrase*phrase
}

// tokenize returns the token set of s: runs of two or more Han characters
// and their bigrams, lower-cased Latin/digit words, and domain characters.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, run := range runs(strings.ToLower(s)) {
		if !run.han {
			tokens[string(run.text)] = true
			continue
		}
		if len(run.text) >= 2 {
			tokens[string(run.text)] = true
			for i := 0; i+1 < len(run.text); i++ {
				tokens[string(run.text[i:i+2])] = true
			}
		}
		for _, r := range run.text {
			if domainChars[r] {
				tokens[string(r)] = true
			}
		}
	}
	return tokens
}

// phrasesOf returns the Han phrases of s with at least two characters, split
// at stop characters.
func phrasesOf(s string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, run := range runs(s) {
		if !run.han {
			continue
		}
		for _, part := range strings.FieldsFunc(string(run.text), func(r rune) bool { return stopChars[r] }) {
			if len([]rune(part)) >= 2 && !seen[part] {
				seen[part] = true
				out = append(out, part)
			}
		}
	}
	return out
}

type run struct {
	text []rune
	han  bool
}

// runs splits s into maximal Han runs and maximal Latin/digit runs.
func runs(s string) []run {
	var (
		out []run
		cur run
	)
	flush := func() {
		if len(cur.text) > 0 {
			out = append(out, cur)
		}
		cur = run{}
	}
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			if !cur.han {
				flush()
				cur.han = true
			}
			cur.text = append(cur.text, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if cur.han {
				flush()
			}
			cur.text = append(cur.text, r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func dedupeByPrefix(ranked []Ranked) []Ranked {
	seen := make(map[string]bool, len(ranked))
	out := ranked[:0:0]
	for _, r := range ranked {
		key := prefixKey(r.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func prefixKey(text string) string {
	var b []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b = append(b, r)
		if len(b) == prefixRunes {
			break
		}
	}
	return string(b)
}

func capRanked(ranked []Ranked) []Ranked {
	if len(ranked) > MaxRanked {
		return ranked[:MaxRanked]
	}
	return ranked
}
