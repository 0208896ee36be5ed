package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bull/futurenest-rag/internal/generation"
)

// citationPattern matches numeric bracket citations such as [1], [1,2],
// [1, 2] and [1-3], in ASCII or full-width brackets.
var citationPattern = regexp.MustCompile(`[ \t]*[\[［]\s*\d+(?:\s*[,，、\-–~]\s*\d+)*\s*[\]］]`)

var articleIDPattern = regexp.MustCompile(`^([^:]+):article:(\d+)$`)

// StripCitations removes numeric bracket citation markers from text.
func StripCitations(text string) string {
	return strings.TrimSpace(citationPattern.ReplaceAllString(text, ""))
}

// Snippet trims text to at most maxChars runes, marking a cut with an ellipsis.
func Snippet(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if maxChars <= 0 || len(r) <= maxChars {
		return text
	}
	return string(r[:maxChars]) + "…"
}

// ParseArticleID extracts the document id and article number from a context
// id of the form "<document>:article:<n>".
func ParseArticleID(id string) (string, int, bool) {
	m := articleIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return m[1], n, true
}

var identityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat\s+(?:ai\s+|language\s+)?model\b`),
	regexp.MustCompile(`(?i)\bwhich\s+(?:ai\s+|language\s+)?(?:model|llm)\b`),
	regexp.MustCompile(`(?i)\bare\s+you\s+(?:chatgpt|gpt|gemini|claude|llama)\b`),
	regexp.MustCompile(`(?i)\bwho\s+(?:made|built|trained)\s+you\b`),
	regexp.MustCompile(`(?:什麼|甚麼|哪個|哪一個|哪種|哪款)\s*(?:語言)?(?:模型|AI|ai|LLM|llm)`),
	regexp.MustCompile(`(?:模型|AI|ai|LLM|llm)\s*(?:是|為)\s*(?:什麼|甚麼|哪個|哪一個|哪種)`),
	regexp.MustCompile(`你(?:是|用|使用)(?:的)?\s*(?:ChatGPT|GPT|Gemini|Claude|chatgpt|gpt|gemini|claude)`),
}

// isIdentityQuestion reports whether the message asks which model is answering.
func isIdentityQuestion(message string) bool {
	for _, p := range identityPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

func (s *Service) identityAnswer() string {
	return IdentityAnswer(s.generator)
}

// IdentityAnswer is the canned reply naming the active generator.
func IdentityAnswer(g generation.Generator) string {
	return fmt.Sprintf("目前回答由 %s 提供的 %s 模型產生，並依據已索引的勞動法規資料檢索補充內容。", g.Provider(), g.Model())
}
