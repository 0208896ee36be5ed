// Package retrieval turns a question into an ordered set of context passages.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bull/futurenest-rag/internal/statute"
	"github.com/bull/futurenest-rag/internal/storage"
)

// Searcher is the vector index as seen by the retriever.
type Searcher interface {
	Query(ctx context.Context, text string, topK int, documentIDs []string) ([]storage.Hit, error)
}

// ArticleFinder locates an article in the reference documents.
type ArticleFinder interface {
	Find(n int, documentIDs []string) (statute.Hit, bool)
}

// Context is one passage handed to the prompt builder.
type Context struct {
	ID         string
	DocumentID string
	Text       string
	// Score is the vector similarity, or 1 for an extracted article.
	Score float64
	// Pinned marks passages that literally contain an article named in the
	// question. They survive the lexical filter and sort ahead of the rest.
	Pinned bool
}

// Retriever runs the vector path with article reprioritization and the
// extraction fallback.
type Retriever struct {
	index  Searcher
	finder ArticleFinder
	logger *slog.Logger
}

// New creates a Retriever. finder may be nil, which disables the fast path
// and the extraction fallback.
func New(index Searcher, finder ArticleFinder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, finder: finder, logger: logger}
}

// FastPath looks up the article when the normalized query names exactly one.
func (r *Retriever) FastPath(normalized string, documentIDs []string) (statute.Hit, bool) {
	if r.finder == nil {
		return statute.Hit{}, false
	}
	n, ok := statute.SingleArticle(normalized)
	if !ok {
		return statute.Hit{}, false
	}
	return r.finder.Find(n, documentIDs)
}

// Retrieve queries the index and applies article reprioritization and the
// extraction fallback. Index failures yield no vector contexts; they are
// logged and never returned.
func (r *Retriever) Retrieve(ctx context.Context, normalized string, topK int, documentIDs []string) []Context {
	var contexts []Context

	if r.index != nil {
		hits, err := r.index.Query(ctx, normalized, topK, documentIDs)
		if err != nil {
			r.logger.Warn("Vector query failed, continuing without vector context", "error", err)
		}
		for _, h := range hits {
			contexts = append(contexts, Context{
				ID:         h.ID,
				DocumentID: h.DocumentID,
				Text:       h.Text,
				Score:      h.Similarity,
			})
		}
	}

	articles := statute.ArticleNumbers(normalized)
	if len(articles) == 0 {
		return truncate(dedupeByID(contexts), topK)
	}

	contexts = Reprioritize(contexts, articles, topK)
	return r.fallback(contexts, articles, topK, documentIDs)
}

// Reprioritize moves contexts mentioning any of the articles to the front,
// keeping relative order within both groups, then dedupes by id and
// truncates to topK.
func Reprioritize(contexts []Context, articles []int, topK int) []Context {
	var matched, rest []Context
	for _, c := range contexts {
		if mentionsAny(c.Text, articles) {
			c.Pinned = true
			matched = append(matched, c)
			continue
		}
		rest = append(rest, c)
	}
	return truncate(dedupeByID(append(matched, rest...)), topK)
}

// fallback prepends extracted sections for named articles that no context
// mentions.
func (r *Retriever) fallback(contexts []Context, articles []int, topK int, documentIDs []string) []Context {
	if r.finder == nil {
		return contexts
	}

	all := joinTexts(contexts)
	var extracted []Context
	for _, n := range articles {
		if mentionsAny(all, []int{n}) {
			continue
		}
		hit, ok := r.finder.Find(n, documentIDs)
		if !ok {
			continue
		}
		r.logger.Debug("Using extracted article", "template", hit.DocumentID, "article", n)
		extracted = append(extracted, Context{
			ID:         hit.SourceID(),
			DocumentID: hit.DocumentID,
			Text:       hit.Text,
			Score:      1,
			Pinned:     true,
		})
	}
	if len(extracted) == 0 {
		return contexts
	}
	return truncate(dedupeByID(append(extracted, contexts...)), topK)
}

func mentionsAny(text string, articles []int) bool {
	normalized := statute.FoldDigits(statute.Normalize(text))
	for _, n := range articles {
		if strings.Contains(normalized, statute.Marker(n)) {
			return true
		}
	}
	return false
}

func joinTexts(contexts []Context) string {
	var sb strings.Builder
	for _, c := range contexts {
		sb.WriteString(c.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func dedupeByID(contexts []Context) []Context {
	seen := make(map[string]bool, len(contexts))
	out := contexts[:0:0]
	for _, c := range contexts {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func truncate(contexts []Context, n int) []Context {
	if n > 0 && len(contexts) > n {
		return contexts[:n]
	}
	return contexts
}
