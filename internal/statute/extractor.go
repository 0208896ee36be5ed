package statute

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bull/futurenest-rag/internal/templates"
)

// Library is the read-only set of reference documents searched for articles.
type Library interface {
	List() []templates.Meta
	LoadText(id string) (string, error)
}

// Hit is an article found in a reference document.
type Hit struct {
	DocumentID string
	Title      string
	Article    int
	Text       string
}

// Reference returns the human readable citation, e.g. 勞基法第70條.
func (h Hit) Reference() string {
	return h.Title + Marker(h.Article)
}

// SourceID returns the context id carrying the article marker.
func (h Hit) SourceID() string {
	return SourceID(h.DocumentID, h.Article)
}

// SourceID builds "<document>:article:<n>".
func SourceID(documentID string, n int) string {
	return fmt.Sprintf("%s:article:%d", documentID, n)
}

type cached struct {
	hit   Hit
	found bool
}

// Extractor looks articles up across a Library. Reference documents are
// static for the life of the process, so loaded texts and lookups (including
// misses) are cached indefinitely.
type Extractor struct {
	library Library
	texts   sync.Map // document id -> string
	results sync.Map // "<document>#<n>" -> cached
	logger  *slog.Logger
}

// NewExtractor creates an Extractor over library.
func NewExtractor(library Library, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{library: library, logger: logger}
}

// Find returns the first document, in registry order, containing article n.
// A non-empty documentIDs restricts the search to those documents.
func (e *Extractor) Find(n int, documentIDs []string) (Hit, bool) {
	if e == nil || e.library == nil || n <= 0 {
		return Hit{}, false
	}
	for _, meta := range e.library.List() {
		if len(documentIDs) > 0 && !slices.Contains(documentIDs, meta.ID) {
			continue
		}
		if hit, ok := e.lookup(meta, n); ok {
			return hit, true
		}
	}
	return Hit{}, false
}

func (e *Extractor) lookup(meta templates.Meta, n int) (Hit, bool) {
	key := fmt.Sprintf("%s#%d", meta.ID, n)
	if v, ok := e.results.Load(key); ok {
		c := v.(cached)
		return c.hit, c.found
	}

	text, err := e.text(meta.ID)
	if err != nil {
		// Load failures are not cached.
		e.logger.Warn("Failed to load reference document", "template", meta.ID, "error", err)
		return Hit{}, false
	}

	section, found := Extract(text, n)
	c := cached{found: found}
	if found {
		c.hit = Hit{DocumentID: meta.ID, Title: meta.Title, Article: n, Text: section}
	}
	e.results.Store(key, c)
	return c.hit, c.found
}

func (e *Extractor) text(id string) (string, error) {
	if v, ok := e.texts.Load(id); ok {
		return v.(string), nil
	}
	text, err := e.library.LoadText(id)
	if err != nil {
		return "", err
	}
	e.texts.Store(id, text)
	return text, nil
}
