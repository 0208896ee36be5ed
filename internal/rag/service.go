// Package rag answers questions over the indexed corpus and the statute
// reference documents.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bull/futurenest-rag/internal/chunker"
	"github.com/bull/futurenest-rag/internal/embedding"
	"github.com/bull/futurenest-rag/internal/generation"
	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/prompt"
	"github.com/bull/futurenest-rag/internal/retrieval"
	"github.com/bull/futurenest-rag/internal/statute"
	"github.com/bull/futurenest-rag/internal/templates"
)

// ErrValidation is returned by Answer for malformed requests.
var ErrValidation = errors.New("invalid request")

// Request limits.
const (
	MaxMessageRunes      = 4000
	MaxHistoryTurns      = 30
	MaxHistoryItemRunes  = 4000
	MaxHistoryTotalRunes = 20000
	DefaultTopK          = 5
	MaxTopK              = 50

	// DefaultSnippetMaxChars bounds source snippets in responses.
	DefaultSnippetMaxChars = 300
)

// FallbackAnswer is returned when generation produces nothing.
const FallbackAnswer = "抱歉，處理您的問題時發生了錯誤。請稍後再試，或簡化您的問題。"

// Answer modes reported in Response.Mode.
const (
	ModeIdentity = "identity"
	ModeArticle  = "article"
	ModeRAG      = "rag"
)

// Index is the vector index used by the service.
type Index interface {
	retrieval.Searcher
	indexer.Index
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) error
	Provider() embedding.Provider
	BackendName() string
}

// Request is one question.
type Request struct {
	Message string        `json:"message"`
	History []prompt.Turn `json:"history,omitempty"`
	// TopK is the number of passages to retrieve; 0 means DefaultTopK.
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	// InlineCitations overrides the configured citation mode when set.
	InlineCitations *bool `json:"inline_citations,omitempty"`
}

// Source is a passage the answer was grounded on.
type Source struct {
	ID               string  `json:"id"`
	DocumentID       string  `json:"document_id,omitempty"`
	Snippet          string  `json:"snippet"`
	ArticleReference string  `json:"article_reference,omitempty"`
	Score            float64 `json:"score"`
}

// Response is the answer with its attributed sources.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Mode    string   `json:"mode"`
}

// Options configures a Service.
type Options struct {
	SystemPrompt    string
	InlineCitations bool
	SnippetMaxChars int
	Chunker         *chunker.Chunker
	Logger          *slog.Logger
}

// Service is the RAG entry point. It holds no per-request state and is safe
// for concurrent use.
type Service struct {
	index      Index
	registry   *templates.Registry
	retriever  *retrieval.Retriever
	pipeline   *indexer.Pipeline
	generator  generation.Generator
	builder    *prompt.Builder
	inline     bool
	snippetMax int
	logger     *slog.Logger
}

// New wires a Service. registry may be nil, which disables the article fast
// path and template ingest.
func New(index Index, registry *templates.Registry, generator generation.Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SnippetMaxChars <= 0 {
		opts.SnippetMaxChars = DefaultSnippetMaxChars
	}
	if generator == nil {
		generator = generation.NewDemoGenerator()
	}

	var finder retrieval.ArticleFinder
	if registry != nil {
		finder = statute.NewExtractor(registry, opts.Logger)
	}

	return &Service{
		index:      index,
		registry:   registry,
		retriever:  retrieval.New(index, finder, opts.Logger),
		pipeline:   indexer.NewPipeline(opts.Chunker, index, opts.Logger),
		generator:  generator,
		builder:    prompt.NewBuilder(opts.SystemPrompt),
		inline:     opts.InlineCitations,
		snippetMax: opts.SnippetMaxChars,
		logger:     opts.Logger,
	}
}

// Generator returns the text generator in use.
func (s *Service) Generator() generation.Generator { return s.generator }

// Answer runs the pipeline for one question. Only request validation fails;
// retrieval and generation problems degrade the answer instead.
func (s *Service) Answer(ctx context.Context, req Request) (*Response, error) {
	topK, err := validate(&req)
	if err != nil {
		return nil, err
	}
	inline := s.inline
	if req.InlineCitations != nil {
		inline = *req.InlineCitations
	}

	normalized := statute.Normalize(req.Message)
	s.logger.Debug("Normalized question", "stage", "normalize", "query", normalized)

	if isIdentityQuestion(req.Message) {
		s.logger.Debug("Answering model identity question", "stage", "identity")
		return &Response{Answer: s.identityAnswer(), Sources: []Source{}, Mode: ModeIdentity}, nil
	}

	if hit, ok := s.retriever.FastPath(normalized, req.DocumentIDs); ok {
		s.logger.Debug("Article fast path", "stage", "fast_path", "template", hit.DocumentID, "reference", hit.Reference())
		p := s.builder.BuildArticleSummary(req.Message, hit.Title, hit.Article, hit.Text)
		return &Response{
			Answer: s.generate(ctx, p, false),
			Sources: []Source{s.source(retrieval.Context{
				ID:         hit.SourceID(),
				DocumentID: hit.DocumentID,
				Text:       hit.Text,
				Score:      1,
			})},
			Mode: ModeArticle,
		}, nil
	}

	contexts := s.retriever.Retrieve(ctx, normalized, topK, req.DocumentIDs)
	s.logger.Debug("Retrieved contexts", "stage", "retrieve", "count", len(contexts))

	ranked := retrieval.Contexts(retrieval.FilterAndRank(normalized, contexts))
	s.logger.Debug("Ranked contexts", "stage", "rank", "count", len(ranked))

	p := s.builder.Build(req.Message, req.History, ranked, inline)
	answer := s.generate(ctx, p, inline)

	sources := make([]Source, 0, len(ranked))
	for _, c := range ranked {
		sources = append(sources, s.source(c))
	}
	return &Response{Answer: answer, Sources: sources, Mode: ModeRAG}, nil
}

func (s *Service) generate(ctx context.Context, p string, inline bool) string {
	answer := strings.TrimSpace(s.generator.Generate(ctx, p))
	if !inline {
		answer = StripCitations(answer)
	}
	if answer == "" {
		s.logger.Warn("Generation returned no text", "provider", s.generator.Provider(), "model", s.generator.Model())
		return FallbackAnswer
	}
	return answer
}

func (s *Service) source(c retrieval.Context) Source {
	return Source{
		ID:               c.ID,
		DocumentID:       c.DocumentID,
		Snippet:          Snippet(c.Text, s.snippetMax),
		ArticleReference: s.articleReference(c.ID),
		Score:            c.Score,
	}
}

func (s *Service) articleReference(id string) string {
	documentID, n, ok := ParseArticleID(id)
	if !ok {
		return ""
	}
	var title string
	if s.registry != nil {
		title = s.registry.Title(documentID)
	}
	return title + statute.Marker(n)
}

// validate checks limits and returns the effective top_k.
func validate(req *Request) (int, error) {
	msg := strings.TrimSpace(req.Message)
	switch {
	case msg == "":
		return 0, fmt.Errorf("%w: message is empty", ErrValidation)
	case utf8.RuneCountInString(req.Message) > MaxMessageRunes:
		return 0, fmt.Errorf("%w: message too long (>%d chars)", ErrValidation, MaxMessageRunes)
	case req.TopK < 0 || req.TopK > MaxTopK:
		return 0, fmt.Errorf("%w: top_k must be between 1 and %d", ErrValidation, MaxTopK)
	case len(req.History) > MaxHistoryTurns:
		return 0, fmt.Errorf("%w: history too long (>%d turns)", ErrValidation, MaxHistoryTurns)
	}

	total := 0
	for i, turn := range req.History {
		if turn.Role != "user" && turn.Role != "assistant" {
			return 0, fmt.Errorf("%w: history[%d] role must be user or assistant", ErrValidation, i)
		}
		n := utf8.RuneCountInString(turn.Content)
		if n > MaxHistoryItemRunes {
			return 0, fmt.Errorf("%w: history[%d] too long (>%d chars)", ErrValidation, i, MaxHistoryItemRunes)
		}
		total += n
	}
	if total > MaxHistoryTotalRunes {
		return 0, fmt.Errorf("%w: history too long (>%d chars in total)", ErrValidation, MaxHistoryTotalRunes)
	}

	if req.TopK == 0 {
		return DefaultTopK, nil
	}
	return req.TopK, nil
}
