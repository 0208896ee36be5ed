package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/bull/futurenest-rag/internal/chunker"
	"github.com/bull/futurenest-rag/internal/storage"
)

// ErrValidation marks malformed ingest input.
var ErrValidation = errors.New("invalid document")

const (
	// DefaultConcurrency is the number of documents ingested in parallel by IngestBatch.
	DefaultConcurrency = 4
	// MaxDocumentIDLen bounds document ids (in runes).
	MaxDocumentIDLen = 200
	// MaxTextBytes bounds a single document.
	MaxTextBytes = 10 << 20
)

// Index is the part of the vector index the pipeline writes to.
type Index interface {
	Upsert(ctx context.Context, ids, texts []string, metas []storage.Metadata) (int, error)
	Prune(ctx context.Context, documentID string, keep int) error
}

// ProgressReporter receives one Add(1) per finished document.
// *progressbar.ProgressBar satisfies it.
type ProgressReporter interface {
	Add(num int) error
}

// Document is one ingest input.
type Document struct {
	ID   string `json:"document_id"`
	Text string `json:"text"`
}

// Result is the outcome for one document of a batch.
type Result struct {
	DocumentID string `json:"document_id"`
	OK         bool   `json:"ok"`
	Chunks     int    `json:"chunks"`
	Upserts    int    `json:"upserts"`
	Error      string `json:"error,omitempty"`
}

// Report contains statistics about a batch ingest. Results are in input order.
type Report struct {
	Results     []Result      `json:"results"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	TotalChunks int           `json:"total_chunks"`
	Duration    time.Duration `json:"duration"`
}

// Pipeline chunks documents and writes them to the index.
type Pipeline struct {
	chunker     *chunker.Chunker
	index       Index
	concurrency int
	logger      *slog.Logger
}

// NewPipeline creates a new ingest pipeline with the given components.
func NewPipeline(ch *chunker.Chunker, index Index, logger *slog.Logger) *Pipeline {
	if ch == nil {
		ch = chunker.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:     ch,
		index:       index,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// SetConcurrency changes the IngestBatch parallelism. Values below 1 are ignored.
func (p *Pipeline) SetConcurrency(n int) {
	if n >= 1 {
		p.concurrency = n
	}
}

// ChunkID is the index id of chunk i of a document.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s:%d", documentID, i)
}

// Validate checks a document id and text.
func Validate(documentID, text string) error {
	switch {
	case strings.TrimSpace(documentID) == "":
		return fmt.Errorf("%w: document id is empty", ErrValidation)
	case utf8.RuneCountInString(documentID) > MaxDocumentIDLen:
		return fmt.Errorf("%w: document id longer than %d characters", ErrValidation, MaxDocumentIDLen)
	case strings.ContainsFunc(documentID, func(r rune) bool { return r == ':' || unicode.IsSpace(r) || unicode.IsControl(r) }):
		return fmt.Errorf("%w: document id %q contains ':', whitespace or control characters", ErrValidation, documentID)
	case !utf8.ValidString(text):
		return fmt.Errorf("%w: text is not valid UTF-8", ErrValidation)
	case strings.TrimSpace(text) == "":
		return fmt.Errorf("%w: text is empty", ErrValidation)
	case len(text) > MaxTextBytes:
		return fmt.Errorf("%w: text larger than %d bytes", ErrValidation, MaxTextBytes)
	}
	return nil
}

// Ingest chunks text and upserts the chunks under documentID, replacing any
// earlier version of the document. Returns the chunk and upsert counts.
func (p *Pipeline) Ingest(ctx context.Context, documentID, text string) (int, int, error) {
	if err := Validate(documentID, text); err != nil {
		return 0, 0, err
	}

	chunks := p.chunker.Split(text)
	p.logger.Debug("Chunked document", "document_id", documentID, "chunks", len(chunks))

	ids := make([]string, len(chunks))
	metas := make([]storage.Metadata, len(chunks))
	for i := range chunks {
		ids[i] = ChunkID(documentID, i)
		metas[i] = storage.Metadata{DocumentID: documentID, ChunkIndex: i}
	}

	upserts, err := p.index.Upsert(ctx, ids, chunks, metas)
	if err != nil {
		return len(chunks), 0, fmt.Errorf("upsert: %w", err)
	}
	if err := p.index.Prune(ctx, documentID, len(chunks)); err != nil {
		return len(chunks), upserts, fmt.Errorf("prune stale chunks: %w", err)
	}

	p.logger.Info("Ingested document", "document_id", documentID, "chunks", len(chunks), "upserts", upserts)
	return len(chunks), upserts, nil
}

// IngestBatch ingests documents concurrently. A failing document is recorded
// in its Result and does not affect the others; a document id repeated within
// the batch fails validation after its first occurrence.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []Document, progress ProgressReporter) *Report {
	start := time.Now()
	report := &Report{Results: make([]Result, len(docs))}

	seen := make(map[string]bool, len(docs))
	g := &errgroup.Group{}
	g.SetLimit(p.concurrency)

	for i, doc := range docs {
		report.Results[i].DocumentID = doc.ID
		if seen[doc.ID] {
			report.Results[i].Error = fmt.Errorf("%w: duplicate document id %q in batch", ErrValidation, doc.ID).Error()
			tick(progress)
			continue
		}
		seen[doc.ID] = true

		g.Go(func() error {
			defer tick(progress)
			res := &report.Results[i]
			if err := ctx.Err(); err != nil {
				res.Error = err.Error()
				return nil
			}
			chunks, upserts, err := p.Ingest(ctx, doc.ID, doc.Text)
			res.Chunks, res.Upserts = chunks, upserts
			if err != nil {
				p.logger.Warn("Failed to ingest document", "document_id", doc.ID, "error", err)
				res.Error = err.Error()
				return nil
			}
			res.OK = true
			return nil
		})
	}
	g.Wait()

	for _, r := range report.Results {
		if r.OK {
			report.Succeeded++
			report.TotalChunks += r.Chunks
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(start)

	p.logger.Info("Batch ingest complete",
		"successful", report.Succeeded,
		"failed", report.Failed,
		"chunks", report.TotalChunks,
		"duration", report.Duration,
	)
	return report
}

func tick(progress ProgressReporter) {
	if progress != nil {
		progress.Add(1)
	}
}
