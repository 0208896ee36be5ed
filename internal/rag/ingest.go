package rag

import (
	"context"
	"fmt"

	"github.com/bull/futurenest-rag/internal/indexer"
	"github.com/bull/futurenest-rag/internal/templates"
)

// Ingest chunks text and upserts it under documentID. Returns the chunk and
// upsert counts.
func (s *Service) Ingest(ctx context.Context, documentID, text string) (int, int, error) {
	return s.pipeline.Ingest(ctx, documentID, text)
}

// IngestBatch ingests documents and reports per document.
func (s *Service) IngestBatch(ctx context.Context, docs []indexer.Document, progress indexer.ProgressReporter) *indexer.Report {
	return s.pipeline.IngestBatch(ctx, docs, progress)
}

// Templates lists the registered reference documents.
func (s *Service) Templates() []templates.Meta {
	if s.registry == nil {
		return nil
	}
	return s.registry.List()
}

// IngestTemplate loads a reference document and ingests it under its id.
func (s *Service) IngestTemplate(ctx context.Context, id string) (int, int, error) {
	if s.registry == nil {
		return 0, 0, fmt.Errorf("%w: %s", templates.ErrNotFound, id)
	}
	text, err := s.registry.LoadText(id)
	if err != nil {
		return 0, 0, err
	}
	return s.pipeline.Ingest(ctx, id, text)
}

// IngestAllTemplates ingests every registered reference document. Missing
// files are reported in the results like any other failure.
func (s *Service) IngestAllTemplates(ctx context.Context, progress indexer.ProgressReporter) *indexer.Report {
	metas := s.Templates()
	docs := make([]indexer.Document, 0, len(metas))
	var failed []indexer.Result
	for _, m := range metas {
		text, err := s.registry.LoadText(m.ID)
		if err != nil {
			s.logger.Warn("Skipping template", "template", m.ID, "error", err)
			failed = append(failed, indexer.Result{DocumentID: m.ID, Error: err.Error()})
			if progress != nil {
				progress.Add(1)
			}
			continue
		}
		docs = append(docs, indexer.Document{ID: m.ID, Text: text})
	}

	report := s.pipeline.IngestBatch(ctx, docs, progress)
	report.Results = append(report.Results, failed...)
	report.Failed += len(failed)
	return report
}
