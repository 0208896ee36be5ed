package rag

import (
	"context"

	"github.com/bull/futurenest-rag/internal/embedding"
)

// Diagnostic statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// EmbeddingInfo describes the active embedding provider.
type EmbeddingInfo struct {
	Kind      embedding.Kind `json:"kind"`
	Model     string         `json:"model"`
	Dimension int            `json:"dimension"`
}

// GeneratorInfo describes the active text generator.
type GeneratorInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// IndexInfo describes the vector index.
type IndexInfo struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Records int    `json:"records"`
}

// Diagnostics is the self-check report.
type Diagnostics struct {
	Status          string        `json:"status"`
	Embedding       EmbeddingInfo `json:"embedding"`
	Generator       GeneratorInfo `json:"generator"`
	Index           IndexInfo     `json:"index"`
	Templates       int           `json:"templates"`
	Issues          []string      `json:"issues"`
	Recommendations []string      `json:"recommendations"`
}

// Diagnose inspects the embedding provider, the generator and the index.
// Any issue makes the status degraded; an unusable index makes it error.
func (s *Service) Diagnose(ctx context.Context) Diagnostics {
	p := s.index.Provider()
	d := Diagnostics{
		Embedding:       EmbeddingInfo{Kind: p.Kind(), Model: p.Model(), Dimension: p.Dimension()},
		Generator:       GeneratorInfo{Provider: s.generator.Provider(), Model: s.generator.Model()},
		Index:           IndexInfo{Backend: s.index.BackendName(), Status: "unknown"},
		Templates:       len(s.Templates()),
		Issues:          []string{},
		Recommendations: []string{},
	}

	if p.Kind() == embedding.KindLocal {
		d.Issues = append(d.Issues, "Remote embedding unavailable, using local hashing embedding")
		d.Recommendations = append(d.Recommendations, "Set OPENAI_API_KEY to enable remote embeddings")
	}
	if d.Generator.Provider == "demo" {
		d.Issues = append(d.Issues, "No language model configured, answers are in demo mode")
		d.Recommendations = append(d.Recommendations, "Set OPENAI_API_KEY to enable answer generation")
	}

	if err := s.index.Health(ctx); err != nil {
		d.Index.Status = StatusError
		d.Issues = append(d.Issues, "Vector index unreachable: "+err.Error())
		d.Recommendations = append(d.Recommendations, "Check VECTOR_BACKEND and the index connection settings")
	} else if n, err := s.index.Count(ctx); err != nil {
		d.Index.Status = StatusError
		d.Issues = append(d.Issues, "Vector index error: "+err.Error())
		d.Recommendations = append(d.Recommendations, "Run ragctl reset to rebuild the index")
	} else {
		d.Index.Status = "operational"
		d.Index.Records = n
		if n == 0 {
			d.Issues = append(d.Issues, "Vector index is empty, no documents indexed")
			d.Recommendations = append(d.Recommendations, "Ingest documents with ragctl ingest or set AUTO_INGEST_TEMPLATES=1")
		}
	}

	switch {
	case len(d.Issues) == 0:
		d.Status = StatusHealthy
	case d.Index.Status == "operational":
		d.Status = StatusDegraded
	default:
		d.Status = StatusError
	}
	return d
}

// Health checks the vector index connection.
func (s *Service) Health(ctx context.Context) error {
	return s.index.Health(ctx)
}
