// Package app wires the configured components into a RAG service. Both
// binaries share it so they always agree on the index they open.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bull/futurenest-rag/internal/chunker"
	"github.com/bull/futurenest-rag/internal/config"
	"github.com/bull/futurenest-rag/internal/embedding"
	"github.com/bull/futurenest-rag/internal/generation"
	"github.com/bull/futurenest-rag/internal/rag"
	"github.com/bull/futurenest-rag/internal/storage"
	"github.com/bull/futurenest-rag/internal/templates"
)

// App holds the process-wide components. Close releases the index.
type App struct {
	Config   *config.Config
	Index    *storage.Index
	Registry *templates.Registry
	Service  *rag.Service
	Logger   *slog.Logger
}

// NewLogger returns a text logger on w at the named level (debug, info,
// warn or error; anything else is info).
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// New selects the embedding provider, opens the vector backend and builds
// the service. The embedding provider is probed once here and never swapped.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider := embedding.Select(ctx, embedding.SelectOptions{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.Embedding.Model,
		Dimension:      cfg.Embedding.Dimension,
		BatchSize:      cfg.Embedding.BatchSize,
		LocalDimension: cfg.Embedding.LocalDimension,
	}, logger)

	backend, err := OpenBackend(ctx, cfg.Index)
	if err != nil {
		return nil, err
	}
	logger.Info("Vector backend ready", "backend", backend.Name())

	index := storage.NewIndex(backend, provider, storage.IndexOptions{
		MinSimilarityLocal:  cfg.Index.MinSimilarityLocal,
		MinSimilarityRemote: cfg.Index.MinSimilarityRemote,
		Logger:              logger,
	})

	registry, err := templates.NewRegistry(cfg.Templates.Dir, templates.Defaults)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("template registry: %w", err)
	}

	service := rag.New(index, registry, newGenerator(cfg, logger), rag.Options{
		SystemPrompt:    cfg.Generation.SystemPrompt,
		InlineCitations: cfg.Generation.InlineCitations,
		SnippetMaxChars: cfg.Generation.SnippetMaxChars,
		Chunker:         chunker.New(chunker.WithChunkSize(cfg.Chunker.Size), chunker.WithOverlap(cfg.Chunker.Overlap)),
		Logger:          logger,
	})

	return &App{
		Config:   cfg,
		Index:    index,
		Registry: registry,
		Service:  service,
		Logger:   logger,
	}, nil
}

// OpenBackend connects the configured vector backend.
func OpenBackend(ctx context.Context, cfg config.IndexConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendQdrant:
		b, err := storage.NewQdrantBackend(storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendPgvector:
		b, err := storage.NewPgvectorBackend(ctx, cfg.DatabaseURL, cfg.Table)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendSQLite, "":
		b, err := storage.OpenSQLite(filepath.Join(cfg.Dir, "index.db"))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedBackend, cfg.Backend)
}

func newGenerator(cfg *config.Config, logger *slog.Logger) generation.Generator {
	client, err := embedding.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	if err != nil {
		logger.Info("Using demo generator", "reason", err)
		return generation.NewDemoGenerator()
	}
	return generation.New(client.Client(), cfg.Generation.ChatModel, logger)
}

// AutoIngest indexes every template when enabled. Failures are logged per
// template and never stop startup.
func (a *App) AutoIngest(ctx context.Context) {
	if !a.Config.Templates.AutoIngest {
		return
	}
	report := a.Service.IngestAllTemplates(ctx, nil)
	for _, r := range report.Results {
		if !r.OK {
			a.Logger.Warn("Template auto-ingest failed", "template", r.DocumentID, "error", r.Error)
		}
	}
	a.Logger.Info("Template auto-ingest complete",
		"succeeded", report.Succeeded, "failed", report.Failed, "chunks", report.TotalChunks)
}

// Close releases the vector index.
func (a *App) Close() error {
	return a.Index.Close()
}
