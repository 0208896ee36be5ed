package embedding

import (
	"context"
	"log/slog"
	"time"
)

// SelectOptions configures provider selection.
type SelectOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimension      int
	BatchSize      int
	LocalDimension int
	ProbeTimeout   time.Duration
}

// Select returns the remote provider when a credential is present and one
// trial embedding succeeds, otherwise the local hashing provider. It probes
// once; callers keep the result for the lifetime of their vector index.
func Select(ctx context.Context, opts SelectOptions, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	local := NewHashProvider(opts.LocalDimension)

	client, err := NewClient(opts.APIKey, opts.BaseURL)
	if err != nil {
		logger.Info("Using local embedding provider", "model", local.Model(), "reason", err)
		return local
	}

	remote := NewOpenAIProvider(client, opts.Model, opts.Dimension, opts.BatchSize)

	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := remote.Embed(probeCtx, []string{"embedding probe"}); err != nil {
		logger.Warn("Remote embedding provider failed probe, using local provider",
			"model", remote.Model(), "fallback", local.Model(), "error", err)
		return local
	}

	logger.Info("Using remote embedding provider", "model", remote.Model(), "dimension", remote.Dimension())
	return remote
}
