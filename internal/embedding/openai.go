package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the OpenAI embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	DefaultBatchSize = 500
)

// OpenAIProvider embeds text with an OpenAI embedding model.
// Rate limit errors (HTTP 429) are retried with exponential backoff; every
// other failure is reported as ErrProviderUnavailable.
type OpenAIProvider struct {
	client    *Client
	model     string
	batchSize int
	dimension atomic.Int64
}

// NewOpenAIProvider creates a remote provider. A zero dimension is learned
// from the first response.
func NewOpenAIProvider(client *Client, model string, dimension, batchSize int) *OpenAIProvider {
	if model == "" {
		model = DefaultModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	p := &OpenAIProvider{
		client:    client,
		model:     model,
		batchSize: batchSize,
	}
	p.dimension.Store(int64(dimension))
	return p
}

func (p *OpenAIProvider) Dimension() int { return int(p.dimension.Load()) }
func (p *OpenAIProvider) Model() string  { return p.model }
func (p *OpenAIProvider) Kind() Kind     { return KindRemote }

// Embed returns one vector per text. It never returns a partial or empty result.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: no client configured", ErrProviderUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += p.batchSize {
		end := min(i+p.batchSize, len(texts))

		vectors, err := p.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrProviderUnavailable, i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatchWithRetry embeds a single batch, retrying only on rate limits.
func (p *OpenAIProvider) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := p.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
		}

		out := make([][]float32, len(texts))
		for _, data := range resp.Data {
			idx := int(data.Index)
			if idx < 0 || idx >= len(out) || len(data.Embedding) == 0 {
				return backoff.Permanent(fmt.Errorf("invalid embedding at index %d", data.Index))
			}
			out[idx] = toFloat32(data.Embedding)
		}
		if err := p.checkDimension(out); err != nil {
			return backoff.Permanent(err)
		}
		vectors = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

// checkDimension learns the dimension on first use and rejects vectors that disagree.
func (p *OpenAIProvider) checkDimension(vectors [][]float32) error {
	for _, v := range vectors {
		if v == nil {
			return errors.New("missing embedding in response")
		}
		want := p.dimension.Load()
		if want == 0 {
			p.dimension.CompareAndSwap(0, int64(len(v)))
			want = p.dimension.Load()
		}
		if int64(len(v)) != want {
			return fmt.Errorf("embedding has %d dimensions, expected %d", len(v), want)
		}
	}
	return nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
