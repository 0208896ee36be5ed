// Package embedding converts text to vectors with a remote model or a local hashing fallback.
package embedding

import (
	"context"
	"errors"
)

// ErrProviderUnavailable means the remote provider has no credential or its call failed.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Kind identifies the family of a provider. The vector index picks its
// distance metric and similarity floor from it.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Provider embeds texts into fixed-dimension vectors, one per input, in order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Kind() Kind
}
