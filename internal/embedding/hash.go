package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the bucket count of the local provider.
const DefaultHashDimension = 256

// HashProvider is the local, always-available embedder. Tokens are single
// characters plus adjacent character bigrams, so it works for text without
// whitespace word boundaries. Each token is hashed with SHA-256 into one of
// Dimension buckets and the counts are L2 normalized.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a local provider with dim buckets (DefaultHashDimension if dim <= 0).
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashProvider{dim: dim}
}

func (h *HashProvider) Dimension() int { return h.dim }
func (h *HashProvider) Model() string  { return fmt.Sprintf("local-hash-%d", h.dim) }
func (h *HashProvider) Kind() Kind     { return KindLocal }

// Embed never fails; the context is accepted for interface compatibility.
func (h *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashProvider) vector(text string) []float32 {
	counts := make([]float64, h.dim)
	for _, tok := range hashTokens(text) {
		counts[h.bucket(tok)]++
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, c := range counts {
		vec[i] = float32(c / norm)
	}
	return vec
}

func (h *HashProvider) bucket(token string) int {
	sum := sha256.Sum256([]byte(token))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(h.dim))
}

// hashTokens returns characters and bigrams of every letter/digit run.
func hashTokens(text string) []string {
	var tokens []string
	var run []rune
	flush := func() {
		for i, r := range run {
			tokens = append(tokens, string(r))
			if i+1 < len(run) {
				tokens = append(tokens, string(run[i:i+2]))
			}
		}
		run = run[:0]
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}
