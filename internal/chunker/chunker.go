// Package chunker splits plain document text into overlapping fragments for indexing.
package chunker

import "unicode/utf8"

const (
	// DefaultChunkSize is the target fragment length in runes.
	DefaultChunkSize = 600

	// DefaultOverlap is the number of trailing runes carried into the next fragment.
	DefaultOverlap = 150
)

// Chunker splits text at sentence boundaries with a bounded overlap.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target fragment length in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets how many trailing runes of a fragment start the next one.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a Chunker using DefaultChunkSize and DefaultOverlap unless overridden.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkSize returns the configured fragment length.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text with the chunker's configuration.
func (c *Chunker) Split(text string) []string {
	return Split(text, c.chunkSize, c.overlap)
}

// Split breaks text into ordered fragments of roughly chunkSize runes.
//
// Fragments end on sentence boundaries where possible. When a fragment is
// flushed, its last overlap runes (if it is longer than overlap) start the next
// fragment. A sentence longer than chunkSize is kept whole. Text that already
// fits, or a non-positive chunkSize, yields a single fragment equal to text.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 || utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}

	var (
		chunks []string
		buf    []rune
	)
	for _, sentence := range Sentences(text) {
		s := []rune(sentence)
		if len(buf) > 0 && len(buf)+len(s) > chunkSize {
			chunks = append(chunks, string(buf))
			buf = carry(buf, overlap)
		}
		buf = append(buf, s...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, string(buf))
	}
	return chunks
}

// carry returns a fresh buffer holding the tail of an emitted fragment.
func carry(emitted []rune, overlap int) []rune {
	if overlap == 0 || len(emitted) <= overlap {
		return nil
	}
	tail := make([]rune, overlap)
	copy(tail, emitted[len(emitted)-overlap:])
	return tail
}

// Sentences splits text after every run of sentence terminators. The
// terminators stay with the sentence they end, so joining the result gives
// back text unchanged.
func Sentences(text string) []string {
	var (
		out   []string
		start int
		inRun bool
	)
	for i, r := range text {
		if isTerminator(r) {
			inRun = true
			continue
		}
		if inRun {
			out = append(out, text[start:i])
			start = i
			inRun = false
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '\n':
		return true
	}
	return false
}
