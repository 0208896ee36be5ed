// Package generation produces answer text from a prompt.
package generation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultMaxTokens is the prompt budget before truncation (in tokens).
	DefaultMaxTokens = 16000
)

// Generator turns a prompt into answer text. Implementations never fail:
// errors degrade to a best-effort string.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
	Provider() string
	Model() string
}

// New returns an OpenAI generator when client is set and the demo generator
// otherwise.
func New(client *openai.Client, model string, logger *slog.Logger) Generator {
	if client == nil {
		return NewDemoGenerator()
	}
	return NewOpenAIGenerator(client, model, logger)
}

// OpenAIGenerator produces answers with chat completions and falls back to
// the demo text on any error or empty reply.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
	fallback  *DemoGenerator
	logger    *slog.Logger
}

// NewOpenAIGenerator creates a generator with the given OpenAI client.
// Optional maxTokens parameter sets truncation limit (defaults to DefaultMaxTokens).
func NewOpenAIGenerator(client *openai.Client, model string, logger *slog.Logger, maxTokens ...int) *OpenAIGenerator {
	if model == "" {
		model = DefaultChatModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	return &OpenAIGenerator{
		client:    client,
		model:     model,
		maxTokens: max,
		fallback:  NewDemoGenerator(),
		logger:    logger,
	}
}

func (g *OpenAIGenerator) Provider() string { return "openai" }
func (g *OpenAIGenerator) Model() string    { return g.model }

// Generate sends the prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) string {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(g.truncatePrompt(prompt)),
		},
		Model: openai.ChatModel(g.model),
	})
	if err != nil {
		g.logger.Warn("Chat completion failed, using demo answer", "model", g.model, "error", err)
		return g.fallback.Generate(ctx, prompt)
	}
	if len(resp.Choices) == 0 {
		g.logger.Warn("Chat completion returned no choices, using demo answer", "model", g.model)
		return g.fallback.Generate(ctx, prompt)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return g.fallback.Generate(ctx, prompt)
	}
	return text
}

// truncatePrompt keeps the prompt within the token budget.
// Uses rough estimate of 4 characters per token.
func (g *OpenAIGenerator) truncatePrompt(prompt string) string {
	maxChars := g.maxTokens * 4

	runes := []rune(prompt)
	if len(runes) <= maxChars {
		return prompt
	}

	g.logger.Warn("Truncating prompt",
		"from_chars", len(runes),
		"to_chars", maxChars,
		"max_tokens", g.maxTokens,
	)
	return string(runes[:maxChars])
}

var _ Generator = (*OpenAIGenerator)(nil)
