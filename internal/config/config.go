// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "RAG_CONFIG"

// Vector backends.
const (
	BackendSQLite   = "sqlite"
	BackendQdrant   = "qdrant"
	BackendPgvector = "pgvector"
)

// Config holds the application configuration.
type Config struct {
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Index      IndexConfig      `yaml:"index"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Server     ServerConfig     `yaml:"server"`
	LogLevel   string           `yaml:"log_level"`
}

// OpenAIConfig holds the credential shared by embeddings and generation.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model          string `yaml:"model"`
	Dimension      int    `yaml:"dimension,omitempty"` // 0 = model native
	BatchSize      int    `yaml:"batch_size,omitempty"`
	LocalDimension int    `yaml:"local_dimension"`
}

// GenerationConfig configures answer generation.
type GenerationConfig struct {
	ChatModel       string `yaml:"chat_model"`
	SystemPrompt    string `yaml:"system_prompt,omitempty"`
	InlineCitations bool   `yaml:"inline_citations"`
	SnippetMaxChars int    `yaml:"snippet_max_chars"`
}

// IndexConfig selects and configures the vector backend.
type IndexConfig struct {
	Backend             string       `yaml:"backend"` // "sqlite" | "qdrant" | "pgvector"
	Dir                 string       `yaml:"dir"`
	Qdrant              QdrantConfig `yaml:"qdrant"`
	DatabaseURL         string       `yaml:"database_url,omitempty"`
	Table               string       `yaml:"table,omitempty"`
	MinSimilarityLocal  float64      `yaml:"min_similarity_local"`
	MinSimilarityRemote float64      `yaml:"min_similarity_remote"`
}

// QdrantConfig contains connection details for Qdrant.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls,omitempty"`
	Collection string `yaml:"collection"`
}

// ChunkerConfig configures document splitting. Lengths are in runes.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// TemplatesConfig locates the reference documents.
type TemplatesConfig struct {
	Dir        string       `yaml:"dir"`
	AutoIngest bool         `yaml:"auto_ingest"`
	Source     GitHubSource `yaml:"source"`
}

// GitHubSource is the repository directory templates are synced from.
type GitHubSource struct {
	Owner string `yaml:"owner,omitempty"`
	Repo  string `yaml:"repo,omitempty"`
	Path  string `yaml:"path,omitempty"`
	Ref   string `yaml:"ref,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// ServerConfig configures the MCP server binary.
type ServerConfig struct {
	Mode string `yaml:"mode"` // "stdio" | "http"
	Port string `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:          "text-embedding-3-small",
			LocalDimension: 256,
		},
		Generation: GenerationConfig{
			ChatModel:       "gpt-4o-mini",
			SnippetMaxChars: 300,
		},
		Index: IndexConfig{
			Backend: BackendSQLite,
			Dir:     "data/vectors",
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "documents",
			},
			Table:               "rag_records",
			MinSimilarityLocal:  0.45,
			MinSimilarityRemote: 0.30,
		},
		Chunker: ChunkerConfig{Size: 600, Overlap: 150},
		Templates: TemplatesConfig{
			Dir:    "templates",
			Source: GitHubSource{Ref: "main"},
		},
		Server:   ServerConfig{Mode: "stdio", Port: "8080"},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty, in which case RAG_CONFIG
// is consulted; with neither set only defaults and the environment apply.
// An explicitly named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)

	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.Dimension = getEnvInt("EMBEDDING_DIMENSION", c.Embedding.Dimension)

	c.Generation.ChatModel = getEnv("CHAT_MODEL", c.Generation.ChatModel)
	c.Generation.SystemPrompt = getEnv("SYSTEM_PROMPT", c.Generation.SystemPrompt)
	c.Generation.InlineCitations = getEnvBool("INLINE_CITATIONS", c.Generation.InlineCitations)
	c.Generation.SnippetMaxChars = getEnvInt("SNIPPET_MAX_CHARS", c.Generation.SnippetMaxChars)

	c.Index.Backend = strings.ToLower(getEnv("VECTOR_BACKEND", c.Index.Backend))
	c.Index.Dir = getEnv("VECTOR_DIR", c.Index.Dir)
	c.Index.Qdrant.Host = getEnv("QDRANT_HOST", c.Index.Qdrant.Host)
	c.Index.Qdrant.Port = getEnvInt("QDRANT_PORT", c.Index.Qdrant.Port)
	c.Index.Qdrant.APIKey = getEnv("QDRANT_API_KEY", c.Index.Qdrant.APIKey)
	c.Index.Qdrant.Collection = getEnv("QDRANT_COLLECTION", c.Index.Qdrant.Collection)
	c.Index.DatabaseURL = getEnv("DATABASE_URL", c.Index.DatabaseURL)
	c.Index.MinSimilarityLocal = getEnvFloat("MIN_SIMILARITY_LOCAL", c.Index.MinSimilarityLocal)
	c.Index.MinSimilarityRemote = getEnvFloat("MIN_SIMILARITY_REMOTE", c.Index.MinSimilarityRemote)

	c.Chunker.Size = getEnvInt("CHUNK_SIZE", c.Chunker.Size)
	c.Chunker.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunker.Overlap)

	c.Templates.Dir = getEnv("TEMPLATES_DIR", c.Templates.Dir)
	c.Templates.AutoIngest = getEnvBool("AUTO_INGEST_TEMPLATES", c.Templates.AutoIngest)
	c.Templates.Source.Token = getEnv("GITHUB_TOKEN", c.Templates.Source.Token)

	c.Server.Mode = strings.ToLower(getEnv("SERVER_MODE", c.Server.Mode))
	c.Server.Port = getEnv("PORT", c.Server.Port)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case BackendSQLite, BackendQdrant:
	case BackendPgvector:
		if c.Index.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown vector backend %q", c.Index.Backend)
	}
	if c.Chunker.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunker.Size)
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Chunker.Size, c.Chunker.Overlap)
	}
	for name, v := range map[string]float64{
		"MIN_SIMILARITY_LOCAL":  c.Index.MinSimilarityLocal,
		"MIN_SIMILARITY_REMOTE": c.Index.MinSimilarityRemote,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %g", name, v)
		}
	}
	switch c.Server.Mode {
	case "stdio", "http":
	case "true":
		// Legacy boolean form.
		c.Server.Mode = "http"
	case "false", "":
		c.Server.Mode = "stdio"
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
