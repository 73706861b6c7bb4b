package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

// ErrMissingAPIKey is returned by Validate when a remote provider is selected
// and the API key environment variable is empty.
var ErrMissingAPIKey = errors.New(models.MissingAPIKeyMessage)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Index     IndexConfig     `yaml:"index"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`

	// APIKey is read from the environment variable named by LLM.APIKeyEnv,
	// never from the config file.
	APIKey string `yaml:"-"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type AnalysisConfig struct {
	FetchLimit          int      `yaml:"fetch_limit"`
	ClassificationLimit int      `yaml:"classification_limit"`
	SummaryLimit        int      `yaml:"summary_limit"`
	ComparisonLimit     int      `yaml:"comparison_limit"`
	Topics              []string `yaml:"topics"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
}

type DatabaseConfig struct {
	URL        string `yaml:"url"`
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig returns defaults overlaid with the YAML file at path (if it
// exists) and then with environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	overrideByEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  ProviderGemini,
			BaseURL:   "https://generativelanguage.googleapis.com",
			Model:     "gemini-1.5-pro-latest",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderGemini,
			BaseURL:  "https://generativelanguage.googleapis.com/v1beta/openai",
			Model:    "text-embedding-004",
		},
		RAG: RAGConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         5,
		},
		Analysis: AnalysisConfig{
			FetchLimit:          100,
			ClassificationLimit: 2000,
			SummaryLimit:        4000,
			ComparisonLimit:     2000,
			Topics:              append([]string(nil), models.DefaultTopics...),
		},
		Index: IndexConfig{Backend: BackendMemory},
		Database: DatabaseConfig{
			VectorSize: 768,
		},
		Server: ServerConfig{
			Addr:    "0.0.0.0:8080",
			GinMode: "release",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate fails when a provider that talks to a remote API has no key
func (c *Config) Validate() error {
	if c.needsAPIKey() && c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Index.Backend == BackendPostgres && c.Database.URL == "" {
		return errors.New("database url is required for the postgres index backend")
	}
	switch c.Index.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown index backend: %s", c.Index.Backend)
	}
	return nil
}

func (c *Config) needsAPIKey() bool {
	return c.LLM.Provider != ProviderOllama || c.Embedding.Provider != ProviderOllama
}

func overrideByEnv(cfg *Config) {
	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKeyEnv = getEnv("LLM_API_KEY_ENV", cfg.LLM.APIKeyEnv)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)

	cfg.RAG.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.RAG.ChunkSize)
	cfg.RAG.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.RAG.ChunkOverlap)
	cfg.RAG.TopK = getEnvAsInt("RAG_TOP_K", cfg.RAG.TopK)

	cfg.Index.Backend = getEnv("INDEX_BACKEND", cfg.Index.Backend)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)

	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if cfg.LLM.APIKeyEnv != "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv(cfg.LLM.APIKeyEnv))
	}
}

// applyDefaults fills zero values left by a partial config file
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 {
		cfg.RAG.ChunkOverlap = def.RAG.ChunkOverlap
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = def.RAG.TopK
	}
	if cfg.Analysis.FetchLimit <= 0 {
		cfg.Analysis.FetchLimit = def.Analysis.FetchLimit
	}
	if cfg.Analysis.ClassificationLimit <= 0 {
		cfg.Analysis.ClassificationLimit = def.Analysis.ClassificationLimit
	}
	if cfg.Analysis.SummaryLimit <= 0 {
		cfg.Analysis.SummaryLimit = def.Analysis.SummaryLimit
	}
	if cfg.Analysis.ComparisonLimit <= 0 {
		cfg.Analysis.ComparisonLimit = def.Analysis.ComparisonLimit
	}
	if len(cfg.Analysis.Topics) == 0 {
		cfg.Analysis.Topics = def.Analysis.Topics
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendMemory
	}
	if cfg.Database.VectorSize <= 0 {
		cfg.Database.VectorSize = def.Database.VectorSize
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
