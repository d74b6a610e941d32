package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig points at an OpenAI-compatible endpoint. The API key is read
// from the environment variable named by KeyEnv, never from the file.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	KeyEnv      string  `yaml:"key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	Key         string  `yaml:"-"`
}

// RAGConfig controls chunking, retrieval and session bounds.
type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	MaxResults   int    `yaml:"max_results"`
	MaxHistory   int    `yaml:"max_history"`
	DocsDir      string `yaml:"docs_dir"`
	DBPath       string `yaml:"db_path"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	LLM      LLMConfig    `yaml:"llm"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	RAG      RAGConfig    `yaml:"rag"`
}

// LoadConfig reads the YAML config, fills defaults, resolves API keys from
// the environment and validates the result. A validation failure is fatal
// for startup by contract.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	cfg.LLM.Key = os.Getenv(cfg.LLM.KeyEnv)
	cfg.EmbedLLM.Key = os.Getenv(cfg.EmbedLLM.KeyEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8000"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.KeyEnv == "" {
		cfg.LLM.KeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 800
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.EmbedLLM.KeyEnv == "" {
		cfg.EmbedLLM.KeyEnv = cfg.LLM.KeyEnv
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "text-embedding-3-small"
	}
	if cfg.EmbedLLM.TimeoutSecs == 0 {
		cfg.EmbedLLM.TimeoutSecs = 30
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 800
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 100
	}
	if cfg.RAG.MaxResults == 0 {
		cfg.RAG.MaxResults = 5
	}
	if cfg.RAG.MaxHistory == 0 {
		cfg.RAG.MaxHistory = 2
	}
	if cfg.RAG.DocsDir == "" {
		cfg.RAG.DocsDir = "./docs"
	}
	if cfg.RAG.DBPath == "" {
		cfg.RAG.DBPath = "./chromemdb"
	}
}

// Validate enforces the startup configuration contract.
func (cfg *Config) Validate() error {
	if cfg.RAG.MaxResults <= 0 {
		return fmt.Errorf("configuration error: max_results must be positive, got %d", cfg.RAG.MaxResults)
	}
	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("configuration error: chunk_size must be positive, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("configuration error: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			cfg.RAG.ChunkOverlap, cfg.RAG.ChunkSize)
	}
	if cfg.RAG.MaxHistory <= 0 {
		return fmt.Errorf("configuration error: max_history must be positive, got %d", cfg.RAG.MaxHistory)
	}
	if cfg.LLM.Key == "" {
		return fmt.Errorf("configuration error: %s is required", cfg.LLM.KeyEnv)
	}
	return nil
}
