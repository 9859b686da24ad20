package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// Config holds all configuration for the document QA service.
type Config struct {
	Chunking      ChunkingConfig  `yaml:"chunking"`
	Embedding     EmbeddingConfig `yaml:"embedding"`
	Chat          ChatConfig      `yaml:"chat"`
	Index         IndexConfig     `yaml:"index"`
	Answer        AnswerConfig    `yaml:"answer"`
	RetrieveCache CacheConfig     `yaml:"retrieve_cache"`
	Ingest        IngestConfig    `yaml:"ingest"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// ChunkingConfig holds text splitting configuration.
type ChunkingConfig struct {
	Size     int `yaml:"size"`
	Overlap  int `yaml:"overlap"`
	Lookback int `yaml:"lookback"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // "ollama" or "local"
	Model      string        `yaml:"model"`    // remote model, e.g. "nomic-embed-text"
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Dimension  int           `yaml:"dimension"` // 0 = learn from the first response
	BatchSize  int           `yaml:"batch_size"`
	CacheSize  int           `yaml:"cache_size"`
	LocalModel string        `yaml:"local_model"`
	ModelsDir  string        `yaml:"models_dir"`
	Workers    int           `yaml:"workers"`
}

// ChatConfig holds text-generation backend configuration.
type ChatConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	Temperature    float64       `yaml:"temperature"`
	NumCtx         int           `yaml:"num_ctx"`
	NumPredict     int           `yaml:"num_predict"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WarmUp         bool          `yaml:"warm_up"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Path      string `yaml:"path"` // relative paths resolve against the working directory
	CacheSize int    `yaml:"cache_size"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// AnswerConfig holds retrieval-augmented answering configuration.
type AnswerConfig struct {
	TopK            int    `yaml:"top_k"`
	ContextChars    int    `yaml:"context_chars"`
	HistoryMessages int    `yaml:"history_messages"`
	MaxTokens       int    `yaml:"max_tokens"`
	SystemPrompt    string `yaml:"system_prompt"`
}

// CacheConfig holds retrieval cache configuration.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// IngestConfig holds directory ingestion configuration.
type IngestConfig struct {
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
	Concurrency int      `yaml:"concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:     1000,
			Overlap:  200,
			Lookback: 100,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOllama,
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Timeout:    60 * time.Second,
			BatchSize:  32,
			CacheSize:  256,
			LocalModel: "sentence-transformers/all-MiniLM-L6-v2",
			Workers:    1,
		},
		Chat: ChatConfig{
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:8b",
			Temperature:    0.3,
			NumCtx:         2048,
			NumPredict:     800,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    60 * time.Second,
			WarmUp:         true,
		},
		Index: IndexConfig{
			Path:      filepath.Join(".docqa", "index.db"),
			CacheSize: 64,
		},
		Answer: AnswerConfig{
			TopK:            2,
			ContextChars:    300,
			HistoryMessages: 2,
			MaxTokens:       200,
			SystemPrompt:    "Answer using ONLY the context. Be brief.",
		},
		RetrieveCache: CacheConfig{
			Size: 128,
			TTL:  5 * time.Minute,
		},
		Ingest: IngestConfig{
			Includes:    []string{"**/*.txt", "**/*.md"},
			Excludes:    []string{"**/.git/**", "**/.docqa/**", "**/node_modules/**"},
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads .env and then configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Existing process variables win over .env
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docqa", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return Load(filepath.Join(dir, "docqa.yaml"))
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OLLAMA_BASE_URL", &c.Chat.BaseURL)
	str("OLLAMA_BASE_URL", &c.Embedding.BaseURL)
	str("OLLAMA_CHAT_MODEL", &c.Chat.Model)
	str("OLLAMA_EMBEDDING_MODEL", &c.Embedding.Model)
	str("EMBEDDINGS_PROVIDER", &c.Embedding.Provider)
	str("LOCAL_EMBEDDING_MODEL", &c.Embedding.LocalModel)
	str("DOCQA_INDEX_PATH", &c.Index.Path)
	str("DOCQA_LOG_LEVEL", &c.Logging.Level)

	if v, ok := lookup("OLLAMA_TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid OLLAMA_TEMPERATURE %q: %w", v, err)
		}
		c.Chat.Temperature = f
	}
	if v, ok := lookup("OLLAMA_NUM_PREDICT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OLLAMA_NUM_PREDICT %q: %w", v, err)
		}
		c.Chat.NumPredict = n
	}
	if v, ok := lookup("OLLAMA_TIMEOUT"); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid OLLAMA_TIMEOUT %q: %w", v, err)
		}
		c.Chat.ReadTimeout = time.Duration(secs) * time.Second
	}

	c.Embedding.Provider = NormalizeProvider(c.Embedding.Provider)
	return nil
}

// NormalizeProvider lowercases a provider name and resolves aliases.
func NormalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "sentence_transformers" {
		return ProviderLocal
	}
	return p
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap))
	}
	switch NormalizeProvider(c.Embedding.Provider) {
	case ProviderOllama, ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider))
	}
	if c.Answer.TopK <= 0 {
		errs = append(errs, fmt.Errorf("answer.top_k must be positive, got %d", c.Answer.TopK))
	}
	if c.Chat.ReadTimeout <= 0 || c.Chat.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("chat timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the index database path for dir.
func (c *Config) IndexDBPath(dir string) string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	return filepath.Join(dir, c.Index.Path)
}

// EnsureIndexDir ensures the directory holding the index database exists.
func EnsureIndexDir(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), 0755)
}
