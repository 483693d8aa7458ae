// Package config provides configuration loading and structs for the nursesim server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override empty secrets in the config file.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvDeepLKey  = "DEEPL_AUTH_KEY"
	EnvDSN       = "NURSESIM_DSN"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Translation TranslationConfig `yaml:"translation"`
	Search      SearchConfig      `yaml:"search"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds relational store settings.
type StorageConfig struct {
	Driver         string        `yaml:"driver"` // "sqlite3" or "mysql"
	DatabasePath   string        `yaml:"database_path"`
	DSN            string        `yaml:"dsn"` // used by the mysql driver
	MaxOpenConns   int           `yaml:"max_open_conns"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider        string        `yaml:"provider"` // "onnx", "openai", or "mock"
	ModelPath       string        `yaml:"model_path"`
	Model           string        `yaml:"model"` // remote model name for the openai provider
	Dimensions      int           `yaml:"dimensions"`
	MaxTokens       int           `yaml:"max_tokens"`
	UseQuantization bool          `yaml:"use_quantization"`
	CacheSize       int           `yaml:"cache_size"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LLMConfig holds text generation settings.
type LLMConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxPromptTokens   int           `yaml:"max_prompt_tokens"`
	TokenEncoding     string        `yaml:"token_encoding"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
}

// TranslationConfig holds DeepL settings.
type TranslationConfig struct {
	Enabled    *bool         `yaml:"enabled"`
	AuthKey    string        `yaml:"auth_key"`
	Endpoint   string        `yaml:"endpoint"`
	SourceLang string        `yaml:"source_lang"`
	TargetLang string        `yaml:"target_lang"`
	Timeout    time.Duration `yaml:"timeout"`
}

// EnabledOrDefault returns whether translation is on; defaults to true when unset.
func (t *TranslationConfig) EnabledOrDefault() bool {
	if t.Enabled != nil {
		return *t.Enabled
	}
	return true
}

// SearchConfig holds ranking and summarization settings.
type SearchConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	KeywordTopN         int      `yaml:"keyword_top_n"`
	Candidates          string   `yaml:"candidates"` // "all" or "keyword"
	SummaryMaxLength    int      `yaml:"summary_max_length"`
	BackgroundMaxChars  int      `yaml:"background_max_chars"`
}

// Threshold returns the similarity threshold; defaults to 0.9 when unset.
func (s *SearchConfig) Threshold() float64 {
	if s.SimilarityThreshold != nil {
		return *s.SimilarityThreshold
	}
	return DefaultSimilarityThreshold
}

// IngestConfig holds batch ingestion and directory watch settings.
type IngestConfig struct {
	WatchDirectories []string      `yaml:"watch_directories"`
	Extensions       []string      `yaml:"extensions"`
	Recursive        *bool         `yaml:"recursive"`
	Debounce         time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *IngestConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Ingest.WatchDirectories {
		cfg.Ingest.WatchDirectories[i] = expandPath(cfg.Ingest.WatchDirectories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv fills empty secrets from the environment.
func ApplyEnv(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(EnvOpenAIKey)
	}
	if cfg.Translation.AuthKey == "" {
		cfg.Translation.AuthKey = os.Getenv(EnvDeepLKey)
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = os.Getenv(EnvDSN)
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverMySQL && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the mysql driver")
	}
	switch c.Embedding.Provider {
	case "onnx", "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Search.Candidates {
	case "all", "keyword":
	default:
		return fmt.Errorf("unknown search candidates %q", c.Search.Candidates)
	}
	if th := c.Search.Threshold(); th < -1 || th > 1 {
		return fmt.Errorf("search.similarity_threshold must be within [-1, 1], got %v", th)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
