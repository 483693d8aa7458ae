package config

import "time"

// Storage drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// DefaultSimilarityThreshold is the cosine similarity a record needs to join the similarity set.
const DefaultSimilarityThreshold = 0.9

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 3 * time.Minute
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/nursesim/data/db/nursesim.db"
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = 10
	}
	if cfg.Storage.QueryTimeout == 0 {
		cfg.Storage.QueryTimeout = 5 * time.Second
	}
	if cfg.Storage.RetryAttempts == 0 {
		cfg.Storage.RetryAttempts = 3
	}
	if cfg.Storage.RetryBaseDelay == 0 {
		cfg.Storage.RetryBaseDelay = 200 * time.Millisecond
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/nursesim/data/models/paraphrase-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-3.5-turbo"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 2 * time.Minute
	}
	if cfg.LLM.MaxPromptTokens == 0 {
		cfg.LLM.MaxPromptTokens = 16000
	}
	if cfg.LLM.TokenEncoding == "" {
		cfg.LLM.TokenEncoding = "cl100k_base"
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 60
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 5
	}

	if cfg.Translation.Endpoint == "" {
		cfg.Translation.Endpoint = "https://api-free.deepl.com/v2/translate"
	}
	if cfg.Translation.SourceLang == "" {
		cfg.Translation.SourceLang = "KO"
	}
	if cfg.Translation.TargetLang == "" {
		cfg.Translation.TargetLang = "EN"
	}
	if cfg.Translation.Timeout == 0 {
		cfg.Translation.Timeout = 10 * time.Second
	}

	if cfg.Search.KeywordTopN == 0 {
		cfg.Search.KeywordTopN = 9
	}
	if cfg.Search.Candidates == "" {
		cfg.Search.Candidates = "all"
	}
	if cfg.Search.SummaryMaxLength == 0 {
		cfg.Search.SummaryMaxLength = 500
	}
	if cfg.Search.BackgroundMaxChars == 0 {
		cfg.Search.BackgroundMaxChars = 1000
	}

	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".json", ".jsonl", ".xlsx", ".ods", ".pdf", ".docx", ".pptx", ".odp", ".txt", ".md"}
	}
	if cfg.Ingest.Debounce == 0 {
		cfg.Ingest.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Ingest.WatchDirectories) > 0 && cfg.Ingest.Recursive == nil {
		t := true
		cfg.Ingest.Recursive = &t
	}
}
