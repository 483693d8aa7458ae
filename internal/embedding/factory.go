package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/config"
)

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache.
// The openai provider authenticates with the LLM credentials.
func New(cfg config.EmbeddingConfig, llm config.LLMConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var inner Embedder
	switch cfg.Provider {
	case "onnx":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create ONNX embedder: %w", err)
		}
		inner = e
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     llm.APIKey,
			BaseURL:    llm.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedder: %w", err)
		}
		inner = e
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
