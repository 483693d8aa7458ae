package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/metrics"
	"github.com/hyperjump/nursesim/internal/models"
)

// OpenAIConfig holds settings for the remote embedding provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// OpenAIEmbedder embeds text through an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates a remote embedder. Dimensions must be positive.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

// Embed requests one embedding. Failures wrap models.ErrUpstreamService.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		err = parseAPIError(err)
		metrics.ObserveUpstream(metrics.ServiceEmbedding, string(e.model), start, err)
		e.logger.Warn("embedding request failed", zap.String("model", string(e.model)), zap.Error(err))
		return nil, err
	}
	if len(resp.Data) == 0 {
		err = fmt.Errorf("empty embedding response: %w", models.ErrUpstreamService)
		metrics.ObserveUpstream(metrics.ServiceEmbedding, string(e.model), start, err)
		return nil, err
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.dimensions {
		err = fmt.Errorf("embedding has %d dimensions, expected %d: %w", len(vec), e.dimensions, models.ErrUpstreamService)
		metrics.ObserveUpstream(metrics.ServiceEmbedding, string(e.model), start, err)
		return nil, err
	}

	metrics.ObserveUpstream(metrics.ServiceEmbedding, string(e.model), start, nil)
	if resp.Usage.TotalTokens > 0 {
		metrics.UpstreamTokensTotal.WithLabelValues(metrics.ServiceEmbedding, string(e.model), "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.UpstreamTokensTotal.WithLabelValues(metrics.ServiceEmbedding, string(e.model), "total").Add(float64(resp.Usage.TotalTokens))
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// parseAPIError extracts a readable message from the API response and wraps
// models.ErrUpstreamService.
func parseAPIError(err error) error {
	wrap := models.ErrUpstreamService

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}

func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
