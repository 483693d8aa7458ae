// Package llm generates text through an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/metrics"
	"github.com/hyperjump/nursesim/internal/models"
)

// Request is one generation call: a system role and a user prompt.
// An empty Model uses the client default.
type Request struct {
	SystemRole string
	UserPrompt string
	Model      string
}

// Response holds the generated text and token usage.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Client calls the chat completions endpoint. Calls are rate limited and never retried.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLimiter replaces the limiter derived from config. nil disables limiting.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewClient creates a client from cfg.
func NewClient(cfg config.LLMConfig, opts ...Option) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	c := &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  zap.NewNop(),
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends req and returns the first choice. Transport, quota and empty
// responses wrap models.ErrUpstreamService.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.UserPrompt == "" {
		return nil, models.InvalidInputf("prompt is required")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %v: %w", err, models.ErrUpstreamService)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemRole != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemRole})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		err = parseAPIError(err)
		metrics.ObserveUpstream(metrics.ServiceLLM, model, start, err)
		c.logger.Warn("chat completion failed", zap.String("model", model), zap.Error(err))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err = fmt.Errorf("chat completion returned no choices: %w", models.ErrUpstreamService)
		metrics.ObserveUpstream(metrics.ServiceLLM, model, start, err)
		return nil, err
	}
	metrics.ObserveUpstream(metrics.ServiceLLM, model, start, nil)
	metrics.UpstreamTokensTotal.WithLabelValues(metrics.ServiceLLM, model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.UpstreamTokensTotal.WithLabelValues(metrics.ServiceLLM, model, "completion").Add(float64(resp.Usage.CompletionTokens))

	c.logger.Debug("chat completion",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)))

	return &Response{
		Text:             resp.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func parseAPIError(err error) error {
	wrap := models.ErrUpstreamService

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}
	return fmt.Errorf("chat request failed: %v: %w", err, wrap)
}
