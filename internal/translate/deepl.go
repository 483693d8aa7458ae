// Package translate translates Korean queries to English through the DeepL API.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/nursesim/internal/config"
	"github.com/hyperjump/nursesim/internal/metrics"
)

// Translator translates text. Implementations fail open: on any error the
// input is returned unchanged.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) string
	ToEnglish(ctx context.Context, text string) string
}

// DeepL is a Translator backed by the DeepL /v2/translate endpoint.
type DeepL struct {
	endpoint   string
	authKey    string
	sourceLang string
	targetLang string
	enabled    bool
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures DeepL.
type Option func(*DeepL)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *DeepL) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *DeepL) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// NewDeepL creates a DeepL translator from cfg.
func NewDeepL(cfg config.TranslationConfig, opts ...Option) *DeepL {
	d := &DeepL{
		endpoint:   cfg.Endpoint,
		authKey:    cfg.AuthKey,
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
		enabled:    cfg.EnabledOrDefault(),
		timeout:    cfg.Timeout,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate returns text translated from source to target. A disabled
// translator, a non-200 status, a transport error or a malformed payload
// all return text unchanged.
func (d *DeepL) Translate(ctx context.Context, text, source, target string) string {
	if !d.enabled || strings.TrimSpace(text) == "" {
		return text
	}
	out, reason, err := d.translate(ctx, text, source, target)
	if err != nil {
		metrics.TranslationFallbacksTotal.WithLabelValues(reason).Inc()
		d.logger.Warn("translation failed, using original text",
			zap.String("reason", reason),
			zap.Error(err))
		return text
	}
	return out
}

func (d *DeepL) translate(ctx context.Context, text, source, target string) (string, string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	form := url.Values{}
	form.Set("auth_key", d.authKey)
	form.Set("text", text)
	form.Set("source_lang", source)
	form.Set("target_lang", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "request", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, err)
		return "", "transport", fmt.Errorf("post %s: %w", d.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, err)
		return "", "transport", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, err)
		return "", "status", err
	}

	var parsed deeplResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, err)
		return "", "payload", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Translations) == 0 {
		err = fmt.Errorf("response has no translations")
		metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, err)
		return "", "payload", err
	}
	metrics.ObserveUpstream(metrics.ServiceTranslation, "deepl", start, nil)
	return parsed.Translations[0].Text, "", nil
}

// ToEnglish translates text with the configured languages when it contains Hangul.
func (d *DeepL) ToEnglish(ctx context.Context, text string) string {
	if !ContainsHangul(text) {
		return text
	}
	return d.Translate(ctx, text, d.sourceLang, d.targetLang)
}

// ContainsHangul reports whether s contains a precomposed Hangul syllable.
func ContainsHangul(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}
