// Package gemini implements domain.Completer on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

const provider = "gemini"

// Config holds the Gemini settings.
type Config struct {
	APIKey          string
	BaseURL         string // empty = public Gemini API endpoint
	Model           string
	Temperature     float32
	MaxOutputTokens int
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Completer asks Gemini for JSON output.
type Completer struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *zap.Logger
}

// NewCompleter creates a Gemini completer.
func NewCompleter(ctx context.Context, cfg *Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", domain.ErrModelAuth)
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxOutputTokens), //nolint:gosec // bounded by config
		logger:      logger,
	}, nil
}

// Provider returns the provider label used in metrics.
func (c *Completer) Provider() string { return provider }

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Complete implements domain.Completer. The schema is carried by the prompt;
// the response MIME type forces syntactically valid JSON.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temperature),
		ResponseMIMEType: "application/json",
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	start := time.Now()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(provider, c.model, "api_error").Inc()
		return domain.CompletionResult{}, parseAPIError(err)
	}

	text := resp.Text()
	if text == "" {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(provider, c.model, "empty_response").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty gemini response: %w", domain.ErrModelProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())

	var usage domain.TokenUsage
	if um := resp.UsageMetadata; um != nil {
		usage = domain.TokenUsage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
		metrics.LLMTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(usage.CompletionTokens))
	}

	model := resp.ModelVersion
	if model == "" {
		model = c.model
	}
	c.logger.Debug("Gemini completion done",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", usage.TotalTokens),
	)
	return domain.CompletionResult{Content: text, Model: model, Usage: usage}, nil
}

// HealthCheck fetches the model metadata.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("get model %s: %w", c.model, err)
	}
	return nil
}

// parseAPIError maps Gemini API errors onto domain sentinels.
func parseAPIError(err error) error {
	code, msg, ok := apiErrorDetails(err)
	if !ok {
		return fmt.Errorf("gemini request failed: %w: %w", domain.ErrModelProvider, err)
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("gemini API error %d: %s: %w: %w", code, msg, domain.ErrModelProvider, domain.ErrModelAuth)
	case http.StatusBadRequest:
		// Gemini answers 400 API_KEY_INVALID for bad keys
		if containsFold(msg, "api key") {
			return fmt.Errorf("gemini API error %d: %s: %w: %w", code, msg, domain.ErrModelProvider, domain.ErrModelAuth)
		}
	case http.StatusTooManyRequests:
		if containsFold(msg, "quota") {
			return fmt.Errorf("gemini API error %d: %s: %w: %w", code, msg, domain.ErrModelProvider, domain.ErrModelQuota)
		}
	}
	return fmt.Errorf("gemini API error %d: %s: %w", code, msg, domain.ErrModelProvider)
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
