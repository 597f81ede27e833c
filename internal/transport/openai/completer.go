package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

const provider = "openai"

// Completer is a structured-output language model using the OpenAI-compatible chat API.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	logger      *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey          string
	BaseURL         string // empty = api.openai.com
	Model           string
	Temperature     float32
	MaxOutputTokens int
	User            string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completer.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Completer{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		user:        cfg.User,
		logger:      logger,
	}
}

// Provider returns the provider label used in metrics.
func (c *Completer) Provider() string { return provider }

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Complete implements domain.Completer with a json_schema response format.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		User:        c.user,
	}
	if len(req.Schema) > 0 {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				// strict mode rejects optional fields; validation happens on our side
				Strict: false,
			},
		}
	} else {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(provider, c.model, "api_error").Inc()
		return domain.CompletionResult{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(provider, c.model, "empty_response").Inc()
		return domain.CompletionResult{}, fmt.Errorf("empty chat completion response: %w", domain.ErrModelProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn("Chat completion truncated by max tokens",
			zap.String("model", c.model),
			zap.Int("max_tokens", c.maxTokens),
		)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return domain.CompletionResult{
		Content: choice.Message.Content,
		Model:   model,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrModelProvider; auth and quota failures
// additionally carry ErrModelAuth / ErrModelQuota.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, classify(apiErr.HTTPStatusCode, apiErr.Code))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, detail, classify(reqErr.HTTPStatusCode, nil))
	}

	// transport failures keep their cause so deadlines stay recognizable
	return fmt.Errorf("chat request failed: %w: %w", domain.ErrModelProvider, err)
}

func classify(status int, code any) error {
	if s, ok := code.(string); ok && s == "insufficient_quota" {
		return fmt.Errorf("%w: %w", domain.ErrModelProvider, domain.ErrModelQuota)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrModelProvider, domain.ErrModelAuth)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %w", domain.ErrModelProvider, domain.ErrModelQuota)
	}
	return domain.ErrModelProvider
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
