package painradar

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type redditCreds struct {
	clientID     string
	clientSecret string
	subreddits   []string
}

type googleCreds struct {
	apiKey string
	cx     string
}

type llmConfig struct {
	provider string // "openai" or "gemini"
	apiKey   string
	model    string
	baseURL  string
}

type clientConfig struct {
	redisAddr     string
	redisPassword string

	reddit     *redditCreds
	google     *googleCreds
	twitter    string
	duckduckgo bool
	hackernews bool
	minPoints  int

	llm       *llmConfig
	completer Completer

	sourceTimeout time.Duration
	totalTimeout  time.Duration
	cacheTTL      time.Duration

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithReddit enables the Reddit source with app-only OAuth credentials.
// Empty subreddits keep the default business-oriented list.
func WithReddit(clientID, clientSecret string, subreddits ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.reddit = &redditCreds{clientID: clientID, clientSecret: clientSecret, subreddits: subreddits}
	})
}

// WithGoogle enables Google Custom Search.
func WithGoogle(apiKey, cx string) Option {
	return optionFunc(func(c *clientConfig) {
		c.google = &googleCreds{apiKey: apiKey, cx: cx}
	})
}

// WithTwitter enables recent search on the X/Twitter v2 API.
func WithTwitter(bearerToken string) Option {
	return optionFunc(func(c *clientConfig) {
		c.twitter = bearerToken
	})
}

// WithDuckDuckGo enables the keyless DuckDuckGo web search.
func WithDuckDuckGo() Option {
	return optionFunc(func(c *clientConfig) {
		c.duckduckgo = true
	})
}

// WithHackerNews enables the hnrss.org feed. minPoints of 0 disables the filter.
func WithHackerNews(minPoints int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hackernews = true
		c.minPoints = minPoints
	})
}

// WithOpenAI uses an OpenAI-compatible chat completion API for extraction.
// Empty model keeps the default.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llm = &llmConfig{provider: "openai", apiKey: apiKey, model: model}
	})
}

// WithOpenAIBaseURL points the OpenAI provider at a compatible endpoint (Nebius, vLLM, LiteLLM).
func WithOpenAIBaseURL(apiKey, model, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llm = &llmConfig{provider: "openai", apiKey: apiKey, model: model, baseURL: baseURL}
	})
}

// WithGemini uses Google Gemini for extraction.
func WithGemini(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llm = &llmConfig{provider: "gemini", apiKey: apiKey, model: model}
	})
}

// WithCompleter plugs in a custom language model. It takes precedence over
// WithOpenAI and WithGemini.
func WithCompleter(cmp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cmp
	})
}

// WithRedis keeps fetch cache, rate-limit windows and token budgets in Redis.
// The default is an in-process store.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddr = addr
		c.redisPassword = password
	})
}

// WithTimeouts overrides the per-source timeout and the fetch stage deadline.
// Zero keeps the default.
func WithTimeouts(perSource, total time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sourceTimeout = perSource
		c.totalTimeout = total
	})
}

// WithCache enables the fetch cache with the given TTL.
func WithCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger routes pipeline logs (source retries, rate limits, LLM
// calls, budget warnings) to l. Without it the pipeline is silent and only
// SDK operations are logged through WithLogger.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
