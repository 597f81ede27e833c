package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/version"
)

// Config holds the painradar configuration.
type Config struct {
	HTTP        HTTPConfig                 `yaml:"http"`
	Database    DatabaseConfig             `yaml:"database"`
	Logging     LoggingConfig              `yaml:"logging"`
	Run         RunConfig                  `yaml:"run"`
	Retry       RetryConfig                `yaml:"retry"`
	Aggregation AggregationConfig          `yaml:"aggregation"`
	Extraction  ExtractionConfig           `yaml:"extraction"`
	Budget      BudgetConfig               `yaml:"budget"`
	Cache       CacheConfig                `yaml:"cache"`
	RateLimit   map[string]RateLimitConfig `yaml:"rate_limit"`
	Sources     SourcesConfig              `yaml:"sources"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the KV store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	Standalone       bool     `yaml:"standalone"` // single node, no cluster discovery
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RunConfig bounds a single pipeline run.
type RunConfig struct {
	SourceTimeoutSec int `yaml:"source_timeout_sec"`
	TotalTimeoutSec  int `yaml:"total_timeout_sec"` // soft deadline for the fetch stage
	EventBuffer      int `yaml:"event_buffer"`
	MaxQueryWords    int `yaml:"max_query_words"`
}

// RetryConfig is the backoff policy shared by all adapters.
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelayMS int     `yaml:"base_delay_ms"`
	MaxDelayMS  int     `yaml:"max_delay_ms"`
	Multiplier  float64 `yaml:"multiplier"`
	Jitter      float64 `yaml:"jitter"`
}

// AggregationConfig holds dedupe and ranking settings.
type AggregationConfig struct {
	MaxCorpusSize       int      `yaml:"max_corpus_size"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	SourcePriority      []string `yaml:"source_priority"`
}

// ExtractionConfig holds language model settings.
type ExtractionConfig struct {
	Provider        string  `yaml:"provider"` // openai, gemini
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutSec      int     `yaml:"timeout_sec"`
	MaxPromptChars  int     `yaml:"max_prompt_chars"`
	MaxRecordChars  int     `yaml:"max_record_chars"`
	MaxFindings     int     `yaml:"max_findings"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CacheConfig holds fetch cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"`
}

// RateLimitConfig is a fixed window per provider.
type RateLimitConfig struct {
	Requests  int `yaml:"requests"`
	WindowSec int `yaml:"window_sec"`
}

// SourceConfig holds settings common to every adapter.
type SourceConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Limit          int    `yaml:"limit"`
	PerScopeLimit  int    `yaml:"per_scope_limit"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	TimeFilter     string `yaml:"time_filter"`
	Language       string `yaml:"language"`
	BaseURL        string `yaml:"base_url"`
}

// RedditConfig holds Reddit app credentials and subreddits.
type RedditConfig struct {
	SourceConfig `yaml:",inline"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	UserAgent    string   `yaml:"user_agent"`
	AuthURL      string   `yaml:"auth_url"`
	Subreddits   []string `yaml:"subreddits"`
}

// GoogleConfig holds Custom Search credentials.
type GoogleConfig struct {
	SourceConfig `yaml:",inline"`
	APIKey       string `yaml:"api_key"`
	CX           string `yaml:"cx"`
}

// TwitterConfig holds the v2 API bearer token.
type TwitterConfig struct {
	SourceConfig `yaml:",inline"`
	BearerToken  string `yaml:"bearer_token"`
}

// DuckDuckGoConfig holds keyless web search settings.
type DuckDuckGoConfig struct {
	SourceConfig `yaml:",inline"`
	UserAgent    string `yaml:"user_agent"`
}

// HackerNewsConfig holds hnrss.org settings.
type HackerNewsConfig struct {
	SourceConfig `yaml:",inline"`
	MinPoints    int `yaml:"min_points"`
}

// SourcesConfig lists every adapter.
type SourcesConfig struct {
	Reddit     RedditConfig     `yaml:"reddit"`
	Google     GoogleConfig     `yaml:"google"`
	Twitter    TwitterConfig    `yaml:"twitter"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
}

// Common returns the shared settings of a source by name.
func (s *SourcesConfig) Common(src domain.Source) *SourceConfig {
	switch src {
	case domain.SourceReddit:
		return &s.Reddit.SourceConfig
	case domain.SourceGoogle:
		return &s.Google.SourceConfig
	case domain.SourceTwitter:
		return &s.Twitter.SourceConfig
	case domain.SourceDuckDuckGo:
		return &s.DuckDuckGo.SourceConfig
	case domain.SourceHackerNews:
		return &s.HackerNews.SourceConfig
	}
	return nil
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 150 // синхронный run может длиться до total_timeout + LLM
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	c.applyRunDefaults()
	c.applyExtractionDefaults()
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 900
	}
	c.applySourceDefaults()
}

func (c *Config) applyRunDefaults() {
	if c.Run.SourceTimeoutSec <= 0 {
		c.Run.SourceTimeoutSec = 30
	}
	if c.Run.TotalTimeoutSec <= 0 {
		c.Run.TotalTimeoutSec = 60
	}
	if c.Run.EventBuffer <= 0 {
		c.Run.EventBuffer = 64
	}
	if c.Run.MaxQueryWords <= 0 {
		c.Run.MaxQueryWords = domain.MaxQueryWords
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 4
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = 1000
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = 30000
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
	if c.Aggregation.MaxCorpusSize <= 0 {
		c.Aggregation.MaxCorpusSize = 60
	}
	if c.Aggregation.SimilarityThreshold == 0 {
		c.Aggregation.SimilarityThreshold = 0.6
	}
	if len(c.Aggregation.SourcePriority) == 0 {
		for _, s := range domain.KnownSources() {
			c.Aggregation.SourcePriority = append(c.Aggregation.SourcePriority, string(s))
		}
	}
}

func (c *Config) applyExtractionDefaults() {
	e := &c.Extraction
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		switch e.Provider {
		case "gemini":
			e.Model = "gemini-2.5-flash"
		default:
			e.Model = "gpt-4o-mini"
		}
	}
	if e.MaxOutputTokens <= 0 {
		e.MaxOutputTokens = 4096
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 90
	}
	if e.MaxPromptChars <= 0 {
		e.MaxPromptChars = 60000
	}
	if e.MaxRecordChars <= 0 {
		e.MaxRecordChars = 1500
	}
	if e.MaxFindings <= 0 {
		e.MaxFindings = 10
	}
}

func (c *Config) applySourceDefaults() {
	type def struct {
		limit, perScope, concurrency int
	}
	defaults := map[domain.Source]def{
		domain.SourceReddit:     {limit: 10, perScope: 5, concurrency: 3},
		domain.SourceGoogle:     {limit: 10, perScope: 10, concurrency: 1},
		domain.SourceTwitter:    {limit: 20, perScope: 20, concurrency: 1},
		domain.SourceDuckDuckGo: {limit: 10, perScope: 10, concurrency: 1},
		domain.SourceHackerNews: {limit: 20, perScope: 20, concurrency: 1},
	}
	for _, src := range domain.KnownSources() {
		sc := c.Sources.Common(src)
		d := defaults[src]
		if sc.Limit <= 0 {
			sc.Limit = d.limit
		}
		if sc.PerScopeLimit <= 0 {
			sc.PerScopeLimit = d.perScope
		}
		if sc.MaxConcurrency <= 0 {
			sc.MaxConcurrency = d.concurrency
		}
		if sc.TimeFilter == "" {
			sc.TimeFilter = string(domain.TimeWeek)
		}
	}
	if c.Sources.Reddit.UserAgent == "" {
		c.Sources.Reddit.UserAgent = version.UserAgent()
	}
	if len(c.Sources.Reddit.Subreddits) == 0 {
		c.Sources.Reddit.Subreddits = []string{
			"smallbusiness", "Entrepreneur", "startups", "CustomerService", "BusinessTips", "SaaS",
		}
	}
	if c.Sources.Twitter.Language == "" {
		c.Sources.Twitter.Language = "en"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be \"memory\" or \"redis\", got %q", c.Database.Driver)
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if t := c.Aggregation.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("aggregation.similarity_threshold must be in (0,1], got %v", t)
	}
	for _, name := range c.Aggregation.SourcePriority {
		if _, err := domain.ParseSource(name); err != nil {
			return fmt.Errorf("aggregation.source_priority: %w", err)
		}
	}
	switch c.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("budget.action must be \"warn\" or \"reject\", got %q", c.Budget.Action)
	}
	switch c.Extraction.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("extraction.provider must be \"openai\" or \"gemini\", got %q", c.Extraction.Provider)
	}
	for name, rl := range c.RateLimit {
		if _, err := domain.ParseSource(name); err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
		if rl.Requests <= 0 || rl.WindowSec <= 0 {
			return fmt.Errorf("rate_limit.%s: requests and window_sec must be positive", name)
		}
	}
	for _, src := range domain.KnownSources() {
		sc := c.Sources.Common(src)
		if _, err := domain.ParseTimeFilter(sc.TimeFilter); err != nil {
			return fmt.Errorf("sources.%s.time_filter: %w", src, err)
		}
	}
	return nil
}

func (c *Config) validateRetry() error {
	r := c.Retry
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", r.MaxAttempts)
	}
	if r.MaxDelayMS < r.BaseDelayMS {
		return fmt.Errorf("retry.max_delay_ms (%d) is below base_delay_ms (%d)", r.MaxDelayMS, r.BaseDelayMS)
	}
	if r.Multiplier <= 1 {
		return fmt.Errorf("retry.multiplier must be > 1, got %v", r.Multiplier)
	}
	if r.Jitter < 0 || r.Jitter >= r.Multiplier-1 {
		return fmt.Errorf("retry.jitter must be in [0, multiplier-1), got %v", r.Jitter)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
