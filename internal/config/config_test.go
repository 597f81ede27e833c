package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.Action = "invalid_action"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"redis without addrs", func(c *Config) { c.Database.Driver = "redis" }, "database.addrs"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "valkey" }, "database.driver"},
		{"multiplier", func(c *Config) { c.Retry.Multiplier = 1 }, "retry.multiplier"},
		{"jitter", func(c *Config) { c.Retry.Multiplier = 1.5; c.Retry.Jitter = 0.5 }, "retry.jitter"},
		{"max delay", func(c *Config) { c.Retry.MaxDelayMS = 10 }, "retry.max_delay_ms"},
		{"threshold", func(c *Config) { c.Aggregation.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"priority", func(c *Config) { c.Aggregation.SourcePriority = []string{"myspace"} }, "source_priority"},
		{"provider", func(c *Config) { c.Extraction.Provider = "claude" }, "extraction.provider"},
		{"rate limit source", func(c *Config) {
			c.RateLimit = map[string]RateLimitConfig{"digg": {Requests: 1, WindowSec: 1}}
		}, "rate_limit"},
		{"rate limit window", func(c *Config) {
			c.RateLimit = map[string]RateLimitConfig{"reddit": {Requests: 1}}
		}, "rate_limit.reddit"},
		{"time filter", func(c *Config) { c.Sources.Google.TimeFilter = "decade" }, "sources.google.time_filter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Database.Driver)
	}
	if cfg.Run.MaxQueryWords != 50 {
		t.Errorf("expected MaxQueryWords=50, got %d", cfg.Run.MaxQueryWords)
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.Retry.Multiplier != 2 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Aggregation.SimilarityThreshold != 0.6 {
		t.Errorf("expected threshold 0.6, got %v", cfg.Aggregation.SimilarityThreshold)
	}
	if len(cfg.Aggregation.SourcePriority) != 5 || cfg.Aggregation.SourcePriority[0] != "reddit" {
		t.Errorf("unexpected source priority: %v", cfg.Aggregation.SourcePriority)
	}
	if cfg.Extraction.Provider != "openai" || cfg.Extraction.Model != "gpt-4o-mini" {
		t.Errorf("unexpected extraction defaults: %+v", cfg.Extraction)
	}
	if cfg.Sources.Reddit.PerScopeLimit != 5 || len(cfg.Sources.Reddit.Subreddits) != 6 {
		t.Errorf("unexpected reddit defaults: %+v", cfg.Sources.Reddit)
	}
	if cfg.Sources.Twitter.Language != "en" {
		t.Errorf("expected twitter language en, got %q", cfg.Sources.Twitter.Language)
	}
}

func TestApplyDefaults_GeminiModel(t *testing.T) {
	cfg := Config{Extraction: ExtractionConfig{Provider: "gemini"}}
	cfg.ApplyDefaults()
	if cfg.Extraction.Model != "gemini-2.5-flash" {
		t.Errorf("unexpected gemini model %q", cfg.Extraction.Model)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:        HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Run:         RunConfig{SourceTimeoutSec: 5},
		Aggregation: AggregationConfig{MaxCorpusSize: 7, SimilarityThreshold: 0.8},
	}
	cfg.Sources.Reddit.Subreddits = []string{"golang"}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("http timeouts overridden: %+v", cfg.HTTP)
	}
	if cfg.Run.SourceTimeoutSec != 5 {
		t.Errorf("expected SourceTimeoutSec=5, got %d", cfg.Run.SourceTimeoutSec)
	}
	if cfg.Aggregation.MaxCorpusSize != 7 || cfg.Aggregation.SimilarityThreshold != 0.8 {
		t.Errorf("aggregation overridden: %+v", cfg.Aggregation)
	}
	if len(cfg.Sources.Reddit.Subreddits) != 1 {
		t.Errorf("subreddits overridden: %v", cfg.Sources.Reddit.Subreddits)
	}
}

func TestParse_ExpandsEnvAndInlinesSources(t *testing.T) {
	t.Setenv("PR_TEST_REDDIT_ID", "abc")
	data := []byte(`
http:
  port: 9000
sources:
  reddit:
    enabled: true
    limit: 15
    client_id: ${PR_TEST_REDDIT_ID}
    client_secret: ${PR_TEST_MISSING:-fallback}
rate_limit:
  reddit:
    requests: 60
    window_sec: 60
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := cfg.Sources.Reddit
	if !r.Enabled || r.Limit != 15 || r.ClientID != "abc" || r.ClientSecret != "fallback" {
		t.Errorf("unexpected reddit config: %+v", r)
	}
	if cfg.RateLimit["reddit"].Requests != 60 {
		t.Errorf("unexpected rate limit: %+v", cfg.RateLimit)
	}
}

func TestParse_RedisDatabase(t *testing.T) {
	t.Setenv("PR_TEST_REDIS_DB", "3")
	data := []byte(`
http:
  port: 9000
database:
  driver: redis
  addrs:
    - redis-a:6379
  username: painradar
  db: ${PR_TEST_REDIS_DB:-0}
  standalone: ${PR_TEST_REDIS_STANDALONE:-true}
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := cfg.Database
	if d.DB != 3 || !d.Standalone || d.Username != "painradar" || len(d.Addrs) != 1 {
		t.Errorf("unexpected database config: %+v", d)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
