// Package bootstrap is the composition root shared by the server, the CLI
// and the embedded SDK.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/config"
	"github.com/kailas-cloud/painradar/internal/db"
	"github.com/kailas-cloud/painradar/internal/db/memory"
	dbRedis "github.com/kailas-cloud/painradar/internal/db/redis"
	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/metrics"
	budgetrepo "github.com/kailas-cloud/painradar/internal/repository/budget"
	"github.com/kailas-cloud/painradar/internal/repository/fetchcache"
	"github.com/kailas-cloud/painradar/internal/repository/ratelimit"
	"github.com/kailas-cloud/painradar/internal/retry"
	"github.com/kailas-cloud/painradar/internal/transport/duckduckgo"
	geminiLLM "github.com/kailas-cloud/painradar/internal/transport/gemini"
	"github.com/kailas-cloud/painradar/internal/transport/googlecse"
	"github.com/kailas-cloud/painradar/internal/transport/hnrss"
	"github.com/kailas-cloud/painradar/internal/transport/httpx"
	openaiLLM "github.com/kailas-cloud/painradar/internal/transport/openai"
	"github.com/kailas-cloud/painradar/internal/transport/reddit"
	"github.com/kailas-cloud/painradar/internal/transport/twitter"
	"github.com/kailas-cloud/painradar/internal/usecase/aggregate"
	extractuc "github.com/kailas-cloud/painradar/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/painradar/internal/usecase/health"
	runuc "github.com/kailas-cloud/painradar/internal/usecase/run"
	sourceuc "github.com/kailas-cloud/painradar/internal/usecase/source"
)

// Deps are optional prebuilt collaborators. Nil fields are built from config.
type Deps struct {
	Store      db.Store
	Completer  domain.Completer
	HTTPClient *http.Client
	// Providers replaces the configured source providers when non-nil.
	Providers []sourceuc.Provider
}

// App is the wired pipeline.
type App struct {
	Store    db.Store
	Runs     *runuc.Service
	Health   *healthuc.Service
	Budget   *extractuc.BudgetTracker
	Fetchers []domain.Fetcher

	ownsStore bool
}

// Close releases the store if Build opened it.
func (a *App) Close() {
	if a.ownsStore && a.Store != nil {
		a.Store.Close()
	}
}

// Build wires store → rate limiter → adapters → cache → instrumentation,
// completer → budget → instrumentation → extractor, and the run coordinator.
func Build(ctx context.Context, cfg *config.Config, deps Deps, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Store: deps.Store}
	if app.Store == nil {
		store, err := OpenStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.Store = store
		app.ownsStore = true
	}

	hc := deps.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(time.Duration(cfg.Run.SourceTimeoutSec) * time.Second)
	}

	providers := deps.Providers
	if providers == nil {
		providers = BuildProviders(cfg, hc)
	}
	app.Fetchers = BuildFetchers(cfg, providers, app.Store, logger)

	llm := deps.Completer
	provider := cfg.Extraction.Provider
	if llm == nil {
		base, err := BuildCompleter(ctx, cfg.Extraction, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		llm = base
	} else {
		provider = "custom"
	}

	var budgetChecker extractuc.BudgetChecker
	if b := cfg.Budget; b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 {
		action := extractuc.BudgetActionWarn
		if b.Action == string(extractuc.BudgetActionReject) {
			action = extractuc.BudgetActionReject
		}
		app.Budget = extractuc.NewBudgetTracker(provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger)
		app.Budget.WithStore(ctx, budgetrepo.New(app.Store, 48*time.Hour, 62*24*time.Hour))
		// a typed nil *BudgetTracker inside the interface would not be nil
		budgetChecker = app.Budget
	}
	llm = extractuc.NewInstrumentedCompleter(llm, provider, cfg.Extraction.Model, budgetChecker, logger)

	extractor := extractuc.New(llm, extractuc.Options{
		MaxPromptChars: cfg.Extraction.MaxPromptChars,
		MaxRecordChars: cfg.Extraction.MaxRecordChars,
		MaxFindings:    cfg.Extraction.MaxFindings,
		Timeout:        time.Duration(cfg.Extraction.TimeoutSec) * time.Second,
	})

	agg := aggregate.New(aggregate.Options{
		MaxCorpusSize:       cfg.Aggregation.MaxCorpusSize,
		SimilarityThreshold: cfg.Aggregation.SimilarityThreshold,
		SourcePriority:      sourcePriority(cfg.Aggregation.SourcePriority),
	})

	app.Runs = runuc.New(app.Fetchers, agg, extractor, runuc.Options{
		SourceTimeout: time.Duration(cfg.Run.SourceTimeoutSec) * time.Second,
		TotalTimeout:  time.Duration(cfg.Run.TotalTimeoutSec) * time.Second,
		MaxQueryWords: cfg.Run.MaxQueryWords,
		EventBuffer:   cfg.Run.EventBuffer,
	})

	checkers := make([]healthuc.SourceChecker, 0, len(app.Fetchers))
	for _, f := range app.Fetchers {
		if sc, ok := f.(healthuc.SourceChecker); ok {
			checkers = append(checkers, sc)
		}
	}
	var llmChecker healthuc.LLMChecker
	if checker, ok := llm.(domain.HealthChecker); ok {
		llmChecker = checker
	}
	app.Health = healthuc.New(app.Store, llmChecker, checkers...)

	logger.Info("Pipeline wired",
		zap.Int("sources", len(app.Fetchers)),
		zap.String("llm_provider", provider),
		zap.String("llm_model", cfg.Extraction.Model),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("budget", app.Budget != nil),
	)
	return app, nil
}

// OpenStore connects the configured KV store and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var store db.Store
	switch cfg.Driver {
	case "", "memory":
		store = memory.NewStore()
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Username:   cfg.Username,
			Password:   cfg.Password,
			DB:         cfg.DB,
			Standalone: cfg.Standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	timeout := time.Duration(cfg.ReadinessTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// BuildProviders creates a provider for every enabled source.
func BuildProviders(cfg *config.Config, hc *http.Client) []sourceuc.Provider {
	s := cfg.Sources
	var out []sourceuc.Provider
	if s.Reddit.Enabled {
		out = append(out, reddit.New(reddit.Config{
			ClientID:     s.Reddit.ClientID,
			ClientSecret: s.Reddit.ClientSecret,
			UserAgent:    s.Reddit.UserAgent,
			APIURL:       s.Reddit.BaseURL,
			AuthURL:      s.Reddit.AuthURL,
			Subreddits:   s.Reddit.Subreddits,
			HTTPClient:   hc,
		}))
	}
	if s.Google.Enabled {
		out = append(out, googlecse.New(googlecse.Config{
			APIKey:     s.Google.APIKey,
			CX:         s.Google.CX,
			BaseURL:    s.Google.BaseURL,
			HTTPClient: hc,
		}))
	}
	if s.Twitter.Enabled {
		out = append(out, twitter.New(twitter.Config{
			BearerToken: s.Twitter.BearerToken,
			BaseURL:     s.Twitter.BaseURL,
			HTTPClient:  hc,
		}))
	}
	if s.DuckDuckGo.Enabled {
		out = append(out, duckduckgo.New(duckduckgo.Config{
			BaseURL:    s.DuckDuckGo.BaseURL,
			UserAgent:  s.DuckDuckGo.UserAgent,
			HTTPClient: hc,
		}))
	}
	if s.HackerNews.Enabled {
		out = append(out, hnrss.New(hnrss.Config{
			BaseURL:    s.HackerNews.BaseURL,
			MinPoints:  s.HackerNews.MinPoints,
			HTTPClient: hc,
		}))
	}
	return out
}

// BuildFetchers assembles the decorator chain per provider:
// Adapter -> Cached -> Instrumented.
func BuildFetchers(cfg *config.Config, providers []sourceuc.Provider, store db.Store, logger *zap.Logger) []domain.Fetcher {
	windows := make(map[domain.Source]ratelimit.Window, len(cfg.RateLimit))
	for name, rl := range cfg.RateLimit {
		windows[domain.Source(name)] = ratelimit.Window{
			Limit:  rl.Requests,
			Period: time.Duration(rl.WindowSec) * time.Second,
		}
	}
	limiter := ratelimit.New(store, windows, logger)
	policy := RetryPolicy(cfg.Retry)

	out := make([]domain.Fetcher, 0, len(providers))
	for _, p := range providers {
		sc := cfg.Sources.Common(p.Source())
		if sc == nil {
			continue
		}
		var f domain.Fetcher = sourceuc.NewAdapter(p, sourceuc.Options{
			Enabled: true,
			Defaults: domain.FetchConstraints{
				Limit:         sc.Limit,
				PerScopeLimit: sc.PerScopeLimit,
				TimeFilter:    domain.TimeFilter(sc.TimeFilter),
				Language:      sc.Language,
			},
			MaxConcurrency: sc.MaxConcurrency,
			Retry:          policy,
			Limiter:        limiter,
		})
		if cfg.Cache.Enabled {
			f = fetchcache.New(f, store, time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.SourceCacheTotal, logger)
		}
		out = append(out, sourceuc.NewInstrumentedFetcher(f))
	}
	return out
}

// BuildCompleter creates the configured language model transport.
func BuildCompleter(ctx context.Context, cfg config.ExtractionConfig, logger *zap.Logger) (domain.Completer, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := geminiLLM.NewCompleter(ctx, &geminiLLM.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini completer: %w", err)
		}
		return c, nil
	case "", "openai":
		return openaiLLM.NewCompleter(&openaiLLM.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Logger:          logger,
		}), nil
	default:
		return nil, errors.New("unknown extraction provider " + cfg.Provider)
	}
}

// RetryPolicy converts the config section into a retry.Policy.
func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		Multiplier:  cfg.Multiplier,
		Jitter:      cfg.Jitter,
	}
}

func sourcePriority(names []string) []domain.Source {
	out := make([]domain.Source, 0, len(names))
	for _, n := range names {
		if src, err := domain.ParseSource(n); err == nil {
			out = append(out, src)
		}
	}
	return out
}
