package painradar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/bootstrap"
	"github.com/kailas-cloud/painradar/internal/config"
	"github.com/kailas-cloud/painradar/internal/db"
	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	runuc "github.com/kailas-cloud/painradar/internal/usecase/run"
)

// Внутренние интерфейсы для подмены в тестах.
type runUseCase interface {
	Run(ctx context.Context, query string, opts domain.RunOptions, events chan<- domain.ProgressEvent) (domain.RunReport, error)
	Stream(ctx context.Context, query string, opts domain.RunOptions) (<-chan domain.ProgressEvent, <-chan domain.RunReport, error)
	Sources() []runuc.SourceInfo
}

// Client is the painradar SDK entry point.
type Client struct {
	store     db.Pinger
	runSvc    runUseCase
	healthSvc healthUseCase
	obs       *observer
	log       *zap.Logger
	release   func()
}

// New wires the pipeline in-process. The provided context is used for the
// store readiness check and provider setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	if cc.completer == nil && cc.llm == nil {
		return nil, ErrNoCompleter
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	cfg := buildConfig(cc)
	var deps bootstrap.Deps
	if cc.completer != nil {
		deps.Completer = cc.completer
	}

	// пайплайн логирует через zap; SDK-операции видны через slog в observer
	log := cc.zapLogger
	if log == nil {
		log = zap.NewNop()
	}
	app, err := bootstrap.Build(ctx, &cfg, deps, log)
	if err != nil {
		return nil, fmt.Errorf("painradar: %w", err)
	}

	return &Client{
		store:     app.Store,
		runSvc:    app.Runs,
		healthSvc: app.Health,
		obs:       obs,
		log:       log,
		release:   app.Close,
	}, nil
}

// buildConfig translates options into the configuration the server reads from YAML.
func buildConfig(cc *clientConfig) config.Config {
	var cfg config.Config

	if cc.redisAddr != "" {
		cfg.Database.Driver = "redis"
		cfg.Database.Addrs = []string{cc.redisAddr}
		cfg.Database.Password = cc.redisPassword
	}

	src := &cfg.Sources
	if cc.reddit != nil {
		src.Reddit.Enabled = true
		src.Reddit.ClientID = cc.reddit.clientID
		src.Reddit.ClientSecret = cc.reddit.clientSecret
		src.Reddit.Subreddits = cc.reddit.subreddits
	}
	if cc.google != nil {
		src.Google.Enabled = true
		src.Google.APIKey = cc.google.apiKey
		src.Google.CX = cc.google.cx
	}
	if cc.twitter != "" {
		src.Twitter.Enabled = true
		src.Twitter.BearerToken = cc.twitter
	}
	src.DuckDuckGo.Enabled = cc.duckduckgo
	if cc.hackernews {
		src.HackerNews.Enabled = true
		src.HackerNews.MinPoints = cc.minPoints
	}

	if cc.llm != nil {
		cfg.Extraction.Provider = cc.llm.provider
		cfg.Extraction.APIKey = cc.llm.apiKey
		cfg.Extraction.Model = cc.llm.model
		cfg.Extraction.BaseURL = cc.llm.baseURL
	}

	cfg.Run.SourceTimeoutSec = seconds(cc.sourceTimeout)
	cfg.Run.TotalTimeoutSec = seconds(cc.totalTimeout)
	if cc.cacheTTL > 0 {
		cfg.Cache.Enabled = true
		cfg.Cache.TTLSec = seconds(cc.cacheTTL)
	}

	cfg.ApplyDefaults()
	return cfg
}

// seconds rounds up so a sub-second duration does not turn into "use the default".
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Close releases the store if the client opened it.
func (c *Client) Close() {
	if c.release != nil {
		c.release()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Run executes a run and waits for its report. Only invalid input returns
// an error; a run that failed during extraction comes back with State
// FAILED and a populated Error field.
func (c *Client) Run(ctx context.Context, query string, opts ...RunOption) (report RunReport, err error) {
	start := time.Now()
	defer func() { c.obs.observeRun("run", start, report, err) }()

	ro, err := runOptions(opts)
	if err != nil {
		return RunReport{}, err
	}
	return c.runSvc.Run(c.withLogger(ctx), query, ro, nil)
}

// Stream starts a run in the background. Progress events arrive on the
// first channel, which is closed when the run is terminal; the report then
// arrives on the second.
func (c *Client) Stream(
	ctx context.Context, query string, opts ...RunOption,
) (<-chan ProgressEvent, <-chan RunReport, error) {
	start := time.Now()

	ro, err := runOptions(opts)
	if err != nil {
		c.obs.observe("stream", start, err)
		return nil, nil, err
	}
	events, result, err := c.runSvc.Stream(c.withLogger(ctx), query, ro)
	if err != nil {
		c.obs.observe("stream", start, err)
		return nil, nil, err
	}

	out := make(chan RunReport, 1)
	go func() {
		defer close(out)
		report, ok := <-result
		if !ok {
			return
		}
		c.obs.observeRun("stream", start, report, nil)
		out <- report
	}()
	return events, out, nil
}

// Sources lists every known source and whether this client can query it.
func (c *Client) Sources() []SourceInfo {
	infos := c.runSvc.Sources()
	out := make([]SourceInfo, 0, len(infos))
	for _, i := range infos {
		out = append(out, SourceInfo{
			Source:     i.Source,
			Registered: i.Registered,
			Available:  i.Available,
			Reason:     i.Reason,
		})
	}
	return out
}

// withLogger hands the pipeline logger to adapters, which log from the context.
func (c *Client) withLogger(ctx context.Context) context.Context {
	if c.log == nil {
		return ctx
	}
	return logpkg.ContextWithLogger(ctx, c.log)
}

func runOptions(opts []RunOption) (domain.RunOptions, error) {
	var req runRequest
	for _, o := range opts {
		o(&req)
	}
	return req.options()
}
