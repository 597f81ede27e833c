package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	"github.com/kailas-cloud/painradar/internal/metrics"
	"github.com/kailas-cloud/painradar/internal/retry"
)

// Compile-time checks.
var (
	_ domain.Fetcher             = (*Adapter)(nil)
	_ domain.AvailabilityChecker = (*Adapter)(nil)
)

// Options configure an Adapter.
type Options struct {
	Enabled        bool
	Defaults       domain.FetchConstraints
	MaxConcurrency int
	Retry          retry.Policy
	Clock          retry.Clock    // nil = retry.RealClock
	Limiter        Limiter        // nil = unlimited
	Rand           func() float64 // jitter source, nil = math/rand
}

// Adapter turns a Provider into a domain.Fetcher: availability check,
// rate-limit admission, retries per scope call, bounded fan-out,
// local dedupe, ranking and capping.
type Adapter struct {
	p       Provider
	enabled bool
	defs    domain.FetchConstraints
	maxConc int
	policy  retry.Policy
	clock   retry.Clock
	limiter Limiter
	rnd     func() float64
}

// NewAdapter wraps a provider.
func NewAdapter(p Provider, opts Options) *Adapter {
	a := &Adapter{
		p:       p,
		enabled: opts.Enabled,
		defs:    opts.Defaults,
		maxConc: opts.MaxConcurrency,
		policy:  opts.Retry,
		clock:   opts.Clock,
		limiter: opts.Limiter,
		rnd:     opts.Rand,
	}
	if a.maxConc < 1 {
		a.maxConc = 1
	}
	if a.policy.MaxAttempts < 1 {
		a.policy = retry.DefaultPolicy()
	}
	if a.clock == nil {
		a.clock = retry.RealClock{}
	}
	return a
}

// Source returns the provider name.
func (a *Adapter) Source() domain.Source { return a.p.Source() }

// Available reports a disabled or uncredentialed adapter without I/O.
func (a *Adapter) Available() error {
	if !a.enabled {
		return fmt.Errorf("%s is disabled: %w", a.p.Source(), domain.ErrSourceUnavailable)
	}
	if err := a.p.Configured(); err != nil {
		return fmt.Errorf("%s is not configured: %w", a.p.Source(), err)
	}
	return nil
}

type scopeResult struct {
	scope    string
	records  []domain.NormalizedRecord
	attempts int
	err      error
}

// Fetch implements domain.Fetcher. Every failure is a *domain.SourceError.
func (a *Adapter) Fetch(ctx context.Context, query string, c domain.FetchConstraints) ([]domain.NormalizedRecord, error) {
	src := a.p.Source()
	if err := a.Available(); err != nil {
		return nil, &domain.SourceError{Source: src, Kind: domain.FailureUnavailable, Err: err}
	}

	c = a.Resolve(c)
	scopes := a.p.Scopes(c)
	if len(scopes) == 0 {
		scopes = []string{""}
	}

	results := make([]scopeResult, len(scopes))
	var g errgroup.Group
	g.SetLimit(a.maxConc)
	for i, scope := range scopes {
		g.Go(func() error {
			results[i] = a.fetchScope(ctx, query, scope, c)
			return nil // scope failures are collected, never propagated
		})
	}
	_ = g.Wait()

	return a.merge(ctx, results, c)
}

// Resolve fills unset constraints from the adapter defaults and clamps limits
// to [1, HardLimit] (per scope: [1, ScopeHardLimit] when the provider has one).
func (a *Adapter) Resolve(c domain.FetchConstraints) domain.FetchConstraints {
	hard := a.p.HardLimit()
	scopeHard := hard
	if sl, ok := a.p.(ScopeLimiter); ok {
		scopeHard = sl.ScopeHardLimit()
	}
	if c.Limit <= 0 {
		c.Limit = a.defs.Limit
	}
	c.Limit = clamp(c.Limit, 1, hard)
	if c.PerScopeLimit <= 0 {
		c.PerScopeLimit = a.defs.PerScopeLimit
	}
	if c.PerScopeLimit <= 0 {
		c.PerScopeLimit = c.Limit
	}
	c.PerScopeLimit = clamp(c.PerScopeLimit, 1, scopeHard)
	if c.TimeFilter == "" {
		c.TimeFilter = a.defs.TimeFilter
	}
	if len(c.Scopes) == 0 {
		c.Scopes = a.defs.Scopes
	}
	if c.Language == "" {
		c.Language = a.defs.Language
	}
	return c
}

func (a *Adapter) fetchScope(ctx context.Context, query, scope string, c domain.FetchConstraints) scopeResult {
	src := a.p.Source()
	l := logpkg.FromContext(ctx)
	m := retry.NewMachine(a.policy, Classify, a.rnd)

	var recs []domain.NormalizedRecord
	op := func(ctx context.Context) error {
		if a.limiter != nil {
			if err := a.limiter.Allow(ctx, src); err != nil {
				return err //nolint:wrapcheck // classified by the retry machine
			}
		}
		out, err := a.p.Search(ctx, query, scope, c)
		if err != nil {
			return err //nolint:wrapcheck // classified by the retry machine
		}
		recs = out
		return nil
	}
	onRetry := func(d retry.Decision) {
		kind := domain.KindOf(d.Err)
		metrics.SourceRetriesTotal.WithLabelValues(string(src), string(kind)).Inc()
		l.Warn("Provider call failed, retrying",
			zap.String("source", string(src)),
			zap.String("scope", scope),
			zap.Int("attempt", d.Attempt),
			zap.Duration("delay", d.Delay),
			zap.String("kind", string(kind)),
			zap.Error(d.Err),
		)
	}

	d, err := retry.Do(ctx, m, a.clock, op, onRetry)
	if err != nil {
		l.Warn("Provider call gave up",
			zap.String("source", string(src)),
			zap.String("scope", scope),
			zap.Int("attempts", d.Attempt),
			zap.String("reason", string(d.Reason)),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		return scopeResult{scope: scope, attempts: d.Attempt, err: err}
	}

	SortRecords(recs)
	if len(recs) > c.PerScopeLimit {
		recs = recs[:c.PerScopeLimit]
	}
	return scopeResult{scope: scope, records: recs, attempts: d.Attempt}
}

func (a *Adapter) merge(ctx context.Context, results []scopeResult, c domain.FetchConstraints) ([]domain.NormalizedRecord, error) {
	src := a.p.Source()
	var (
		firstErr      error
		firstAttempts int
		failed        int
		attempts      int
	)
	seen := make(map[string]int)
	var merged []domain.NormalizedRecord

	for _, r := range results {
		attempts += r.attempts
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr, firstAttempts = r.err, r.attempts
			}
			continue
		}
		for _, rec := range r.records {
			// (id, source) must stay unique inside one adapter output
			if idx, dup := seen[rec.ID]; dup {
				if rec.EngagementScore > merged[idx].EngagementScore {
					merged[idx] = rec
				}
				continue
			}
			seen[rec.ID] = len(merged)
			merged = append(merged, rec)
		}
	}

	if failed == len(results) {
		return nil, domain.NewSourceError(src, firstAttempts, firstErr)
	}
	if failed > 0 {
		logpkg.FromContext(ctx).Warn("Some scopes failed",
			zap.String("source", string(src)),
			zap.Int("failed", failed),
			zap.Int("scopes", len(results)),
			zap.Error(firstErr),
		)
	}
	if len(merged) == 0 {
		return nil, &domain.SourceError{
			Source: src, Kind: domain.FailureEmpty, Attempts: attempts,
			Err: fmt.Errorf("%s returned nothing for the query: %w", src, domain.ErrNoResults),
		}
	}

	SortRecords(merged)
	if len(merged) > c.Limit {
		merged = merged[:c.Limit]
	}
	return merged, nil
}

// Classify decides which provider errors are worth another attempt:
// rate limits, 5xx, and network failures. Auth, quota, rejected requests and
// schema violations fail immediately.
func Classify(err error) retry.Verdict {
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrSourceTransient) {
		v := retry.Verdict{Retryable: true}
		var se *domain.StatusError
		if errors.As(err, &se) {
			v.RetryAfter = se.RetryAfter
		}
		return v
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return retry.Verdict{Retryable: true}
	}
	return retry.Verdict{}
}

// SortRecords orders records by engagement desc, then created_at desc, then id asc.
// Records without a timestamp sort after dated ones.
func SortRecords(recs []domain.NormalizedRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.EngagementScore != b.EngagementScore {
			return a.EngagementScore > b.EngagementScore
		}
		switch {
		case a.CreatedAt != nil && b.CreatedAt != nil:
			if !a.CreatedAt.Equal(*b.CreatedAt) {
				return a.CreatedAt.After(*b.CreatedAt)
			}
		case a.CreatedAt != nil:
			return true
		case b.CreatedAt != nil:
			return false
		}
		return a.ID < b.ID
	})
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
