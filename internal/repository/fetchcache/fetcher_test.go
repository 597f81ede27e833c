package fetchcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/db/memory"
	"github.com/kailas-cloud/painradar/internal/domain"
)

// --- Mocks ---

type mockFetcher struct {
	recs     []domain.NormalizedRecord
	err      error
	availErr error
	calls    int
}

func (m *mockFetcher) Source() domain.Source { return domain.SourceReddit }

func (m *mockFetcher) Available() error { return m.availErr }

func (m *mockFetcher) Fetch(context.Context, string, domain.FetchConstraints) ([]domain.NormalizedRecord, error) {
	m.calls++
	return m.recs, m.err
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("timeout")
}

func (brokenStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("timeout")
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func sampleRecords() []domain.NormalizedRecord {
	ts := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	return []domain.NormalizedRecord{{
		ID: "abc", Source: domain.SourceReddit, Title: "Invoices are painful",
		URL: "https://reddit.com/r/smallbusiness/abc", CreatedAt: &ts, EngagementScore: 12,
	}}
}

// --- Tests ---

func TestFetch_MissThenHit(t *testing.T) {
	inner := &mockFetcher{recs: sampleRecords()}
	counter := newCounter()
	cf := New(inner, memory.NewStore(), time.Minute, counter, zap.NewNop())
	ctx := context.Background()
	fc := domain.FetchConstraints{Limit: 5, TimeFilter: domain.TimeWeek}

	first, err := cf.Fetch(ctx, "late invoices", fc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cf.Fetch(ctx, "late invoices", fc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("expected one inner call, got %d", inner.calls)
	}
	if len(second) != 1 || second[0].ID != first[0].ID || !second[0].CreatedAt.Equal(*first[0].CreatedAt) {
		t.Errorf("cached records differ: %+v", second)
	}
	if err := second[0].Validate(); err != nil {
		t.Errorf("cached record must stay valid: %v", err)
	}
	if testutil.ToFloat64(counter.WithLabelValues("hit")) != 1 || testutil.ToFloat64(counter.WithLabelValues("miss")) != 1 {
		t.Error("expected one hit and one miss")
	}
}

func TestFetch_DifferentConstraintsMiss(t *testing.T) {
	inner := &mockFetcher{recs: sampleRecords()}
	cf := New(inner, memory.NewStore(), time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	_, _ = cf.Fetch(ctx, "q", domain.FetchConstraints{Limit: 5})
	_, _ = cf.Fetch(ctx, "q", domain.FetchConstraints{Limit: 6})
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}
}

func TestFetch_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &mockFetcher{}
	cf := New(inner, memory.NewStore(), time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	_, _ = cf.Fetch(ctx, "q", domain.FetchConstraints{})
	_, _ = cf.Fetch(ctx, "q", domain.FetchConstraints{})
	if inner.calls != 2 {
		t.Errorf("empty result must not be cached, calls=%d", inner.calls)
	}

	inner.err = &domain.SourceError{Source: domain.SourceReddit, Kind: domain.FailureQuota, Err: domain.ErrSourceQuota}
	if _, err := cf.Fetch(ctx, "q", domain.FetchConstraints{}); !errors.Is(err, domain.ErrSourceQuota) {
		t.Errorf("expected quota error passthrough, got %v", err)
	}
}

func TestFetch_UnavailableBypassesCache(t *testing.T) {
	ms := memory.NewStore()
	inner := &mockFetcher{availErr: domain.ErrSourceUnavailable, err: domain.ErrSourceUnavailable}
	cf := New(inner, ms, time.Minute, nil, zap.NewNop())

	if _, err := cf.Fetch(context.Background(), "q", domain.FetchConstraints{}); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !errors.Is(cf.Available(), domain.ErrSourceUnavailable) {
		t.Error("Available must forward to the inner adapter")
	}
}

func TestFetch_StoreErrorsDegradeToInner(t *testing.T) {
	inner := &mockFetcher{recs: sampleRecords()}
	cf := New(inner, brokenStore{}, time.Minute, nil, zap.NewNop())

	recs, err := cf.Fetch(context.Background(), "q", domain.FetchConstraints{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("got %v, %v", recs, err)
	}
}

func TestCacheKey_Namespaced(t *testing.T) {
	cf := New(&mockFetcher{}, memory.NewStore(), time.Minute, nil, zap.NewNop())
	k := cf.cacheKey("q", domain.FetchConstraints{})
	if len(k) <= len(cacheKeyPrefix) || k[:len(cacheKeyPrefix)] != cacheKeyPrefix {
		t.Errorf("unexpected key %q", k)
	}
}
