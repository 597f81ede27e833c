package fetchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/db"
	"github.com/kailas-cloud/painradar/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "fetch_cache:"

// store is the consumer interface for the fetch cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedFetcher caches non-empty adapter results in a key-value store.
type CachedFetcher struct {
	inner      domain.Fetcher
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Fetcher,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedFetcher {
	return &CachedFetcher{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Source returns the wrapped adapter's source.
func (c *CachedFetcher) Source() domain.Source { return c.inner.Source() }

// Available forwards the availability check without touching the cache.
func (c *CachedFetcher) Available() error {
	if ac, ok := c.inner.(domain.AvailabilityChecker); ok {
		return ac.Available()
	}
	return nil
}

// Fetch returns cached records or calls the inner adapter.
// Failures and empty results are never cached.
func (c *CachedFetcher) Fetch(
	ctx context.Context, query string, fc domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	if c.Available() != nil {
		return c.inner.Fetch(ctx, query, fc) //nolint:wrapcheck // adapter builds its typed failure
	}

	key := c.cacheKey(query, fc)
	if recs, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return recs, nil
	}
	c.incCache("miss")

	recs, err := c.inner.Fetch(ctx, query, fc)
	if err != nil {
		return nil, err //nolint:wrapcheck // SourceError is already typed
	}
	if len(recs) > 0 {
		c.putToCache(ctx, key, recs)
	}
	return recs, nil
}

func (c *CachedFetcher) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedFetcher) cacheKey(query string, fc domain.FetchConstraints) string {
	// json.Marshal of a struct is field-ordered, so equal constraints hash equally.
	cons, _ := json.Marshal(fc)
	h := sha256.New()
	h.Write([]byte(c.inner.Source()))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(cons)
	return cacheKeyPrefix + string(c.inner.Source()) + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedFetcher) getFromCache(ctx context.Context, key string) ([]domain.NormalizedRecord, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached fetch", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	var recs []domain.NormalizedRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		c.logger.Warn("Failed to parse cached fetch", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return recs, len(recs) > 0
}

func (c *CachedFetcher) putToCache(ctx context.Context, key string, recs []domain.NormalizedRecord) {
	data, err := json.Marshal(recs)
	if err != nil {
		c.logger.Warn("Failed to encode fetch for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache fetch", zap.String("key", key), zap.Error(fmt.Errorf("put: %w", err)))
	}
}
