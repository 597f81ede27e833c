// Package ratelimit keeps process-wide fixed-window request counters per provider.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "ratelimit:"

// store is the consumer interface for window counters (ISP).
type store interface {
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Window allows Limit requests per Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Limiter admits provider calls against fixed windows stored in a KV store.
// With the memory store the counters are shared by every run in the process;
// with Redis they are shared across processes.
type Limiter struct {
	store   store
	windows map[domain.Source]Window
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a limiter. Providers without a window are never limited.
func New(s store, windows map[domain.Source]Window, logger *zap.Logger) *Limiter {
	return &Limiter{store: s, windows: windows, now: time.Now, logger: logger}
}

// Allow counts one call. Over the limit it returns a 429 StatusError whose
// RetryAfter is the remainder of the current window. Store failures fail open.
func (l *Limiter) Allow(ctx context.Context, src domain.Source) error {
	w, ok := l.windows[src]
	if !ok || w.Limit <= 0 || w.Period <= 0 {
		return nil
	}

	now := l.now()
	bucket := now.UnixNano() / int64(w.Period)
	key := keyPrefix + string(src) + ":" + strconv.FormatInt(bucket, 10)

	n, err := l.store.Incr(ctx, key, 1, w.Period)
	if err != nil {
		// n > 0 means only the TTL write failed; the count is still usable.
		l.logger.Warn("Rate limit store error",
			zap.String("source", string(src)), zap.Int64("count", n), zap.Error(err))
		if n <= 0 {
			return nil
		}
	}
	if n <= int64(w.Limit) {
		return nil
	}

	windowEnd := time.Unix(0, (bucket+1)*int64(w.Period))
	retryAfter := windowEnd.Sub(now)
	l.logger.Warn("Local rate limit reached",
		zap.String("source", string(src)),
		zap.Int("limit", w.Limit),
		zap.Duration("retry_after", retryAfter),
	)
	return &domain.StatusError{
		Provider:   string(src),
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Detail:     fmt.Sprintf("local window of %d requests per %s exhausted", w.Limit, w.Period),
	}
}
