// Package budget persists LLM token usage per budget window so limits hold
// across restarts and across processes sharing one Redis.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/painradar/internal/db"
	"github.com/kailas-cloud/painradar/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "budget:"

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Store keeps one INCRBY counter per window. A counter outlives its window by
// the period TTL and then expires on its own.
type Store struct {
	kv  store
	ttl map[domain.BudgetPeriod]time.Duration
}

// New creates a budget store. Typical TTLs are 48h for daily and 62 days for
// monthly windows.
func New(kv store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		kv: kv,
		ttl: map[domain.BudgetPeriod]time.Duration{
			domain.BudgetDaily:   dailyTTL,
			domain.BudgetMonthly: monthTTL,
		},
	}
}

// Key is painradar:budget:{provider}:{period}:{label}.
func Key(w domain.BudgetWindow) string {
	return keyPrefix + w.Provider + ":" + string(w.Period) + ":" + w.Label()
}

// Add increments the window counter. The TTL is set once, on the first write.
func (s *Store) Add(ctx context.Context, w domain.BudgetWindow, tokens int64) error {
	key := Key(w)
	if _, err := s.kv.Incr(ctx, key, tokens, s.ttl[w.Period]); err != nil {
		return fmt.Errorf("budget add %s: %w", key, err)
	}
	return nil
}

// Used returns the window counter, 0 when nothing was recorded yet.
func (s *Store) Used(ctx context.Context, w domain.BudgetWindow) (int64, error) {
	key := Key(w)
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget read %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget read %s: corrupt counter %q: %w", key, data, err)
	}
	return val, nil
}
