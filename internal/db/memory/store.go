// Package memory is an in-process db.Store for single-instance deployments
// and tests. Values expire lazily on read.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/painradar/internal/db"
)

var _ db.Store = (*Store)(nil)

type entry struct {
	value    []byte
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// sweepEvery is the number of writes between full scans for expired keys.
const sweepEvery = 1024

// Store keeps keys in a map guarded by a mutex. Expired keys are dropped on
// read and by a periodic sweep on write, so keys that are never read again
// (past rate-limit windows, one-off cache entries) do not accumulate.
type Store struct {
	mu         sync.Mutex
	data       map[string]entry
	now        func() time.Time
	writes     int
	sweepEvery int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]entry), now: time.Now, sweepEvery: sweepEvery}
}

// WithClock overrides the time source (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all keys.
func (s *Store) Close() {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Put stores a copy of value. A zero ttl keeps it forever.
func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: clone(value)}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.data[key] = e
	s.afterWrite()
	return nil
}

// Incr adds delta to an integer value, creating it at zero. A positive ttl is
// applied only when the key has no expiry yet.
func (s *Store) Incr(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	var cur int64
	if ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, &db.Error{Op: db.OpIncrBy, Err: db.ErrNotInteger}
		}
		cur = n
	}
	cur += delta
	e.value = []byte(strconv.FormatInt(cur, 10))
	if ttl > 0 && e.expireAt.IsZero() {
		e.expireAt = s.now().Add(ttl)
	}
	s.data[key] = e
	s.afterWrite()
	return cur, nil
}

// afterWrite must be called with mu held.
func (s *Store) afterWrite() {
	s.writes++
	if s.writes < s.sweepEvery {
		return
	}
	s.writes = 0
	now := s.now()
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
		}
	}
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.now()) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
