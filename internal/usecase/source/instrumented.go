package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

// InstrumentedFetcher wraps a Fetcher with request metrics and one log line per fetch.
type InstrumentedFetcher struct {
	inner domain.Fetcher
}

// NewInstrumentedFetcher wraps a fetcher with observability.
func NewInstrumentedFetcher(inner domain.Fetcher) *InstrumentedFetcher {
	return &InstrumentedFetcher{inner: inner}
}

// Source returns the wrapped source.
func (f *InstrumentedFetcher) Source() domain.Source { return f.inner.Source() }

// Available forwards the availability check.
func (f *InstrumentedFetcher) Available() error {
	if ac, ok := f.inner.(domain.AvailabilityChecker); ok {
		return ac.Available()
	}
	return nil
}

// Fetch delegates and records status, duration and record count.
func (f *InstrumentedFetcher) Fetch(
	ctx context.Context, query string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	src := string(f.inner.Source())
	start := time.Now()

	recs, err := f.inner.Fetch(ctx, query, c)

	duration := time.Since(start)
	metrics.SourceRequestDuration.WithLabelValues(src).Observe(duration.Seconds())

	l := logpkg.FromContext(ctx)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.SourceRequestsTotal.WithLabelValues(src, string(kind)).Inc()
		log := l.Info
		if !kind.Expected() {
			log = l.Error
		}
		log("Source fetch failed",
			zap.String("source", src),
			zap.String("kind", string(kind)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err //nolint:wrapcheck // SourceError is already typed
	}

	metrics.SourceRequestsTotal.WithLabelValues(src, "ok").Inc()
	metrics.SourceRecordsTotal.WithLabelValues(src).Add(float64(len(recs)))
	l.Debug("Source fetch completed",
		zap.String("source", src),
		zap.Int("records", len(recs)),
		zap.Duration("duration", duration),
	)
	return recs, nil
}
