package source

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// Provider is one external content API. Implementations live in internal/transport.
type Provider interface {
	Source() domain.Source
	// Configured reports missing credentials without network I/O.
	Configured() error
	// HardLimit is the most records the provider returns for one call.
	HardLimit() int
	// Scopes lists the sub-scopes to fan out over (subreddits, ...).
	// A single-scope provider returns one empty scope.
	Scopes(c domain.FetchConstraints) []string
	// Search runs one provider call. c.PerScopeLimit is already clamped.
	Search(ctx context.Context, query, scope string, c domain.FetchConstraints) ([]domain.NormalizedRecord, error)
}

// ScopeLimiter is implemented by providers whose per-scope listing cap
// differs from HardLimit. Without it HardLimit caps both.
type ScopeLimiter interface {
	ScopeHardLimit() int
}

// Limiter admits provider calls against shared rate-limit windows.
type Limiter interface {
	Allow(ctx context.Context, src domain.Source) error
}
