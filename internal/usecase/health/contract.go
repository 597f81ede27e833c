package health

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// DBPinger checks KV store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks language model provider availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}

// SourceChecker reports whether a source adapter can run, without network I/O.
type SourceChecker interface {
	Source() domain.Source
	Available() error
}
