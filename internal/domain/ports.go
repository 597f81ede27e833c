package domain

import (
	"context"
	"encoding/json"
)

// Fetcher is the source adapter contract shared between layers.
// Every failure comes back as a *SourceError; Fetch never panics for
// expected provider conditions.
type Fetcher interface {
	Source() Source
	Fetch(ctx context.Context, query string, c FetchConstraints) ([]NormalizedRecord, error)
}

// AvailabilityChecker reports, without network I/O, whether a fetcher can run.
type AvailabilityChecker interface {
	Available() error
}

// CompletionRequest is a single structured-output request to a language model.
type CompletionRequest struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     json.RawMessage
}

// CompletionResult carries the raw model text and its token usage.
type CompletionResult struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// Completer is the language-model capability: prompt in, JSON text out, or an error.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
