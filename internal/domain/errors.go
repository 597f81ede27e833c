package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidQuery signals a query outside the accepted word range.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidOptions signals malformed run options.
	ErrInvalidOptions = errors.New("invalid run options")
	// ErrUnknownSource signals a source name that no adapter implements.
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceUnavailable signals a disabled or unconfigured source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceAuth signals rejected provider credentials.
	ErrSourceAuth = errors.New("source authentication failed")
	// ErrSourceQuota signals an exhausted provider quota.
	ErrSourceQuota = errors.New("source quota exhausted")
	// ErrRateLimited signals a rate limit hit (provider side or local window).
	ErrRateLimited = errors.New("rate limited")
	// ErrSourceTransient signals a retryable provider failure (5xx, connection reset).
	ErrSourceTransient = errors.New("source temporarily unavailable")
	// ErrSourceRejected signals a non-retryable 4xx other than auth and quota.
	ErrSourceRejected = errors.New("source rejected request")
	// ErrUnexpectedSchema signals a provider payload that does not match the expected shape.
	ErrUnexpectedSchema = errors.New("unexpected provider response schema")
	// ErrNoResults signals a successful call that produced nothing usable.
	ErrNoResults = errors.New("no results")

	// ErrMalformedRecord signals a record that cannot enter the corpus.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrExtractionValidation signals model output that failed JSON, schema or citation checks.
	ErrExtractionValidation = errors.New("extraction validation failed")
	// ErrModelProvider signals a language-model provider failure.
	ErrModelProvider = errors.New("model provider error")
	// ErrModelAuth signals rejected model credentials.
	ErrModelAuth = errors.New("model provider authentication failed")
	// ErrModelQuota signals an exhausted model quota or token budget.
	ErrModelQuota = errors.New("model quota exceeded")
)

// StatusError is a non-2xx answer from an external provider.
// Sentinel overrides the status-based classification when set.
type StatusError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Detail     string
	Sentinel   error
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	if e.Sentinel != nil {
		return e.Sentinel
	}
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrSourceAuth
	case e.StatusCode == http.StatusPaymentRequired:
		return ErrSourceQuota
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode >= 500:
		return ErrSourceTransient
	default:
		return ErrSourceRejected
	}
}

// FailureKind is the typed reason recorded for a source that produced no records.
type FailureKind string

const (
	FailureUnavailable      FailureKind = "unavailable"
	FailureAuth             FailureKind = "auth"
	FailureQuota            FailureKind = "quota"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureEmpty            FailureKind = "empty"
	FailureTimeout          FailureKind = "timeout"
	FailureTransient        FailureKind = "transient"
	FailureRejected         FailureKind = "rejected"
	FailureUnexpectedSchema FailureKind = "unexpected_schema"
	FailureUnknown          FailureKind = "unknown"
)

// Expected reports whether the kind belongs to the anticipated failure classes.
// Only schema violations and unknown defects are unexpected.
func (k FailureKind) Expected() bool {
	return k != FailureUnexpectedSchema && k != FailureUnknown
}

// KindOf classifies an adapter error. Order matters: context errors win over
// whatever the last attempt returned.
func KindOf(err error) FailureKind {
	var se *SourceError
	if errors.As(err, &se) && se.Kind != "" {
		return se.Kind
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTimeout
	case errors.Is(err, ErrSourceUnavailable):
		return FailureUnavailable
	case errors.Is(err, ErrSourceAuth):
		return FailureAuth
	case errors.Is(err, ErrSourceQuota):
		return FailureQuota
	case errors.Is(err, ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, ErrNoResults):
		return FailureEmpty
	case errors.Is(err, ErrSourceTransient):
		return FailureTransient
	case errors.Is(err, ErrSourceRejected):
		return FailureRejected
	case errors.Is(err, ErrUnexpectedSchema):
		return FailureUnexpectedSchema
	default:
		return FailureUnknown
	}
}

// SourceError is the single error type a Fetcher returns.
type SourceError struct {
	Source   Source
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError classifies err and wraps it for the given source.
func NewSourceError(src Source, attempts int, err error) *SourceError {
	return &SourceError{Source: src, Kind: KindOf(err), Attempts: attempts, Err: err}
}

// ExtractionKind separates validation failures from provider failures.
type ExtractionKind string

const (
	ExtractionValidation ExtractionKind = "validation"
	ExtractionProvider   ExtractionKind = "provider"
)

// ExtractionError is the terminal error of the extraction stage.
type ExtractionError struct {
	Kind     ExtractionKind
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s failure after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is match the stage-level sentinels by kind.
func (e *ExtractionError) Is(target error) bool {
	switch target {
	case ErrExtractionValidation:
		return e.Kind == ExtractionValidation
	case ErrModelProvider:
		return e.Kind == ExtractionProvider
	}
	return false
}
