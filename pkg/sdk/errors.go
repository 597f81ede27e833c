package painradar

import (
	"errors"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery         = domain.ErrInvalidQuery
	ErrInvalidOptions       = domain.ErrInvalidOptions
	ErrUnknownSource        = domain.ErrUnknownSource
	ErrSourceUnavailable    = domain.ErrSourceUnavailable
	ErrSourceAuth           = domain.ErrSourceAuth
	ErrSourceQuota          = domain.ErrSourceQuota
	ErrRateLimited          = domain.ErrRateLimited
	ErrExtractionValidation = domain.ErrExtractionValidation
	ErrModelProvider        = domain.ErrModelProvider
	ErrModelAuth            = domain.ErrModelAuth
	ErrModelQuota           = domain.ErrModelQuota
)

// ErrNoCompleter is returned by New when no language model is configured.
var ErrNoCompleter = errors.New("painradar: language model required (use WithOpenAI, WithGemini or WithCompleter)")
