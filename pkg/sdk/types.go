package painradar

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// Source names a content provider.
type Source = domain.Source

// Source constants.
const (
	SourceReddit     = domain.SourceReddit
	SourceGoogle     = domain.SourceGoogle
	SourceTwitter    = domain.SourceTwitter
	SourceDuckDuckGo = domain.SourceDuckDuckGo
	SourceHackerNews = domain.SourceHackerNews
)

// TimeFilter restricts records by recency.
type TimeFilter = domain.TimeFilter

// Time filter constants.
const (
	TimeHour  = domain.TimeHour
	TimeDay   = domain.TimeDay
	TimeWeek  = domain.TimeWeek
	TimeMonth = domain.TimeMonth
	TimeYear  = domain.TimeYear
	TimeAll   = domain.TimeAll
)

// RunState is a stage of a run.
type RunState = domain.RunState

// Run state constants.
const (
	StatePending     = domain.StatePending
	StateFetching    = domain.StateFetching
	StateAggregating = domain.StateAggregating
	StateExtracting  = domain.StateExtracting
	StateDone        = domain.StateDone
	StateFailed      = domain.StateFailed
)

// Report and its parts as produced by a run.
type (
	RunReport      = domain.RunReport
	SourceStatus   = domain.SourceStatus
	RunError       = domain.RunError
	Finding        = domain.PainPointFinding
	Citation       = domain.Citation
	Severity       = domain.Severity
	CorpusEntry    = domain.CorpusEntry
	ProgressEvent  = domain.ProgressEvent
	FailureKind    = domain.FailureKind
	TokenUsage     = domain.TokenUsage
	ExtractionMeta = domain.ExtractionMeta
)

// Severity constants.
const (
	SeverityLow    = domain.SeverityLow
	SeverityMedium = domain.SeverityMedium
	SeverityHigh   = domain.SeverityHigh
)

// CompletionRequest is one structured-output prompt sent to a Completer.
type CompletionRequest = domain.CompletionRequest

// CompletionResult is the raw model answer with its token usage.
type CompletionResult = domain.CompletionResult

// Completer is a language model that answers a prompt with JSON text.
// Implement it to bring a provider the SDK does not ship.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// RunOption narrows a single run.
type RunOption func(*runRequest)

type runRequest struct {
	sources    []string
	limits     map[string]int
	timeFilter string
}

// Sources restricts the run to the named sources. Default: every enabled source.
func Sources(names ...Source) RunOption {
	return func(r *runRequest) {
		for _, n := range names {
			r.sources = append(r.sources, string(n))
		}
	}
}

// Limit caps the number of records requested from one source.
func Limit(src Source, n int) RunOption {
	return func(r *runRequest) {
		if r.limits == nil {
			r.limits = make(map[string]int)
		}
		r.limits[string(src)] = n
	}
}

// Within sets the recency window for every source.
func Within(tf TimeFilter) RunOption {
	return func(r *runRequest) {
		r.timeFilter = string(tf)
	}
}

func (r *runRequest) options() (domain.RunOptions, error) {
	return domain.ParseRunOptions(r.sources, r.limits, r.timeFilter)
}

// SourceInfo describes a known source and whether this client can use it.
type SourceInfo struct {
	Source     Source
	Registered bool
	Available  bool
	Reason     string
}
