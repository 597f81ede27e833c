package domain

import "time"

// RunState is a stage of the run state machine.
type RunState string

const (
	StatePending     RunState = "PENDING"
	StateFetching    RunState = "FETCHING"
	StateAggregating RunState = "AGGREGATING"
	StateExtracting  RunState = "EXTRACTING"
	StateDone        RunState = "DONE"
	StateFailed      RunState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// SourceOutcome is the per-source result bucket.
type SourceOutcome string

const (
	OutcomeSucceeded SourceOutcome = "succeeded"
	OutcomeFailed    SourceOutcome = "failed"
)

// SourceStatus is the diagnostic record of one adapter in one run.
type SourceStatus struct {
	Source    Source        `json:"source"`
	Outcome   SourceOutcome `json:"outcome"`
	Kind      FailureKind   `json:"kind,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Records   int           `json:"records"`
	Attempts  int           `json:"attempts,omitempty"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

// RunError describes why a run ended in FAILED.
type RunError struct {
	Stage   RunState `json:"stage"`
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
}

// RunReport is the JSON handoff to presentation and automation consumers.
// Slices are never nil so they serialize as [].
type RunReport struct {
	RunID            string             `json:"run_id"`
	Query            string             `json:"query"`
	State            RunState           `json:"state"`
	StartedAt        time.Time          `json:"started_at"`
	SourcesAttempted []Source           `json:"sources_attempted"`
	SourcesSucceeded []Source           `json:"sources_succeeded"`
	SourcesFailed    []Source           `json:"sources_failed"`
	SourceStatuses   []SourceStatus     `json:"source_statuses"`
	CorpusSize       int                `json:"corpus_size"`
	Corpus           []CorpusEntry      `json:"corpus"`
	CorpusStats      CorpusStats        `json:"corpus_stats"`
	Findings         []PainPointFinding `json:"findings"`
	Narrative        string             `json:"narrative"`
	ContentWarnings  []string           `json:"content_warnings,omitempty"`
	Extraction       *ExtractionMeta    `json:"extraction,omitempty"`
	ElapsedMS        int64              `json:"elapsed_ms"`
	Partial          bool               `json:"partial"`
	Error            *RunError          `json:"error,omitempty"`
}

// ExtractionMeta carries model bookkeeping without the findings themselves.
type ExtractionMeta struct {
	Model           string     `json:"model,omitempty"`
	PromptVersion   string     `json:"prompt_version"`
	RecordsInPrompt int        `json:"records_in_prompt"`
	RepairAttempted bool       `json:"repair_attempted"`
	Usage           TokenUsage `json:"usage"`
}

// NoFindings reports the "no pain points found" state of a finished run.
func (r RunReport) NoFindings() bool {
	return r.State == StateDone && len(r.Findings) == 0
}
