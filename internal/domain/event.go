package domain

import "time"

// EventType tells the consumer how to read a ProgressEvent.
type EventType string

const (
	EventStage  EventType = "stage"
	EventSource EventType = "source"
)

// ProgressEvent is emitted per stage transition and per adapter completion.
type ProgressEvent struct {
	RunID     string        `json:"run_id"`
	Type      EventType     `json:"type"`
	State     RunState      `json:"state"`
	Source    Source        `json:"source,omitempty"`
	Outcome   SourceOutcome `json:"outcome,omitempty"`
	Kind      FailureKind   `json:"kind,omitempty"`
	Records   int           `json:"records,omitempty"`
	ElapsedMS int64         `json:"elapsed_ms"`
	At        time.Time     `json:"at"`
}
