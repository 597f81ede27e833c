package domain

import (
	"fmt"
	"strings"
)

// Severity is the ordinal weight of a pain point.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Weight orders severities: high > medium > low.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Citation points at one corpus record.
type Citation struct {
	Source Source `json:"source"`
	URL    string `json:"url"`
	Rank   int    `json:"rank"`
}

// PainPointFinding is one structured output item.
type PainPointFinding struct {
	Name          string     `json:"name,omitempty"`
	Description   string     `json:"description"`
	Severity      Severity   `json:"severity"`
	Evidence      []Citation `json:"evidence"`
	ExampleQuotes []string   `json:"example_quotes,omitempty"`
}

// TokenUsage is the model token accounting of one extraction.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage across attempts.
func (u *TokenUsage) Add(o TokenUsage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// ExtractionResult is the validated output of the extractor.
type ExtractionResult struct {
	Findings        []PainPointFinding `json:"findings"`
	Narrative       string             `json:"narrative"`
	ContentWarnings []string           `json:"content_warnings,omitempty"`
	Model           string             `json:"model,omitempty"`
	PromptVersion   string             `json:"prompt_version"`
	RecordsInPrompt int                `json:"records_in_prompt"`
	RepairAttempted bool               `json:"repair_attempted"`
	Usage           TokenUsage         `json:"usage"`
}
