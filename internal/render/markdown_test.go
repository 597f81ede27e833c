package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/kailas-cloud/painradar/internal/domain"
)

func baseReport() domain.RunReport {
	return domain.RunReport{
		RunID:            "run-1",
		Query:            "crm onboarding",
		State:            domain.StateDone,
		SourcesAttempted: []domain.Source{domain.SourceReddit, domain.SourceGoogle},
		SourcesSucceeded: []domain.Source{domain.SourceReddit, domain.SourceGoogle},
		SourcesFailed:    []domain.Source{},
		SourceStatuses: []domain.SourceStatus{
			{Source: domain.SourceReddit, Outcome: domain.OutcomeSucceeded, Records: 4, ElapsedMS: 1200},
			{Source: domain.SourceGoogle, Outcome: domain.OutcomeSucceeded, Records: 3, ElapsedMS: 800},
		},
		CorpusSize: 7,
		Corpus:     []domain.CorpusEntry{},
		Findings: []domain.PainPointFinding{{
			Name:          "Slow onboarding",
			Description:   "Setup takes weeks.",
			Severity:      domain.SeverityHigh,
			Evidence:      []domain.Citation{{Source: domain.SourceReddit, URL: "https://r.example/1", Rank: 0}},
			ExampleQuotes: []string{"it took us a month"},
		}},
		Narrative: "Onboarding is the main complaint [R0].",
		ElapsedMS: 4321,
	}
}

func TestMarkdown_Findings(t *testing.T) {
	out := Markdown(baseReport())

	for _, want := range []string{
		"# Pain points: crm onboarding",
		"## Findings",
		"| 1 ",
		"### 1. Slow onboarding (high)",
		"> it took us a month",
		"- [R0] reddit: https://r.example/1",
		"## Summary",
		"## Sources",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Warning") {
		t.Error("complete run must not carry a partial banner")
	}
}

func TestMarkdown_PartialBanner(t *testing.T) {
	r := baseReport()
	r.Partial = true
	r.SourcesSucceeded = []domain.Source{domain.SourceReddit}
	r.SourcesFailed = []domain.Source{domain.SourceGoogle}
	r.SourceStatuses[1] = domain.SourceStatus{Source: domain.SourceGoogle, Outcome: domain.OutcomeFailed, Kind: domain.FailureQuota}

	out := Markdown(r)
	if !strings.Contains(out, "partial results, 1 of 2 sources failed (google: quota)") {
		t.Errorf("expected partial banner, got:\n%s", out)
	}
}

func TestMarkdown_NoFindings(t *testing.T) {
	r := baseReport()
	r.Findings = []domain.PainPointFinding{}
	r.Narrative = NoFindingsText
	r.CorpusSize = 0

	out := Markdown(r)
	if !strings.Contains(out, NoFindingsText) {
		t.Errorf("expected no-findings state, got:\n%s", out)
	}
	if strings.Contains(out, "## Summary") || strings.Contains(out, "| Pain point") {
		t.Errorf("no-findings run must not render a findings table or summary:\n%s", out)
	}
}

func TestMarkdown_Failed(t *testing.T) {
	r := baseReport()
	r.State = domain.StateFailed
	r.Findings = []domain.PainPointFinding{}
	r.Error = &domain.RunError{Stage: domain.StateExtracting, Kind: "validation", Message: "findings missing"}

	out := Markdown(r)
	if !strings.Contains(out, "## Run failed") || !strings.Contains(out, "kind `validation`: findings missing") {
		t.Errorf("expected failure block, got:\n%s", out)
	}
}

func TestTable_AlignsByDisplayWidth(t *testing.T) {
	lines := Table([]string{"Name", "Sev"}, [][]string{
		{"日本語の問題", "high"},
		{"ascii", "low"},
		{"a|b", "medium"},
	})
	if len(lines) != 5 {
		t.Fatalf("lines: got %d", len(lines))
	}
	w := runewidth.StringWidth(lines[0])
	for i, l := range lines {
		if got := runewidth.StringWidth(l); got != w {
			t.Errorf("line %d width %d, want %d: %q", i, got, w, l)
		}
	}
	if !strings.Contains(lines[4], `a\|b`) {
		t.Errorf("pipe must be escaped: %q", lines[4])
	}
	if !strings.HasPrefix(lines[1], "| ---") {
		t.Errorf("separator: %q", lines[1])
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	if got := runewidth.StringWidth(truncate(long, 10)); got != 10 {
		t.Errorf("width: got %d", got)
	}
	if truncate("short", 10) != "short" {
		t.Error("short strings must be kept")
	}
}

func TestJSON_EmptySlices(t *testing.T) {
	r := baseReport()
	r.Findings = []domain.PainPointFinding{}

	data, err := JSON(r)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := m["findings"].([]any); !ok || len(f) != 0 {
		t.Errorf("findings must be [], got %v", m["findings"])
	}
}
