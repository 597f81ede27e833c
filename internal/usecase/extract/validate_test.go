package extract

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/painradar/internal/domain"
)

func TestValidate(t *testing.T) {
	slice := testCorpus(3).Entries

	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, p parsed)
	}{
		{
			name:    "empty findings is valid",
			content: `{"findings": [], "narrative": "nothing here"}`,
			check: func(t *testing.T, p parsed) {
				if len(p.findings) != 0 || p.narrative != "nothing here" {
					t.Errorf("unexpected: %+v", p)
				}
			},
		},
		{
			name:    "missing findings",
			content: `{"narrative": "x"}`,
			wantErr: `missing "findings"`,
		},
		{
			name:    "wrong type",
			content: `{"findings": "none"}`,
			wantErr: "not valid JSON",
		},
		{
			name:    "bad severity",
			content: `{"findings": [{"description": "d", "severity": "critical", "evidence": [{"ref": "R0"}]}]}`,
			wantErr: "unknown severity",
		},
		{
			name:    "no evidence",
			content: `{"findings": [{"description": "d", "severity": "low", "evidence": []}]}`,
			wantErr: "no evidence",
		},
		{
			name:    "ref out of range",
			content: `{"findings": [{"description": "d", "severity": "low", "evidence": [{"ref": "R3"}]}]}`,
			wantErr: "does not resolve",
		},
		{
			name:    "ref with wrong url",
			content: `{"findings": [{"description": "d", "severity": "low", "evidence": [{"ref": "R0", "url": "https://elsewhere.example.com"}]}]}`,
			wantErr: "does not match",
		},
		{
			name:    "url only",
			content: `{"findings": [{"description": "d", "severity": "Medium", "evidence": [{"url": "https://www.reddit.com/r/x/comments/p2"}]}]}`,
			check: func(t *testing.T, p parsed) {
				c := p.findings[0].Evidence[0]
				if c.Rank != 2 || p.findings[0].Severity != domain.SeverityMedium {
					t.Errorf("unexpected citation: %+v", p.findings[0])
				}
			},
		},
		{
			name:    "uncited narrative marker",
			content: `{"findings": [{"description": "d", "severity": "low", "evidence": [{"ref": "R0"}]}], "narrative": "see [R0] and [R2]"}`,
			wantErr: "[R2]",
		},
		{
			name:    "duplicate citations collapse",
			content: `{"findings": [{"description": "d", "severity": "low", "evidence": [{"ref": "R1"}, {"ref": "[R1]"}, {"url": "https://www.reddit.com/r/x/comments/p1/"}]}]}`,
			check: func(t *testing.T, p parsed) {
				if n := len(p.findings[0].Evidence); n != 1 {
					t.Errorf("expected 1 citation, got %d", n)
				}
			},
		},
		{
			name:    "name used when description empty",
			content: `{"findings": [{"name": "Slow payouts", "severity": "low", "evidence": [{"ref": "R0"}]}]}`,
			check: func(t *testing.T, p parsed) {
				if p.findings[0].Description != "Slow payouts" {
					t.Errorf("unexpected description %q", p.findings[0].Description)
				}
			},
		},
		{
			name:    "code fence",
			content: "```json\n{\"findings\": [], \"narrative\": \"\", \"content_warnings\": [\" explicit language \", \"\"]}\n```",
			check: func(t *testing.T, p parsed) {
				if len(p.warnings) != 1 || p.warnings[0] != "explicit language" {
					t.Errorf("unexpected warnings: %q", p.warnings)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := validate(tt.content, slice, 10)
			if tt.wantErr != "" {
				if !errors.Is(err, domain.ErrExtractionValidation) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected validation error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestValidate_MaxFindingsKeepsMostSevere(t *testing.T) {
	content := `{"findings": [
		{"description": "a", "severity": "low", "evidence": [{"ref": "R0"}]},
		{"description": "b", "severity": "high", "evidence": [{"ref": "R1"}]},
		{"description": "c", "severity": "medium", "evidence": [{"ref": "R2"}]}
	], "narrative": "top issue [R1]"}`
	p, err := validate(content, testCorpus(3).Entries, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.findings) != 2 || p.findings[0].Description != "b" || p.findings[1].Description != "c" {
		t.Errorf("unexpected findings: %+v", p.findings)
	}
}

func TestValidate_NarrativeMayCiteFindingDroppedByCap(t *testing.T) {
	content := `{"findings": [
		{"description": "minor", "severity": "low", "evidence": [{"ref": "R0"}]},
		{"description": "main", "severity": "high", "evidence": [{"ref": "R1"}]}
	], "narrative": "minor issue [R0]; main issue [R1]"}`
	p, err := validate(content, testCorpus(2).Entries, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.findings) != 1 || p.findings[0].Description != "main" {
		t.Errorf("unexpected findings: %+v", p.findings)
	}
	if p.narrative != "minor issue [R0]; main issue [R1]" {
		t.Errorf("narrative changed: %q", p.narrative)
	}
}

func TestValidate_NarrativeUncitedRefStillFails(t *testing.T) {
	content := `{"findings": [
		{"description": "main", "severity": "high", "evidence": [{"ref": "R1"}]}
	], "narrative": "see [R0]"}`
	if _, err := validate(content, testCorpus(2).Entries, 1); !errors.Is(err, domain.ErrExtractionValidation) {
		t.Fatalf("expected ErrExtractionValidation, got %v", err)
	}
}

func TestValidate_QuoteTruncation(t *testing.T) {
	long := strings.Repeat("ж", 400)
	content := `{"findings": [{"description": "d", "severity": "low", "evidence": [{"ref": "R0"}], "example_quotes": ["` + long + `"]}]}`
	p, err := validate(content, testCorpus(1).Entries, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(p.findings[0].ExampleQuotes[0]); n != MaxQuoteRunes {
		t.Errorf("expected %d runes, got %d", MaxQuoteRunes, n)
	}
}
