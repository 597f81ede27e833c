// Package render turns a RunReport into human-readable output.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// NoFindingsText is shown for a finished run without pain points.
const NoFindingsText = "No pain points found."

// maxCellWidth truncates long table cells so rows stay readable.
const maxCellWidth = 60

// JSON renders the report as indented JSON.
func JSON(report domain.RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders the report. Partial runs get a warning banner, failed runs
// an error block, and finished runs without findings a "no pain points" state.
func Markdown(report domain.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Pain points: %s\n\n", report.Query)
	fmt.Fprintf(&b, "Run `%s` · %s · %d records · %s\n\n",
		report.RunID, report.State, report.CorpusSize, formatElapsed(report.ElapsedMS))

	if report.Partial {
		fmt.Fprintf(&b, "> **Warning:** partial results, %d of %d sources failed (%s).\n\n",
			len(report.SourcesFailed), len(report.SourcesAttempted), failedSummary(report))
	}

	switch {
	case report.State == domain.StateFailed:
		writeFailure(&b, report)
	case report.NoFindings():
		b.WriteString("## Findings\n\n")
		b.WriteString(NoFindingsText + "\n\n")
	default:
		writeFindings(&b, report)
	}

	if strings.TrimSpace(report.Narrative) != "" && report.State == domain.StateDone && len(report.Findings) > 0 {
		b.WriteString("## Summary\n\n")
		b.WriteString(strings.TrimSpace(report.Narrative) + "\n\n")
	}

	if len(report.ContentWarnings) > 0 {
		b.WriteString("## Content warnings\n\n")
		for _, w := range report.ContentWarnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	writeSources(&b, report)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeFailure(b *strings.Builder, report domain.RunReport) {
	b.WriteString("## Run failed\n\n")
	if report.Error == nil {
		b.WriteString("The run failed without diagnostic detail.\n\n")
		return
	}
	fmt.Fprintf(b, "Stage `%s`, kind `%s`: %s\n\n", report.Error.Stage, report.Error.Kind, report.Error.Message)
}

func writeFindings(b *strings.Builder, report domain.RunReport) {
	b.WriteString("## Findings\n\n")

	rows := make([][]string, 0, len(report.Findings))
	for i, f := range report.Findings {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncate(f.Name, maxCellWidth),
			string(f.Severity),
			fmt.Sprintf("%d", len(f.Evidence)),
			truncate(evidenceSources(f.Evidence), maxCellWidth),
		})
	}
	for _, line := range Table([]string{"#", "Pain point", "Severity", "Evidence", "Sources"}, rows) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	for i, f := range report.Findings {
		fmt.Fprintf(b, "### %d. %s (%s)\n\n", i+1, f.Name, f.Severity)
		if f.Description != "" {
			b.WriteString(f.Description + "\n\n")
		}
		for _, q := range f.ExampleQuotes {
			fmt.Fprintf(b, "> %s\n", q)
		}
		if len(f.ExampleQuotes) > 0 {
			b.WriteString("\n")
		}
		for _, c := range f.Evidence {
			fmt.Fprintf(b, "- [R%d] %s: %s\n", c.Rank, c.Source, c.URL)
		}
		b.WriteString("\n")
	}
}

func writeSources(b *strings.Builder, report domain.RunReport) {
	if len(report.SourceStatuses) == 0 {
		return
	}
	b.WriteString("## Sources\n\n")
	rows := make([][]string, 0, len(report.SourceStatuses))
	for _, st := range report.SourceStatuses {
		rows = append(rows, []string{
			string(st.Source),
			string(st.Outcome),
			string(st.Kind),
			fmt.Sprintf("%d", st.Records),
			formatElapsed(st.ElapsedMS),
		})
	}
	for _, line := range Table([]string{"Source", "Outcome", "Kind", "Records", "Elapsed"}, rows) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

// Table renders a markdown table with columns padded to equal display width,
// so wide runes (CJK, emoji) line up in a terminal.
func Table(header []string, rows [][]string) []string {
	widths := make([]int, len(header))
	measure := func(cells []string) {
		for i := 0; i < len(cells) && i < len(widths); i++ {
			if w := runewidth.StringWidth(escapeCell(cells[i])); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(header)
	for _, r := range rows {
		measure(r)
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	line := func(cells []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cell, w))
			sb.WriteString(" |")
		}
		return sb.String()
	}

	out := make([]string, 0, len(rows)+2)
	out = append(out, line(header))
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	out = append(out, line(sep))
	for _, r := range rows {
		out = append(out, line(r))
	}
	return out
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func evidenceSources(cs []domain.Citation) string {
	seen := map[domain.Source]struct{}{}
	var names []string
	for _, c := range cs {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		names = append(names, string(c.Source))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func failedSummary(report domain.RunReport) string {
	parts := make([]string, 0, len(report.SourcesFailed))
	for _, st := range report.SourceStatuses {
		if st.Outcome == domain.OutcomeFailed {
			parts = append(parts, fmt.Sprintf("%s: %s", st.Source, st.Kind))
		}
	}
	return strings.Join(parts, ", ")
}

func formatElapsed(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(10 * time.Millisecond).String()
}
