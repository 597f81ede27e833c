package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/painradar/internal/domain"
)

const systemPrompt = `You are a senior user-research analyst. You read community posts and search results
and extract the concrete problems people report. Be empathetic to the people writing,
but never speculate beyond what the documents say. Every claim must be backed by the
documents you cite. If any document contains harmful, hateful or explicit content, do not
repeat it; mention it briefly in content_warnings instead.`

const extractionSteps = `EXTRACTION STEPS:
1. Read every source document below. Each starts with its reference tag, e.g. [R0].
2. Group documents that describe the same underlying problem into one finding.
3. For each finding write a short name, a one or two sentence description, and list
   every supporting document as evidence using its ref and its exact URL.
4. Assign severity with this rubric:
   - high: reported by 3 or more distinct authors or sources
   - medium: reported by 2 distinct authors or sources
   - low: reported once
5. Add up to three short verbatim example quotes (max 280 characters each).
6. Write a narrative summary. You may reference documents as [R<n>], but only
   documents you cited as evidence in some finding.
7. Return an empty findings list if the documents describe no real problems.
   Return at most %d findings, most severe first.`

// prompt is a built request plus the corpus slice it covers.
type prompt struct {
	system string
	user   string
	slice  []domain.CorpusEntry
}

// buildPrompt renders the corpus into a bounded prompt. Records are added in
// rank order until maxChars is reached; the first record is always included.
func buildPrompt(query string, corpus domain.AggregatedCorpus, opts Options) prompt {
	var head strings.Builder
	fmt.Fprintf(&head, "QUERY: %s\n\n", query)
	fmt.Fprintf(&head, extractionSteps, opts.MaxFindings)
	head.WriteString("\n\n")

	var tail strings.Builder
	fmt.Fprintf(&tail, "\nRESPONSE SCHEMA (version %s):\n%s\n", PromptVersion, ResponseSchema)
	tail.WriteString("Respond with a single JSON object that follows the schema. No prose, no code fences.\n")

	budget := opts.MaxPromptChars - head.Len() - tail.Len()
	var docs strings.Builder
	var slice []domain.CorpusEntry
	for _, e := range corpus.Entries {
		block := renderDocument(e, opts.MaxRecordChars)
		if len(slice) > 0 && docs.Len()+len(block) > budget {
			break
		}
		docs.WriteString(block)
		slice = append(slice, e)
	}

	var user strings.Builder
	user.WriteString(head.String())
	fmt.Fprintf(&user, "SOURCE DOCUMENTS (%d of %d):\n\n", len(slice), corpus.Len())
	user.WriteString(docs.String())
	user.WriteString(tail.String())

	return prompt{system: systemPrompt, user: user.String(), slice: slice}
}

func renderDocument(e domain.CorpusEntry, maxChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] source=%s", ref(e.Rank), e.Source)
	if e.Author != "" {
		fmt.Fprintf(&sb, " author=%s", e.Author)
	}
	if e.CreatedAt != nil {
		fmt.Fprintf(&sb, " created=%s", e.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, " engagement=%g", e.EngagementScore)
	if n := len(e.Duplicates); n > 0 {
		fmt.Fprintf(&sb, " also_seen=%d", n)
	}
	fmt.Fprintf(&sb, "\nURL: %s\n", e.URL)
	if e.Title != "" {
		fmt.Fprintf(&sb, "TITLE: %s\n", truncateRunes(e.Title, maxChars))
	}
	if e.Body != "" {
		fmt.Fprintf(&sb, "TEXT: %s\n", truncateRunes(e.Body, maxChars))
	}
	sb.WriteString("\n")
	return sb.String()
}

func ref(rank int) string { return fmt.Sprintf("R%d", rank) }

// repairInstruction is appended to the prompt after an invalid answer.
func repairInstruction(problems error) string {
	return fmt.Sprintf("\nYOUR PREVIOUS RESPONSE WAS REJECTED: %v\n"+
		"Fix every problem listed above. Cite only refs and URLs from SOURCE DOCUMENTS, "+
		"give every finding at least one evidence entry, use severity low, medium or high, "+
		"and respond with the JSON object only.\n", problems)
}

// truncateRunes cuts s to at most n runes, adding an ellipsis when cut.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
