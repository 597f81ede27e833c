package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// MaxQuoteRunes caps a single example quote.
const MaxQuoteRunes = 280

var (
	fenceRe  = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
	markerRe = regexp.MustCompile(`\[R(\d+)\]`)
)

// parsed is a validated model answer.
type parsed struct {
	findings  []domain.PainPointFinding
	narrative string
	warnings  []string
}

// validate checks JSON syntax, schema types and citations against the
// prompt slice. All problems are reported together so the repair prompt can
// name them.
func validate(content string, slice []domain.CorpusEntry, maxFindings int) (parsed, error) {
	content = stripFences(content)

	var resp response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return parsed{}, fmt.Errorf("response is not valid JSON of the expected shape: %v: %w", err, domain.ErrExtractionValidation)
	}
	if resp.Findings == nil {
		return parsed{}, fmt.Errorf(`missing "findings" array: %w`, domain.ErrExtractionValidation)
	}

	byURL := make(map[string]int, len(slice))
	for i, e := range slice {
		byURL[normalizeURL(e.URL)] = i
	}

	var problems []string
	findings := make([]domain.PainPointFinding, 0, len(*resp.Findings))
	for i, rf := range *resp.Findings {
		f, errs := convertFinding(rf, slice, byURL)
		for _, e := range errs {
			problems = append(problems, fmt.Sprintf("finding %d: %s", i, e))
		}
		if len(errs) == 0 {
			findings = append(findings, f)
		}
	}
	if len(problems) > 0 {
		return parsed{}, fmt.Errorf("%s: %w", strings.Join(problems, "; "), domain.ErrExtractionValidation)
	}

	// Markers are checked against every valid finding, before the cap drops any.
	cited := make(map[int]struct{})
	for _, f := range findings {
		for _, c := range f.Evidence {
			cited[c.Rank] = struct{}{}
		}
	}
	narrative := strings.TrimSpace(resp.Narrative)
	for _, m := range markerRe.FindAllStringSubmatch(narrative, -1) {
		n, _ := strconv.Atoi(m[1])
		if _, ok := cited[n]; !ok {
			problems = append(problems, fmt.Sprintf("narrative references [R%d] which no finding cites", n))
		}
	}
	if len(problems) > 0 {
		return parsed{}, fmt.Errorf("%s: %w", strings.Join(problems, "; "), domain.ErrExtractionValidation)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Weight() > findings[j].Severity.Weight()
	})
	if maxFindings > 0 && len(findings) > maxFindings {
		findings = findings[:maxFindings]
	}

	var warnings []string
	for _, w := range resp.ContentWarnings {
		if w = strings.TrimSpace(w); w != "" {
			warnings = append(warnings, w)
		}
	}
	return parsed{findings: findings, narrative: narrative, warnings: warnings}, nil
}

func convertFinding(rf rawFinding, slice []domain.CorpusEntry, byURL map[string]int) (domain.PainPointFinding, []string) {
	var errs []string

	desc := strings.TrimSpace(rf.Description)
	if desc == "" {
		desc = strings.TrimSpace(rf.Name)
	}
	if desc == "" {
		errs = append(errs, "empty description")
	}
	sev, err := domain.ParseSeverity(rf.Severity)
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(rf.Evidence) == 0 {
		errs = append(errs, "no evidence")
	}

	var evidence []domain.Citation
	seen := make(map[int]struct{}, len(rf.Evidence))
	for _, c := range rf.Evidence {
		rank, err := resolveCitation(c, slice, byURL)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if _, dup := seen[rank]; dup {
			continue
		}
		seen[rank] = struct{}{}
		e := slice[rank]
		evidence = append(evidence, domain.Citation{Source: e.Source, URL: e.URL, Rank: e.Rank})
	}

	var quotes []string
	for _, q := range rf.ExampleQuotes {
		if q = strings.TrimSpace(q); q != "" {
			quotes = append(quotes, truncateRunes(q, MaxQuoteRunes))
		}
	}

	return domain.PainPointFinding{
		Name:          strings.TrimSpace(rf.Name),
		Description:   desc,
		Severity:      sev,
		Evidence:      evidence,
		ExampleQuotes: quotes,
	}, errs
}

var errUnresolved = errors.New("citation does not resolve to a source document")

// resolveCitation maps a citation onto an index of the prompt slice. A ref
// wins; a given URL must then match it. Without a ref the URL alone decides.
func resolveCitation(c rawCitation, slice []domain.CorpusEntry, byURL map[string]int) (int, error) {
	refStr := strings.Trim(strings.TrimSpace(c.Ref), "[]")
	url := strings.TrimSpace(c.URL)

	if refStr != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(refStr), "R"))
		if err != nil || n < 0 || n >= len(slice) {
			return 0, fmt.Errorf("ref %q: %w", c.Ref, errUnresolved)
		}
		if url != "" && normalizeURL(url) != normalizeURL(slice[n].URL) {
			return 0, fmt.Errorf("ref %q url %q does not match %q: %w", c.Ref, url, slice[n].URL, errUnresolved)
		}
		return n, nil
	}
	if url == "" {
		return 0, fmt.Errorf("citation has neither ref nor url: %w", errUnresolved)
	}
	if n, ok := byURL[normalizeURL(url)]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("url %q: %w", url, errUnresolved)
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}
