package reddit

import (
	"html"
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	emphasisRe     = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__|\*(.+?)\*|_(.+?)_`)
	inlineCodeRe   = regexp.MustCompile("`([^`]+)`")
	userMentionRe  = regexp.MustCompile(`\bu/([A-Za-z0-9_-]+)`)
	multiSpaceRe   = regexp.MustCompile(`\s+`)
)

// SanitizeText flattens Reddit markdown into plain prompt-friendly text.
func SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	text := html.UnescapeString(raw)
	text = markdownLinkRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := emphasisRe.FindStringSubmatch(m)
		for _, g := range sub[1:] {
			if g != "" {
				return g
			}
		}
		return m
	})
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = userMentionRe.ReplaceAllString(text, "@$1")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// genericTerms are words that match too many unrelated posts to prove relevance.
var genericTerms = map[string]struct{}{
	"api": {}, "apis": {}, "issue": {}, "issues": {}, "problem": {}, "problems": {},
	"error": {}, "errors": {}, "bug": {}, "bugs": {}, "help": {}, "question": {},
	"code": {}, "coding": {}, "dev": {}, "developer": {}, "developers": {},
	"calling": {}, "call": {}, "use": {}, "using": {}, "used": {},
	"pain": {}, "point": {}, "points": {}, "report": {}, "reports": {},
	"when": {}, "how": {}, "what": {}, "why": {}, "the": {}, "and": {}, "for": {},
}

// relevance scores posts against the query: distinctive terms weigh 3,
// generic terms weigh 1.
type relevance struct {
	primary []string
	generic []string
}

func newRelevance(query string) relevance {
	var r relevance
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) <= 2 {
			continue
		}
		if _, ok := genericTerms[term]; ok {
			r.generic = append(r.generic, term)
		} else {
			r.primary = append(r.primary, term)
		}
	}
	return r
}

func (r relevance) relevant(title, body string) bool {
	if len(r.primary) == 0 && len(r.generic) == 0 {
		return true
	}
	text := strings.ToLower(title + " " + body)
	score := 0
	for _, t := range r.primary {
		if strings.Contains(text, t) {
			score += 3
		}
	}
	for _, t := range r.generic {
		if strings.Contains(text, t) {
			score++
		}
	}
	if len(r.primary) > 0 {
		return score >= 3
	}
	return score > 0
}
