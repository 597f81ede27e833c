package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KeyPrefix namespaces every key painradar writes to the KV store.
const KeyPrefix = "painradar:"

// Source names one external content provider.
type Source string

const (
	SourceReddit     Source = "reddit"
	SourceGoogle     Source = "google"
	SourceTwitter    Source = "twitter"
	SourceDuckDuckGo Source = "duckduckgo"
	SourceHackerNews Source = "hackernews"
)

// KnownSources returns every implemented provider in default priority order.
func KnownSources() []Source {
	return []Source{SourceReddit, SourceGoogle, SourceTwitter, SourceHackerNews, SourceDuckDuckGo}
}

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range KnownSources() {
		if k == src {
			return src, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownSource)
}

// NormalizedRecord is the common shape every adapter produces.
// Records are immutable once built; later stages annotate copies.
type NormalizedRecord struct {
	ID              string          `json:"id"`
	Source          Source          `json:"source"`
	Title           string          `json:"title"`
	Body            string          `json:"body,omitempty"`
	URL             string          `json:"url"`
	Author          string          `json:"author,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	EngagementScore float64         `json:"engagement_score"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}

// Key identifies a record across sources.
func (r NormalizedRecord) Key() string {
	return string(r.Source) + ":" + r.ID
}

// Validate reports why a record cannot be aggregated.
func (r NormalizedRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("missing id: %w", ErrMalformedRecord)
	case r.Source == "":
		return fmt.Errorf("record %s: missing source: %w", r.ID, ErrMalformedRecord)
	case strings.TrimSpace(r.URL) == "":
		return fmt.Errorf("record %s: missing url: %w", r.Key(), ErrMalformedRecord)
	case strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "":
		return fmt.Errorf("record %s: empty title and body: %w", r.Key(), ErrMalformedRecord)
	case r.CreatedAt != nil && r.CreatedAt.Location() != time.UTC:
		return fmt.Errorf("record %s: created_at not in UTC: %w", r.Key(), ErrMalformedRecord)
	}
	return nil
}

// UTCTime returns a pointer to t converted to UTC, or nil for the zero time.
func UTCTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
