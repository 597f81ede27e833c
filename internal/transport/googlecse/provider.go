// Package googlecse searches the web through the Google Custom Search JSON API.
package googlecse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/transport/httpx"
)

const (
	defaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	resultKind     = "customsearch#result"

	// HardLimit is the maximum "num" the API accepts per request.
	HardLimit = 10
)

// Config holds Custom Search credentials.
type Config struct {
	APIKey     string
	CX         string
	BaseURL    string
	HTTPClient *http.Client
}

// Provider implements source.Provider for Google Custom Search.
type Provider struct {
	cfg Config
	hc  *http.Client
}

// New creates a Google Custom Search provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(15 * time.Second)
	}
	return &Provider{cfg: cfg, hc: hc}
}

// Source implements source.Provider.
func (p *Provider) Source() domain.Source { return domain.SourceGoogle }

// HardLimit implements source.Provider.
func (p *Provider) HardLimit() int { return HardLimit }

// Configured implements source.Provider.
func (p *Provider) Configured() error {
	if p.cfg.APIKey == "" || p.cfg.CX == "" {
		return fmt.Errorf("google api_key and cx are required: %w", domain.ErrSourceUnavailable)
	}
	return nil
}

// Scopes implements source.Provider. Custom Search has a single scope.
func (p *Provider) Scopes(domain.FetchConstraints) []string { return []string{""} }

type searchResponse struct {
	Kind  string `json:"kind"`
	Items []item `json:"items"`
}

type item struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	HTMLTitle   string `json:"htmlTitle"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
	Snippet     string `json:"snippet"`
	HTMLSnippet string `json:"htmlSnippet"`
	CacheID     string `json:"cacheId"`
	Pagemap     struct {
		Metatags []map[string]string `json:"metatags"`
	} `json:"pagemap"`
}

type rawItem struct {
	DisplayLink string `json:"display_link,omitempty"`
	Position    int    `json:"position"`
}

// Search implements source.Provider.
func (p *Provider) Search(
	ctx context.Context, query, _ string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	num := min(max(c.PerScopeLimit, 1), HardLimit)

	q := url.Values{}
	q.Set("key", p.cfg.APIKey)
	q.Set("cx", p.cfg.CX)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(num))
	if dr := DateRestrict(c.TimeFilter); dr != "" {
		q.Set("dateRestrict", dr)
	}
	if c.Language != "" {
		q.Set("lr", "lang_"+c.Language)
	}

	var resp searchResponse
	if err := httpx.GetJSON(ctx, p.hc, "google", p.cfg.BaseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("custom search: %w", classify(err))
	}
	if resp.Kind != "" && resp.Kind != "customsearch#search" {
		return nil, fmt.Errorf("custom search: response kind %q: %w", resp.Kind, domain.ErrUnexpectedSchema)
	}

	out := make([]domain.NormalizedRecord, 0, len(resp.Items))
	for i, it := range resp.Items {
		if it.Kind != resultKind || it.Link == "" {
			continue
		}
		id := it.CacheID
		if id == "" {
			id = it.Link
		}
		title := it.Title
		if title == "" {
			title = httpx.PlainText(it.HTMLTitle)
		}
		snippet := httpx.PlainText(it.HTMLSnippet)
		if snippet == "" {
			snippet = httpx.PlainText(it.Snippet)
		}
		raw, _ := json.Marshal(rawItem{DisplayLink: it.DisplayLink, Position: i + 1})

		out = append(out, domain.NormalizedRecord{
			ID:              id,
			Source:          domain.SourceGoogle,
			Title:           strings.TrimSpace(title),
			Body:            snippet,
			URL:             it.Link,
			CreatedAt:       publishedAt(it.Pagemap.Metatags),
			EngagementScore: float64(num - i),
			Raw:             raw,
		})
	}
	return out, nil
}

// DateRestrict maps a time filter onto the API's dateRestrict syntax.
// The API has no hour granularity, so "hour" widens to one day.
func DateRestrict(tf domain.TimeFilter) string {
	switch tf {
	case domain.TimeHour, domain.TimeDay:
		return "d1"
	case domain.TimeWeek:
		return "w1"
	case domain.TimeMonth:
		return "m1"
	case domain.TimeYear:
		return "y1"
	}
	return ""
}

// classify refines the status-based mapping with the reason Google puts in
// the error body: quota and rate limits come back as 403, a bad key as 400.
func classify(err error) error {
	var se *domain.StatusError
	if !errors.As(err, &se) {
		return err
	}
	d := se.Detail
	switch {
	case strings.Contains(d, "dailyLimitExceeded"), strings.Contains(d, "quotaExceeded"):
		se.Sentinel = domain.ErrSourceQuota
	case strings.Contains(d, "rateLimitExceeded"), strings.Contains(d, "userRateLimitExceeded"):
		se.Sentinel = domain.ErrRateLimited
	case se.StatusCode == http.StatusBadRequest &&
		(strings.Contains(d, "API_KEY_INVALID") || strings.Contains(d, "API key not valid")):
		se.Sentinel = domain.ErrSourceAuth
	}
	return err
}

var metaDateKeys = []string{
	"article:published_time", "date", "publish-date", "pubdate", "article:modified_time",
}

var metaDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
}

// publishedAt returns the first parseable publication date from page metatags.
func publishedAt(tags []map[string]string) *time.Time {
	for _, key := range metaDateKeys {
		for _, m := range tags {
			v := strings.TrimSpace(m[key])
			if v == "" {
				continue
			}
			for _, layout := range metaDateLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return domain.UTCTime(t)
				}
			}
		}
	}
	return nil
}
