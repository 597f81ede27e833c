// Package hnrss searches Hacker News discussions through the hnrss.org feeds.
package hnrss

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/transport/httpx"
)

const (
	defaultBaseURL = "https://hnrss.org"
	itemURLPrefix  = "https://news.ycombinator.com/item?id="

	// HardLimit is the largest count hnrss serves per feed.
	HardLimit = 100
)

var (
	pointsRe      = regexp.MustCompile(`Points:\s*(\d+)`)
	commentsRe    = regexp.MustCompile(`# Comments:\s*(\d+)`)
	boilerplateRe = regexp.MustCompile(`(Article URL|Comments URL):\s*\S+|Points:\s*\d+|# Comments:\s*\d+`)
)

// Config tunes the feed source. hnrss needs no credentials.
type Config struct {
	BaseURL    string
	MinPoints  int
	HTTPClient *http.Client
}

// Provider implements source.Provider for Hacker News.
type Provider struct {
	cfg    Config
	hc     *http.Client
	parser *gofeed.Parser
	now    func() time.Time
}

// New creates a Hacker News provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(15 * time.Second)
	}
	return &Provider{cfg: cfg, hc: hc, parser: gofeed.NewParser(), now: time.Now}
}

// Source implements source.Provider.
func (p *Provider) Source() domain.Source { return domain.SourceHackerNews }

// HardLimit implements source.Provider.
func (p *Provider) HardLimit() int { return HardLimit }

// Configured implements source.Provider. Always ready.
func (p *Provider) Configured() error { return nil }

// Scopes implements source.Provider.
func (p *Provider) Scopes(domain.FetchConstraints) []string { return []string{""} }

type rawItem struct {
	Points     int    `json:"points"`
	Comments   int    `json:"comments"`
	ArticleURL string `json:"article_url,omitempty"`
}

// Search implements source.Provider.
func (p *Provider) Search(
	ctx context.Context, query, _ string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(min(max(c.PerScopeLimit, 1), HardLimit)))
	if p.cfg.MinPoints > 0 {
		q.Set("points", strconv.Itoa(p.cfg.MinPoints))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/newest?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpx.Do(p.hc, req, "hackernews")
	if err != nil {
		return nil, fmt.Errorf("hnrss: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	body, err := httpx.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	feed, err := p.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("hnrss: parse feed: %v: %w", err, domain.ErrUnexpectedSchema)
	}

	cutoff, filtered := p.cutoff(c.TimeFilter)
	out := make([]domain.NormalizedRecord, 0, len(feed.Items))
	for _, it := range feed.Items {
		rec, ok := normalize(it)
		if !ok {
			continue
		}
		if filtered && rec.CreatedAt != nil && rec.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func normalize(it *gofeed.Item) (domain.NormalizedRecord, bool) {
	id := itemID(it)
	if id == "" {
		return domain.NormalizedRecord{}, false
	}
	text := httpx.PlainText(it.Description)
	points := intMatch(pointsRe, text)
	comments := intMatch(commentsRe, text)
	body := strings.Join(strings.Fields(boilerplateRe.ReplaceAllString(text, " ")), " ")

	var author string
	if it.Author != nil {
		author = it.Author.Name
	}
	var created *time.Time
	if it.PublishedParsed != nil {
		created = domain.UTCTime(*it.PublishedParsed)
	}
	articleURL := ""
	if it.Link != "" && !strings.HasPrefix(it.Link, itemURLPrefix) {
		articleURL = it.Link
	}
	raw, _ := json.Marshal(rawItem{Points: points, Comments: comments, ArticleURL: articleURL})

	return domain.NormalizedRecord{
		ID:              id,
		Source:          domain.SourceHackerNews,
		Title:           strings.TrimSpace(it.Title),
		Body:            body,
		URL:             itemURLPrefix + id,
		Author:          author,
		CreatedAt:       created,
		EngagementScore: float64(points + comments),
		Raw:             raw,
	}, true
}

// itemID reads the HN item id from the guid or the comments link.
func itemID(it *gofeed.Item) string {
	for _, candidate := range []string{it.GUID, it.Link} {
		if u, err := url.Parse(candidate); err == nil && u.Host == "news.ycombinator.com" {
			if id := u.Query().Get("id"); id != "" {
				return id
			}
		}
	}
	return ""
}

func intMatch(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// cutoff applies the time filter client side; hnrss has no date parameter.
func (p *Provider) cutoff(tf domain.TimeFilter) (time.Time, bool) {
	now := p.now().UTC()
	switch tf {
	case domain.TimeHour:
		return now.Add(-time.Hour), true
	case domain.TimeDay:
		return now.AddDate(0, 0, -1), true
	case domain.TimeWeek:
		return now.AddDate(0, 0, -7), true
	case domain.TimeMonth:
		return now.AddDate(0, -1, 0), true
	case domain.TimeYear:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}
