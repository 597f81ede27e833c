// Package twitter searches recent posts through the X/Twitter v2 API.
package twitter

import (
	"context"
	"encoding/json"
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
	defaultBaseURL = "https://api.twitter.com/2"
	permalinkBase  = "https://twitter.com"

	minResults = 10
	// HardLimit is the max_results ceiling of tweets/search/recent.
	HardLimit = 100
	// recentWindow is how far back the recent search endpoint reaches.
	recentWindow = 7 * 24 * time.Hour
)

// Config holds the app bearer token.
type Config struct {
	BearerToken string
	BaseURL     string
	HTTPClient  *http.Client
}

// Provider implements source.Provider for X/Twitter.
type Provider struct {
	cfg Config
	hc  *http.Client
	now func() time.Time
}

// New creates a Twitter provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(15 * time.Second)
	}
	return &Provider{cfg: cfg, hc: hc, now: time.Now}
}

// Source implements source.Provider.
func (p *Provider) Source() domain.Source { return domain.SourceTwitter }

// HardLimit implements source.Provider.
func (p *Provider) HardLimit() int { return HardLimit }

// Configured implements source.Provider.
func (p *Provider) Configured() error {
	if p.cfg.BearerToken == "" {
		return fmt.Errorf("twitter bearer_token is required: %w", domain.ErrSourceUnavailable)
	}
	return nil
}

// Scopes implements source.Provider.
func (p *Provider) Scopes(domain.FetchConstraints) []string { return []string{""} }

type searchResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

type tweet struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	AuthorID      string    `json:"author_id"`
	CreatedAt     time.Time `json:"created_at"`
	Lang          string    `json:"lang"`
	PublicMetrics metrics   `json:"public_metrics"`
}

type metrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type rawTweet struct {
	Lang    string  `json:"lang,omitempty"`
	Metrics metrics `json:"public_metrics"`
}

// Search implements source.Provider.
func (p *Provider) Search(
	ctx context.Context, query, _ string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	q := url.Values{}
	q.Set("query", BuildQuery(query, c.Language))
	q.Set("max_results", strconv.Itoa(min(max(c.PerScopeLimit, minResults), HardLimit)))
	q.Set("tweet.fields", "created_at,public_metrics,author_id,lang")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")
	if start, ok := p.startTime(c.TimeFilter); ok {
		q.Set("start_time", start.Format(time.RFC3339))
	}

	var resp searchResponse
	err := httpx.GetJSON(ctx, p.hc, "twitter", p.cfg.BaseURL+"/tweets/search/recent?"+q.Encode(), http.Header{
		"Authorization": {"Bearer " + p.cfg.BearerToken},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("recent search: %w", err)
	}

	usernames := make(map[string]string, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		usernames[u.ID] = u.Username
	}

	out := make([]domain.NormalizedRecord, 0, len(resp.Data))
	for _, tw := range resp.Data {
		if tw.ID == "" || strings.TrimSpace(tw.Text) == "" {
			continue
		}
		username := usernames[tw.AuthorID]
		link := fmt.Sprintf("%s/i/web/status/%s", permalinkBase, tw.ID)
		if username != "" {
			link = fmt.Sprintf("%s/%s/status/%s", permalinkBase, username, tw.ID)
		}
		m := tw.PublicMetrics
		raw, _ := json.Marshal(rawTweet{Lang: tw.Lang, Metrics: m})

		out = append(out, domain.NormalizedRecord{
			ID:              tw.ID,
			Source:          domain.SourceTwitter,
			Body:            strings.Join(strings.Fields(tw.Text), " "),
			URL:             link,
			Author:          username,
			CreatedAt:       domain.UTCTime(tw.CreatedAt),
			EngagementScore: float64(m.LikeCount + m.RetweetCount + m.ReplyCount + m.QuoteCount),
			Raw:             raw,
		})
	}
	return out, nil
}

// BuildQuery appends the retweet and language operators to a free-text query.
func BuildQuery(query, lang string) string {
	q := strings.TrimSpace(query) + " -is:retweet"
	if lang != "" {
		q += " lang:" + lang
	}
	return q
}

// startTime maps a time filter onto start_time. Anything wider than the
// recent-search window is clamped to it.
func (p *Provider) startTime(tf domain.TimeFilter) (time.Time, bool) {
	now := p.now().UTC()
	var window time.Duration
	switch tf {
	case domain.TimeHour:
		window = time.Hour
	case domain.TimeDay:
		window = 24 * time.Hour
	case domain.TimeWeek, domain.TimeMonth, domain.TimeYear, domain.TimeAll:
		window = recentWindow
	default:
		return time.Time{}, false
	}
	if window >= recentWindow {
		// the API rejects a start_time at or beyond the window edge
		window = recentWindow - time.Minute
	}
	return now.Add(-window).Truncate(time.Second), true
}
