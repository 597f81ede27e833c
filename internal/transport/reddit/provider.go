// Package reddit searches subreddits through the Reddit OAuth API with an
// app-only (client_credentials) token.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/transport/httpx"
)

const (
	defaultAPIURL  = "https://oauth.reddit.com"
	defaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	permalinkBase  = "https://www.reddit.com"

	// HardLimit caps the merged result.
	HardLimit = 20
	// ScopeHardLimit caps each subreddit listing.
	ScopeHardLimit = 25
	// tokenSkew refreshes the token before it actually expires.
	tokenSkew = time.Minute
)

// Config holds Reddit app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	APIURL       string
	AuthURL      string
	Subreddits   []string
	HTTPClient   *http.Client
}

// Provider implements source.Provider for Reddit.
type Provider struct {
	cfg Config
	hc  *http.Client
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New creates a Reddit provider.
func New(cfg Config) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(15 * time.Second)
	}
	return &Provider{cfg: cfg, hc: hc, now: time.Now}
}

// Source implements source.Provider.
func (p *Provider) Source() domain.Source { return domain.SourceReddit }

// HardLimit implements source.Provider.
func (p *Provider) HardLimit() int { return HardLimit }

// ScopeHardLimit implements source.ScopeLimiter.
func (p *Provider) ScopeHardLimit() int { return ScopeHardLimit }

// Configured implements source.Provider.
func (p *Provider) Configured() error {
	var missing []string
	if p.cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if p.cfg.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if p.cfg.UserAgent == "" {
		missing = append(missing, "user_agent")
	}
	if len(missing) > 0 {
		return fmt.Errorf("reddit credentials missing (%s): %w", strings.Join(missing, ", "), domain.ErrSourceUnavailable)
	}
	return nil
}

// Scopes implements source.Provider: one scope per subreddit.
func (p *Provider) Scopes(c domain.FetchConstraints) []string {
	subs := c.Scopes
	if len(subs) == 0 {
		subs = p.cfg.Subreddits
	}
	out := make([]string, 0, len(subs))
	seen := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		s = strings.TrimPrefix(strings.TrimSpace(s), "r/")
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data post   `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	Author            string  `json:"author"`
	Subreddit         string  `json:"subreddit"`
	Permalink         string  `json:"permalink"`
	URL               string  `json:"url"`
	CreatedUTC        float64 `json:"created_utc"`
	Score             int     `json:"score"`
	NumComments       int     `json:"num_comments"`
	Over18            bool    `json:"over_18"`
	Spoiler           bool    `json:"spoiler"`
	RemovedByCategory *string `json:"removed_by_category"`
}

type rawPost struct {
	Subreddit   string   `json:"subreddit"`
	Score       int      `json:"score"`
	NumComments int      `json:"num_comments"`
	LinkURL     string   `json:"link_url,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

// Search implements source.Provider for one subreddit.
func (p *Provider) Search(
	ctx context.Context, query, subreddit string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("sort", "relevance")
	q.Set("limit", strconv.Itoa(c.PerScopeLimit))
	q.Set("raw_json", "1")
	if c.TimeFilter != "" {
		q.Set("t", string(c.TimeFilter))
	}
	endpoint := fmt.Sprintf("%s/r/%s/search?%s", p.cfg.APIURL, url.PathEscape(subreddit), q.Encode())

	var l listing
	err = httpx.GetJSON(ctx, p.hc, "reddit", endpoint, http.Header{
		"Authorization": {"bearer " + token},
		"User-Agent":    {p.cfg.UserAgent},
	}, &l)
	if err != nil {
		if domain.KindOf(err) == domain.FailureAuth {
			p.invalidateToken()
		}
		return nil, fmt.Errorf("search r/%s: %w", subreddit, err)
	}
	if l.Kind != "Listing" {
		return nil, fmt.Errorf("search r/%s: listing kind %q: %w", subreddit, l.Kind, domain.ErrUnexpectedSchema)
	}

	terms := newRelevance(query)
	out := make([]domain.NormalizedRecord, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		rec, ok := p.normalize(child.Data)
		if !ok || !terms.relevant(rec.Title, rec.Body) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *Provider) normalize(ps post) (domain.NormalizedRecord, bool) {
	if ps.ID == "" || ps.Permalink == "" {
		return domain.NormalizedRecord{}, false
	}
	removed := ps.RemovedByCategory != nil && *ps.RemovedByCategory != ""
	if removed || ps.Selftext == "[removed]" || ps.Selftext == "[deleted]" {
		return domain.NormalizedRecord{}, false
	}

	var flags []string
	if ps.Over18 {
		flags = append(flags, "nsfw")
	}
	if ps.Spoiler {
		flags = append(flags, "spoiler")
	}
	raw, _ := json.Marshal(rawPost{
		Subreddit:   ps.Subreddit,
		Score:       ps.Score,
		NumComments: ps.NumComments,
		LinkURL:     ps.URL,
		Flags:       flags,
	})

	author := ps.Author
	if author == "[deleted]" {
		author = ""
	}
	var created *time.Time
	if ps.CreatedUTC > 0 {
		sec, frac := math.Modf(ps.CreatedUTC)
		created = domain.UTCTime(time.Unix(int64(sec), int64(frac*1e9)))
	}

	return domain.NormalizedRecord{
		ID:              ps.ID,
		Source:          domain.SourceReddit,
		Title:           SanitizeText(ps.Title),
		Body:            SanitizeText(ps.Selftext),
		URL:             permalinkBase + ps.Permalink,
		Author:          author,
		CreatedAt:       created,
		EngagementScore: float64(ps.Score + ps.NumComments),
		Raw:             raw,
	}, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// accessToken returns a cached app-only token, fetching a new one when needed.
func (p *Provider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := httpx.Do(p.hc, req, "reddit")
	if err != nil {
		return "", fmt.Errorf("reddit token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	var tr tokenResponse
	if err := httpx.DecodeJSON(resp.Body, &tr); err != nil {
		return "", fmt.Errorf("reddit token: %w", err)
	}
	if tr.Error != "" || tr.AccessToken == "" {
		// Reddit answers 200 with {"error": "invalid_grant"} for bad credentials
		return "", &domain.StatusError{
			Provider: "reddit", StatusCode: http.StatusUnauthorized, Detail: "token: " + tr.Error,
		}
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= tokenSkew {
		ttl = 2 * tokenSkew
	}
	p.token = tr.AccessToken
	p.expiresAt = p.now().Add(ttl - tokenSkew)
	return p.token, nil
}

func (p *Provider) invalidateToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}
