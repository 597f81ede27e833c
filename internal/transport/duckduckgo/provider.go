// Package duckduckgo scrapes the keyless DuckDuckGo HTML endpoint.
package duckduckgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/transport/httpx"
	"github.com/kailas-cloud/painradar/internal/version"
)

const (
	defaultBaseURL = "https://html.duckduckgo.com/html/"
	redirectPrefix = "//duckduckgo.com/l/?"

	// HardLimit is the size of the first HTML result page.
	HardLimit = 30
)

// Config tunes the scraper. DuckDuckGo needs no credentials.
type Config struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// Provider implements source.Provider for DuckDuckGo.
type Provider struct {
	cfg Config
	hc  *http.Client
}

// New creates a DuckDuckGo provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; " + version.UserAgent() + ")"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(15 * time.Second)
	}
	return &Provider{cfg: cfg, hc: hc}
}

// Source implements source.Provider.
func (p *Provider) Source() domain.Source { return domain.SourceDuckDuckGo }

// HardLimit implements source.Provider.
func (p *Provider) HardLimit() int { return HardLimit }

// Configured implements source.Provider. Always ready.
func (p *Provider) Configured() error { return nil }

// Scopes implements source.Provider.
func (p *Provider) Scopes(domain.FetchConstraints) []string { return []string{""} }

// Result is one organic hit of the HTML page.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Search implements source.Provider.
func (p *Provider) Search(
	ctx context.Context, query, _ string, c domain.FetchConstraints,
) ([]domain.NormalizedRecord, error) {
	form := url.Values{"q": {query}}
	if df := dateFilter(c.TimeFilter); df != "" {
		form.Set("df", df)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := httpx.Do(p.hc, req, "duckduckgo")
	if err != nil {
		return nil, fmt.Errorf("html search: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	// 202 is the bot-check answer, not a result page
	if resp.StatusCode == http.StatusAccepted {
		return nil, &domain.StatusError{
			Provider: "duckduckgo", StatusCode: resp.StatusCode, Detail: "bot challenge", Sentinel: domain.ErrRateLimited,
		}
	}
	body, err := httpx.ReadBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if bytes.Contains(body, []byte("anomaly-modal")) {
		return nil, &domain.StatusError{
			Provider: "duckduckgo", StatusCode: resp.StatusCode, Detail: "anomaly page", Sentinel: domain.ErrRateLimited,
		}
	}

	limit := min(max(c.PerScopeLimit, 1), HardLimit)
	results, err := ParseResults(body, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.NormalizedRecord, 0, len(results))
	for i, r := range results {
		raw, _ := json.Marshal(map[string]int{"position": i + 1})
		out = append(out, domain.NormalizedRecord{
			ID:              r.URL,
			Source:          domain.SourceDuckDuckGo,
			Title:           r.Title,
			Body:            r.Snippet,
			URL:             r.URL,
			EngagementScore: float64(limit - i),
			Raw:             raw,
		})
	}
	return out, nil
}

// ParseResults extracts up to max organic results from a DuckDuckGo HTML page.
// Ads (result--ad) are skipped.
func ParseResults(page []byte, maxResults int) ([]Result, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %v: %w", err, domain.ErrUnexpectedSchema)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if hasClass(class, "result") && !hasClass(class, "result--ad") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var r Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attr(n, "class")
			switch {
			case n.Data == "a" && hasClass(class, "result__a"):
				r.URL = resolveLink(attr(n, "href"))
				r.Title = textContent(n)
			case hasClass(class, "result__snippet"):
				r.Snippet = textContent(n)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return r
}

// resolveLink unwraps DuckDuckGo's redirect links to the target URL.
func resolveLink(href string) string {
	if strings.HasPrefix(href, redirectPrefix) || strings.HasPrefix(href, "https:"+redirectPrefix) {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		return ""
	}
	return href
}

func dateFilter(tf domain.TimeFilter) string {
	switch tf {
	case domain.TimeHour, domain.TimeDay:
		return "d"
	case domain.TimeWeek:
		return "w"
	case domain.TimeMonth:
		return "m"
	case domain.TimeYear:
		return "y"
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
