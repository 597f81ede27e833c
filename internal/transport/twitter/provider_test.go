package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/painradar/internal/domain"
)

const recentJSON = `{
	"data": [
		{"id": "1001", "text": "Invoicing in  our\nCRM is painful", "author_id": "u1",
		 "created_at": "2026-10-16T12:00:00.000Z", "lang": "en",
		 "public_metrics": {"retweet_count": 2, "reply_count": 3, "like_count": 10, "quote_count": 1}},
		{"id": "1002", "text": "same here", "author_id": "u9",
		 "created_at": "2026-10-16T13:00:00.000Z",
		 "public_metrics": {"like_count": 1}}
	],
	"includes": {"users": [{"id": "u1", "username": "alice", "name": "Alice"}]},
	"meta": {"result_count": 2}
}`

func TestProvider_Search(t *testing.T) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/search/recent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected auth: %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("query") != "crm invoicing -is:retweet lang:en" {
			t.Errorf("unexpected query: %q", q.Get("query"))
		}
		if q.Get("max_results") != "10" {
			t.Errorf("expected max_results clamped to 10, got %s", q.Get("max_results"))
		}
		if q.Get("start_time") != "2026-10-16T00:00:00Z" {
			t.Errorf("unexpected start_time: %s", q.Get("start_time"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(recentJSON))
	}))
	defer server.Close()

	p := New(Config{BearerToken: "tok", BaseURL: server.URL})
	p.now = func() time.Time { return now }

	recs, err := p.Search(context.Background(), "crm invoicing", "",
		domain.FetchConstraints{PerScopeLimit: 3, TimeFilter: domain.TimeDay, Language: "en"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].URL != "https://twitter.com/alice/status/1001" || recs[0].Author != "alice" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[0].Body != "Invoicing in our CRM is painful" {
		t.Errorf("whitespace not collapsed: %q", recs[0].Body)
	}
	if recs[0].EngagementScore != 16 {
		t.Errorf("expected engagement 16, got %v", recs[0].EngagementScore)
	}
	if recs[1].URL != "https://twitter.com/i/web/status/1002" {
		t.Errorf("expected fallback permalink, got %s", recs[1].URL)
	}
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			t.Errorf("invalid record: %v", err)
		}
	}
}

func TestProvider_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	}))
	defer server.Close()

	recs, err := New(Config{BearerToken: "tok", BaseURL: server.URL}).
		Search(context.Background(), "q", "", domain.FetchConstraints{PerScopeLimit: 10})
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", recs, err)
	}
}

func TestProvider_RateLimitReset(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := New(Config{BearerToken: "tok", BaseURL: server.URL}).
		Search(context.Background(), "q", "", domain.FetchConstraints{PerScopeLimit: 10})
	var se *domain.StatusError
	if !errors.As(err, &se) || !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate-limit StatusError, got %v", err)
	}
	if se.RetryAfter < 80*time.Second || se.RetryAfter > 91*time.Second {
		t.Errorf("expected RetryAfter near 90s, got %v", se.RetryAfter)
	}
}

func TestProvider_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := New(Config{BearerToken: "bad", BaseURL: server.URL}).
		Search(context.Background(), "q", "", domain.FetchConstraints{PerScopeLimit: 10})
	if domain.KindOf(err) != domain.FailureAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestStartTime(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	p := New(Config{})
	p.now = func() time.Time { return now }

	if _, ok := p.startTime(""); ok {
		t.Error("unset filter must not send start_time")
	}
	got, _ := p.startTime(domain.TimeHour)
	if !got.Equal(now.Add(-time.Hour)) {
		t.Errorf("hour: got %v", got)
	}
	for _, tf := range []domain.TimeFilter{domain.TimeWeek, domain.TimeYear, domain.TimeAll} {
		got, _ := p.startTime(tf)
		if now.Sub(got) >= recentWindow {
			t.Errorf("%s: start_time %v outside the recent window", tf, got)
		}
	}
}

func TestBuildQuery(t *testing.T) {
	if got := BuildQuery(" churn ", ""); got != "churn -is:retweet" {
		t.Errorf("got %q", got)
	}
	if got := BuildQuery("churn", "de"); got != "churn -is:retweet lang:de" {
		t.Errorf("got %q", got)
	}
}
