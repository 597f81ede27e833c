package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kailas-cloud/painradar/internal/domain"
)

func ts(day int) *time.Time {
	t := time.Date(2026, 10, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func rec(src domain.Source, id, title, url string, engagement float64, created *time.Time) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		ID: id, Source: src, Title: title, URL: url, EngagementScore: engagement, CreatedAt: created,
	}
}

func sampleInput() map[domain.Source][]domain.NormalizedRecord {
	return map[domain.Source][]domain.NormalizedRecord{
		domain.SourceReddit: {
			rec(domain.SourceReddit, "r1", "Invoicing takes forever for small shops", "https://www.reddit.com/r/smallbusiness/comments/r1/x/", 40, ts(10)),
			rec(domain.SourceReddit, "r2", "Payroll software keeps crashing during month end", "https://www.reddit.com/r/smallbusiness/comments/r2/y/", 12, ts(11)),
		},
		domain.SourceGoogle: {
			rec(domain.SourceGoogle, "g1", "Blog: invoicing takes forever for small shops", "https://blog.example.com/invoicing?utm_source=x", 10, nil),
			rec(domain.SourceGoogle, "g2", "Customer support tools are overpriced", "http://Example.com/support/", 9, nil),
		},
		domain.SourceHackerNews: {
			rec(domain.SourceHackerNews, "h1", "Ask HN: tax filing nightmares", "https://news.ycombinator.com/item?id=1", 30, ts(9)),
			rec(domain.SourceHackerNews, "h2", "Show HN: scheduling app", "https://news.ycombinator.com/item?id=2", 5, ts(9)),
		},
		domain.SourceDuckDuckGo: {
			rec(domain.SourceDuckDuckGo, "https://example.com/support", "Support tools overpriced, says survey", "https://example.com/support#top", 3, nil),
		},
	}
}

func TestMerge_Deterministic(t *testing.T) {
	svc := New(Options{MaxCorpusSize: 60})
	first := svc.Merge(context.Background(), sampleInput())
	for range 20 {
		again := svc.Merge(context.Background(), sampleInput())
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("merge not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestMerge_ArrivalOrderIrrelevant(t *testing.T) {
	svc := New(Options{})
	in := sampleInput()
	reversed := make(map[domain.Source][]domain.NormalizedRecord, len(in))
	for src, recs := range in {
		rs := make([]domain.NormalizedRecord, len(recs))
		for i, r := range recs {
			rs[len(recs)-1-i] = r
		}
		reversed[src] = rs
	}
	if diff := cmp.Diff(svc.Merge(context.Background(), in), svc.Merge(context.Background(), reversed)); diff != "" {
		t.Fatalf("arrival order changed the corpus:\n%s", diff)
	}
}

func TestMerge_Clusters(t *testing.T) {
	corpus := New(Options{}).Merge(context.Background(), sampleInput())

	var got []string
	for _, e := range corpus.Entries {
		got = append(got, e.Key())
	}
	want := []string{"reddit:r1", "hackernews:h1", "reddit:r2", "google:g2", "hackernews:h2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected ranking (-want +got):\n%s", diff)
	}

	// r1 and g1 match on text, g2 and the duckduckgo hit on canonical URL
	if d := corpus.Entries[0].Duplicates; len(d) != 1 || d[0].ID != "g1" {
		t.Errorf("expected g1 folded into r1, got %+v", d)
	}
	if d := corpus.Entries[3].Duplicates; len(d) != 1 || d[0].Source != domain.SourceDuckDuckGo {
		t.Errorf("expected duckduckgo hit folded into g2, got %+v", d)
	}
	for i, e := range corpus.Entries {
		if e.Rank != i {
			t.Errorf("entry %d has rank %d", i, e.Rank)
		}
	}

	wantStats := domain.CorpusStats{
		InputRecords:        7,
		DedupedByURL:        1,
		DedupedBySimilarity: 1,
		SourceCounts: map[domain.Source]int{
			domain.SourceReddit: 2, domain.SourceHackerNews: 2, domain.SourceGoogle: 1,
		},
	}
	if diff := cmp.Diff(wantStats, corpus.Stats); diff != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", diff)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	svc := New(Options{MaxCorpusSize: 4})
	first := svc.Merge(context.Background(), sampleInput())

	again := map[domain.Source][]domain.NormalizedRecord{}
	for _, r := range first.Records() {
		again[r.Source] = append(again[r.Source], r)
	}
	second := svc.Merge(context.Background(), again)

	opts := cmpopts.IgnoreFields(domain.CorpusEntry{}, "Duplicates")
	if diff := cmp.Diff(first.Entries, second.Entries, opts); diff != "" {
		t.Fatalf("re-merging representatives changed the corpus:\n%s", diff)
	}
	if second.Stats.DedupedByURL+second.Stats.DedupedBySimilarity+second.Stats.Truncated != 0 {
		t.Errorf("second merge should not dedupe or truncate: %+v", second.Stats)
	}
}

func TestMerge_SameCanonicalURL(t *testing.T) {
	in := map[domain.Source][]domain.NormalizedRecord{
		domain.SourceGoogle: {
			rec(domain.SourceGoogle, "low", "Pricing page", "http://www.Shop.example.com/pricing/?ref=g", 3, nil),
		},
		domain.SourceDuckDuckGo: {
			rec(domain.SourceDuckDuckGo, "high", "Pricing", "https://shop.example.com/pricing#plans", 10, nil),
		},
	}
	corpus := New(Options{}).Merge(context.Background(), in)
	if corpus.Len() != 1 {
		t.Fatalf("expected one cluster, got %d", corpus.Len())
	}
	rep := corpus.Entries[0]
	if rep.EngagementScore != 10 || rep.ID != "high" {
		t.Errorf("expected representative with engagement 10, got %+v", rep.NormalizedRecord)
	}
	if len(rep.Duplicates) != 1 || rep.Duplicates[0].ID != "low" {
		t.Errorf("unexpected duplicates: %+v", rep.Duplicates)
	}
}

func TestMerge_TransitiveClusters(t *testing.T) {
	// a~b by url, b~c by text, a and c share nothing directly
	in := map[domain.Source][]domain.NormalizedRecord{
		domain.SourceReddit: {
			rec(domain.SourceReddit, "a", "Completely different wording here today", "https://x.example.com/p", 1, nil),
		},
		domain.SourceGoogle: {
			rec(domain.SourceGoogle, "b", "Refund requests pile up every single week", "https://x.example.com/p/", 2, nil),
		},
		domain.SourceTwitter: {
			rec(domain.SourceTwitter, "c", "refund requests pile up every single week!!", "https://twitter.com/u/status/1", 5, nil),
		},
	}
	corpus := New(Options{}).Merge(context.Background(), in)
	if corpus.Len() != 1 {
		t.Fatalf("expected a single transitive cluster, got %d", corpus.Len())
	}
	if corpus.Entries[0].ID != "c" || len(corpus.Entries[0].Duplicates) != 2 {
		t.Errorf("unexpected cluster: %+v", corpus.Entries[0])
	}
}

func TestMerge_TieBreaks(t *testing.T) {
	in := map[domain.Source][]domain.NormalizedRecord{
		domain.SourceGoogle: {
			rec(domain.SourceGoogle, "g", "alpha one two three", "https://a.example.com", 5, nil),
		},
		domain.SourceReddit: {
			rec(domain.SourceReddit, "r-late", "beta four five six", "https://b.example.com", 5, ts(12)),
			rec(domain.SourceReddit, "r-early", "gamma seven eight nine", "https://c.example.com", 5, ts(10)),
			rec(domain.SourceReddit, "r-nil", "delta ten eleven twelve", "https://d.example.com", 5, nil),
		},
	}
	corpus := New(Options{
		SourcePriority: []domain.Source{domain.SourceGoogle, domain.SourceReddit},
	}).Merge(context.Background(), in)

	var got []string
	for _, e := range corpus.Entries {
		got = append(got, e.ID)
	}
	want := []string{"r-early", "r-late", "g", "r-nil"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestMerge_TruncatesAfterDedupe(t *testing.T) {
	var recs []domain.NormalizedRecord
	for i := range 10 {
		// every pair shares a canonical URL, so 5 clusters remain
		recs = append(recs, rec(domain.SourceReddit, fmt.Sprintf("id%02d", i),
			fmt.Sprintf("item%d alpha%d beta%d", i, i, i), fmt.Sprintf("https://e.example.com/%d?x=%d", i/2, i), float64(i), nil))
	}
	corpus := New(Options{MaxCorpusSize: 3}).Merge(context.Background(),
		map[domain.Source][]domain.NormalizedRecord{domain.SourceReddit: recs})

	if corpus.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", corpus.Len())
	}
	if corpus.Stats.DedupedByURL != 5 || corpus.Stats.Truncated != 2 {
		t.Errorf("unexpected stats: %+v", corpus.Stats)
	}
	if corpus.Entries[0].ID != "id09" || corpus.Entries[2].ID != "id05" {
		t.Errorf("unexpected top entries: %s, %s", corpus.Entries[0].ID, corpus.Entries[2].ID)
	}
}

func TestMerge_DropsMalformed(t *testing.T) {
	local := time.Date(2026, 10, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	in := map[domain.Source][]domain.NormalizedRecord{
		domain.SourceReddit: {
			rec(domain.SourceReddit, "", "no id", "https://a.example.com", 1, nil),
			rec(domain.SourceReddit, "x", "no url", "", 1, nil),
			rec(domain.SourceReddit, "y", "", "https://b.example.com", 1, nil),
			rec(domain.SourceReddit, "z", "local time", "https://c.example.com", 1, &local),
			rec(domain.SourceReddit, "ok", "fine", "https://d.example.com", 1, nil),
		},
	}
	corpus := New(Options{}).Merge(context.Background(), in)
	if corpus.Len() != 1 || corpus.Stats.DroppedMalformed != 4 {
		t.Fatalf("expected 4 dropped and 1 kept, got len=%d stats=%+v", corpus.Len(), corpus.Stats)
	}
}

func TestMerge_Empty(t *testing.T) {
	for name, in := range map[string]map[domain.Source][]domain.NormalizedRecord{
		"nil":       nil,
		"all empty": {domain.SourceReddit: nil, domain.SourceGoogle: {}},
	} {
		t.Run(name, func(t *testing.T) {
			corpus := New(Options{}).Merge(context.Background(), in)
			if corpus.Len() != 0 || corpus.Entries == nil {
				t.Errorf("expected empty non-nil corpus, got %+v", corpus)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://WWW.Example.com/Path/?utm=1#frag", "https://example.com/Path"},
		{"https://example.com", "https://example.com"},
		{"https://news.ycombinator.com/item?id=42&p=2", "https://news.ycombinator.com/item?id=42&p=2"},
		{"https://www.youtube.com/watch?v=abc&t=10", "https://youtube.com/watch?v=abc"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := CanonicalURL(tt.in); got != tt.want {
			t.Errorf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := Tokens("The invoicing tool is slow and buggy")
	b := Tokens("invoicing tool slow, buggy!")
	if got := Jaccard(a, b); got != 1 {
		t.Errorf("expected identical token sets, got %v", got)
	}
	if got := Jaccard(Tokens("too short"), Tokens("too short")); got != 0 {
		t.Errorf("short sets must not match, got %v", got)
	}
	if got := Jaccard(Tokens("alpha beta gamma delta"), Tokens("alpha beta epsilon zeta")); got != 2.0/6.0 {
		t.Errorf("unexpected score %v", got)
	}
}
