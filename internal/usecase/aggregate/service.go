package aggregate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
)

// DefaultSimilarityThreshold is the title+body Jaccard score at which two
// records are treated as the same post.
const DefaultSimilarityThreshold = 0.6

// Options configure the aggregator.
type Options struct {
	MaxCorpusSize       int     // 0 = unbounded
	SimilarityThreshold float64 // (0,1]
	SourcePriority      []domain.Source
}

// Service merges per-source record lists into one ranked corpus.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	maxSize   int
	threshold float64
	priority  map[domain.Source]int
}

// New creates an aggregator. Sources missing from the priority list rank
// after the listed ones, by name.
func New(opts Options) *Service {
	threshold := opts.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	prio := opts.SourcePriority
	if len(prio) == 0 {
		prio = domain.KnownSources()
	}
	pm := make(map[domain.Source]int, len(prio))
	for i, s := range prio {
		if _, dup := pm[s]; !dup {
			pm[s] = i
		}
	}
	return &Service{maxSize: opts.MaxCorpusSize, threshold: threshold, priority: pm}
}

// candidate is a valid input record with its precomputed dedupe keys.
type candidate struct {
	rec    domain.NormalizedRecord
	url    string
	tokens map[string]struct{}
}

// Merge dedupes, clusters, ranks and truncates. Output order depends only on
// record content, never on map iteration or arrival order.
func (s *Service) Merge(ctx context.Context, perSource map[domain.Source][]domain.NormalizedRecord) domain.AggregatedCorpus {
	log := logpkg.FromContext(ctx)
	stats := domain.CorpusStats{SourceCounts: map[domain.Source]int{}}

	var cands []candidate
	for _, src := range sortedSources(perSource) {
		for _, r := range perSource[src] {
			stats.InputRecords++
			if err := r.Validate(); err != nil {
				stats.DroppedMalformed++
				log.Debug("dropping malformed record", zap.String("source", string(src)), zap.Error(err))
				continue
			}
			cands = append(cands, candidate{
				rec:    r,
				url:    CanonicalURL(r.URL),
				tokens: Tokens(r.Title + " " + r.Body),
			})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool { return s.less(cands[i].rec, cands[j].rec) })

	uf := newUnionFind(len(cands))
	byKey := make(map[string]int, len(cands))
	byURL := make(map[string]int, len(cands))
	for i, c := range cands {
		if j, ok := byKey[c.rec.Key()]; ok {
			if uf.union(j, i) {
				stats.DedupedByURL++
			}
		} else {
			byKey[c.rec.Key()] = i
		}
		if j, ok := byURL[c.url]; ok {
			if uf.union(j, i) {
				stats.DedupedByURL++
			}
		} else {
			byURL[c.url] = i
		}
	}
	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if Jaccard(cands[i].tokens, cands[j].tokens) >= s.threshold {
				uf.union(i, j)
				stats.DedupedBySimilarity++
			}
		}
	}

	// cands is in representative order, so the first member seen of each
	// cluster is its representative and clusters come out ranked.
	clusterPos := make(map[int]int)
	entries := make([]domain.CorpusEntry, 0, len(cands))
	for i, c := range cands {
		root := uf.find(i)
		if pos, ok := clusterPos[root]; ok {
			entries[pos].Duplicates = append(entries[pos].Duplicates, domain.RecordRef{
				Source: c.rec.Source, ID: c.rec.ID, URL: c.rec.URL,
			})
			continue
		}
		clusterPos[root] = len(entries)
		entries = append(entries, domain.CorpusEntry{
			NormalizedRecord: c.rec,
			ClusterID:        clusterID(c.rec),
		})
	}

	if s.maxSize > 0 && len(entries) > s.maxSize {
		stats.Truncated = len(entries) - s.maxSize
		entries = entries[:s.maxSize]
	}
	for i := range entries {
		entries[i].Rank = i
		stats.SourceCounts[entries[i].Source]++
	}

	log.Debug("corpus aggregated",
		zap.Int("input", stats.InputRecords),
		zap.Int("corpus_size", len(entries)),
		zap.Int("dropped_malformed", stats.DroppedMalformed),
		zap.Int("deduped_url", stats.DedupedByURL),
		zap.Int("deduped_similarity", stats.DedupedBySimilarity),
		zap.Int("truncated", stats.Truncated),
	)
	return domain.AggregatedCorpus{Entries: entries, Stats: stats}
}

// less is the representative and ranking order: engagement desc, earliest
// created_at (unknown last), source priority, id, then source and url so the
// order is total.
func (s *Service) less(a, b domain.NormalizedRecord) bool {
	if a.EngagementScore != b.EngagementScore {
		return a.EngagementScore > b.EngagementScore
	}
	switch {
	case a.CreatedAt != nil && b.CreatedAt == nil:
		return true
	case a.CreatedAt == nil && b.CreatedAt != nil:
		return false
	case a.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
		return a.CreatedAt.Before(*b.CreatedAt)
	}
	if pa, pb := s.rank(a.Source), s.rank(b.Source); pa != pb {
		return pa < pb
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.URL < b.URL
}

func (s *Service) rank(src domain.Source) int {
	if p, ok := s.priority[src]; ok {
		return p
	}
	return len(s.priority)
}

func sortedSources(m map[domain.Source][]domain.NormalizedRecord) []domain.Source {
	out := make([]domain.Source, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// clusterID is derived from the representative so re-merging a corpus keeps ids.
func clusterID(r domain.NormalizedRecord) string {
	sum := sha256.Sum256([]byte(r.Key()))
	return "c_" + hex.EncodeToString(sum[:6])
}

type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root. Reports whether two sets were joined.
func (u *unionFind) union(a, b int) bool {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	return true
}
