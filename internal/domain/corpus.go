package domain

// RecordRef points at a record that was collapsed into a cluster representative.
type RecordRef struct {
	Source Source `json:"source"`
	ID     string `json:"id"`
	URL    string `json:"url"`
}

// CorpusEntry is a cluster representative annotated by the aggregator.
type CorpusEntry struct {
	NormalizedRecord
	ClusterID  string      `json:"cluster_id"`
	Rank       int         `json:"rank"`
	Duplicates []RecordRef `json:"duplicates,omitempty"`
}

// CorpusStats keeps the aggregation diagnostics.
type CorpusStats struct {
	InputRecords        int            `json:"input_records"`
	DroppedMalformed    int            `json:"dropped_malformed"`
	DedupedByURL        int            `json:"deduped_by_url"`
	DedupedBySimilarity int            `json:"deduped_by_similarity"`
	Truncated           int            `json:"truncated"`
	SourceCounts        map[Source]int `json:"source_counts"`
}

// AggregatedCorpus is the ranked, deduplicated record set handed to extraction.
type AggregatedCorpus struct {
	Entries []CorpusEntry `json:"entries"`
	Stats   CorpusStats   `json:"stats"`
}

// Len returns the number of representatives.
func (c AggregatedCorpus) Len() int { return len(c.Entries) }

// Records returns the representatives as plain records, in rank order.
func (c AggregatedCorpus) Records() []NormalizedRecord {
	out := make([]NormalizedRecord, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.NormalizedRecord
	}
	return out
}
