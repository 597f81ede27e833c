package run

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// Aggregator merges per-source results into one corpus.
type Aggregator interface {
	Merge(ctx context.Context, perSource map[domain.Source][]domain.NormalizedRecord) domain.AggregatedCorpus
}

// Extractor turns a corpus into findings.
type Extractor interface {
	Extract(ctx context.Context, query string, corpus domain.AggregatedCorpus) (domain.ExtractionResult, error)
}
