package extract

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

// NoFindingsNarrative is returned for an empty corpus without calling the model.
const NoFindingsNarrative = "No pain points found."

// maxAttempts is the first call plus one repair.
const maxAttempts = 2

// Options bound the prompt and the answer.
type Options struct {
	MaxPromptChars int
	MaxRecordChars int
	MaxFindings    int
	Timeout        time.Duration // per model call, 0 = caller's deadline only
}

// Service turns an aggregated corpus into validated pain-point findings.
type Service struct {
	llm  domain.Completer
	opts Options
}

// New creates an extractor.
func New(llm domain.Completer, opts Options) *Service {
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = 60000
	}
	if opts.MaxRecordChars <= 0 {
		opts.MaxRecordChars = 1500
	}
	if opts.MaxFindings <= 0 {
		opts.MaxFindings = 10
	}
	return &Service{llm: llm, opts: opts}
}

// Extract runs one model call, validates the answer and repairs it once.
// Provider failures are returned immediately without a repair.
func (s *Service) Extract(ctx context.Context, query string, corpus domain.AggregatedCorpus) (domain.ExtractionResult, error) {
	log := logpkg.FromContext(ctx)

	if corpus.Len() == 0 {
		return domain.ExtractionResult{
			Findings:      []domain.PainPointFinding{},
			Narrative:     NoFindingsNarrative,
			PromptVersion: PromptVersion,
		}, nil
	}

	p := buildPrompt(query, corpus, s.opts)
	req := domain.CompletionRequest{
		System:     p.system,
		Prompt:     p.user,
		SchemaName: SchemaName,
		Schema:     ResponseSchema,
	}
	result := domain.ExtractionResult{
		PromptVersion:   PromptVersion,
		RecordsInPrompt: len(p.slice),
	}
	log.Debug("extraction prompt built",
		zap.Int("records_in_prompt", len(p.slice)),
		zap.Int("corpus_size", corpus.Len()),
		zap.Int("prompt_chars", len(p.user)),
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			result.RepairAttempted = true
			req.Prompt = p.user + repairInstruction(lastErr)
			log.Warn("extraction output invalid, repairing", zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		res, err := s.complete(ctx, req)
		if err != nil {
			if result.RepairAttempted {
				metrics.ExtractionRepairsTotal.WithLabelValues("provider_error").Inc()
			}
			return result, &domain.ExtractionError{Kind: domain.ExtractionProvider, Attempts: attempt, Err: err}
		}
		result.Usage.Add(res.Usage)
		if res.Model != "" {
			result.Model = res.Model
		}

		out, err := validate(res.Content, p.slice, s.opts.MaxFindings)
		if err == nil {
			if result.RepairAttempted {
				metrics.ExtractionRepairsTotal.WithLabelValues("repaired").Inc()
			}
			result.Findings = out.findings
			result.Narrative = out.narrative
			result.ContentWarnings = out.warnings
			return result, nil
		}
		lastErr = err
	}

	metrics.ExtractionRepairsTotal.WithLabelValues("failed").Inc()
	return result, &domain.ExtractionError{Kind: domain.ExtractionValidation, Attempts: maxAttempts, Err: lastErr}
}

func (s *Service) complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	return s.llm.Complete(ctx, req)
}
