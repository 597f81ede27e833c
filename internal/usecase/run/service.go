package run

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/painradar/internal/domain"
	logpkg "github.com/kailas-cloud/painradar/internal/logger"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

// Options configure the coordinator.
type Options struct {
	SourceTimeout time.Duration // per adapter
	TotalTimeout  time.Duration // soft deadline of the fetch stage
	MaxQueryWords int
	EventBuffer   int
	Now           func() time.Time // nil = time.Now
	NewID         func() string    // nil = uuid
}

// Service drives a run through PENDING → FETCHING → AGGREGATING →
// EXTRACTING → DONE, or FAILED.
type Service struct {
	fetchers map[domain.Source]domain.Fetcher
	order    []domain.Source
	agg      Aggregator
	ext      Extractor
	opts     Options
}

// New creates a coordinator over the registered fetchers.
func New(fetchers []domain.Fetcher, agg Aggregator, ext Extractor, opts Options) *Service {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 30 * time.Second
	}
	if opts.TotalTimeout <= 0 {
		opts.TotalTimeout = 60 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	s := &Service{
		fetchers: make(map[domain.Source]domain.Fetcher, len(fetchers)),
		agg:      agg,
		ext:      ext,
		opts:     opts,
	}
	for _, f := range fetchers {
		s.fetchers[f.Source()] = f
	}
	for _, src := range domain.KnownSources() {
		if _, ok := s.fetchers[src]; ok {
			s.order = append(s.order, src)
		}
	}
	return s
}

// SourceInfo describes one known source for listings.
type SourceInfo struct {
	Source     domain.Source `json:"source"`
	Registered bool          `json:"registered"`
	Available  bool          `json:"available"`
	Reason     string        `json:"reason,omitempty"`
}

// Sources reports every known source and whether it can run. No network I/O.
func (s *Service) Sources() []SourceInfo {
	out := make([]SourceInfo, 0, len(domain.KnownSources()))
	for _, src := range domain.KnownSources() {
		info := SourceInfo{Source: src}
		f, ok := s.fetchers[src]
		if !ok {
			info.Reason = "not registered"
			out = append(out, info)
			continue
		}
		info.Registered = true
		info.Available = true
		if ac, ok := f.(domain.AvailabilityChecker); ok {
			if err := ac.Available(); err != nil {
				info.Available = false
				info.Reason = err.Error()
			}
		}
		out = append(out, info)
	}
	return out
}

// plan is a validated run request.
type plan struct {
	query       string
	sources     []domain.Source
	constraints map[domain.Source]domain.FetchConstraints
}

func (s *Service) prepare(query string, opts domain.RunOptions) (plan, error) {
	q, err := domain.ValidateQuery(query, s.opts.MaxQueryWords)
	if err != nil {
		return plan{}, err
	}
	if _, err := domain.ParseTimeFilter(string(opts.TimeFilter)); err != nil {
		return plan{}, err
	}

	p := plan{query: q, constraints: map[domain.Source]domain.FetchConstraints{}}
	sources := opts.EnabledSources
	if len(sources) == 0 {
		sources = s.order
	}
	seen := make(map[domain.Source]struct{}, len(sources))
	for _, raw := range sources {
		src, err := domain.ParseSource(string(raw))
		if err != nil {
			return plan{}, err
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		p.sources = append(p.sources, src)
	}
	for src, n := range opts.PerSourceLimits {
		if _, err := domain.ParseSource(string(src)); err != nil {
			return plan{}, err
		}
		if n < 1 {
			return plan{}, fmt.Errorf("limit for %s must be >= 1, got %d: %w", src, n, domain.ErrInvalidOptions)
		}
	}
	for _, src := range p.sources {
		p.constraints[src] = domain.FetchConstraints{
			Limit:      opts.PerSourceLimits[src],
			TimeFilter: opts.TimeFilter,
		}
	}
	return p, nil
}

// Run executes a run synchronously. Only invalid input returns an error;
// every pipeline outcome, FAILED included, comes back as a report.
// events may be nil. Sends never block; a full channel drops the event.
func (s *Service) Run(
	ctx context.Context, query string, opts domain.RunOptions, events chan<- domain.ProgressEvent,
) (domain.RunReport, error) {
	p, err := s.prepare(query, opts)
	if err != nil {
		return domain.RunReport{}, err
	}
	return s.execute(ctx, p, events), nil
}

// Stream validates the request and runs it in the background. The events
// channel is closed when the run reaches a terminal state, after which the
// report is delivered on the second channel.
func (s *Service) Stream(
	ctx context.Context, query string, opts domain.RunOptions,
) (<-chan domain.ProgressEvent, <-chan domain.RunReport, error) {
	p, err := s.prepare(query, opts)
	if err != nil {
		return nil, nil, err
	}
	events := make(chan domain.ProgressEvent, s.opts.EventBuffer)
	result := make(chan domain.RunReport, 1)
	go func() {
		defer close(result)
		report := s.execute(ctx, p, events)
		close(events)
		result <- report
	}()
	return events, result, nil
}

// sourceResult is one adapter outcome.
type sourceResult struct {
	source  domain.Source
	records []domain.NormalizedRecord
	err     error
	elapsed time.Duration
}

func (s *Service) execute(ctx context.Context, p plan, events chan<- domain.ProgressEvent) domain.RunReport {
	start := s.opts.Now()
	runID := s.opts.NewID()
	ctx, log := logpkg.With(ctx, zap.String("run_id", runID))

	report := domain.RunReport{
		RunID:            runID,
		Query:            p.query,
		State:            domain.StatePending,
		StartedAt:        start.UTC(),
		SourcesAttempted: append([]domain.Source{}, p.sources...),
		SourcesSucceeded: []domain.Source{},
		SourcesFailed:    []domain.Source{},
		SourceStatuses:   []domain.SourceStatus{},
		Corpus:           []domain.CorpusEntry{},
		Findings:         []domain.PainPointFinding{},
	}
	em := emitter{ch: events, runID: runID, start: start, now: s.opts.Now}
	em.stage(domain.StatePending)
	log.Info("run started", zap.String("query", p.query), zap.Int("sources", len(p.sources)))

	// FETCHING
	report.State = domain.StateFetching
	em.stage(report.State)
	perSource := s.fetchAll(ctx, p, &report, em)

	// AGGREGATING
	report.State = domain.StateAggregating
	em.stage(report.State)
	corpus := s.agg.Merge(ctx, perSource)
	report.Corpus = corpus.Entries
	report.CorpusSize = corpus.Len()
	report.CorpusStats = corpus.Stats
	metrics.CorpusSize.Observe(float64(corpus.Len()))

	// EXTRACTING
	report.State = domain.StateExtracting
	em.stage(report.State)
	res, err := s.ext.Extract(ctx, p.query, corpus)
	report.Extraction = &domain.ExtractionMeta{
		Model:           res.Model,
		PromptVersion:   res.PromptVersion,
		RecordsInPrompt: res.RecordsInPrompt,
		RepairAttempted: res.RepairAttempted,
		Usage:           res.Usage,
	}
	if err != nil {
		report.State = domain.StateFailed
		report.Error = extractionRunError(err)
		log.Warn("extraction failed", zap.Error(err))
	} else {
		report.State = domain.StateDone
		if res.Findings != nil {
			report.Findings = res.Findings
		}
		report.Narrative = res.Narrative
		report.ContentWarnings = res.ContentWarnings
	}

	elapsed := s.opts.Now().Sub(start)
	report.ElapsedMS = elapsed.Milliseconds()
	em.stage(report.State)

	metrics.RunsTotal.WithLabelValues(string(report.State), strconv.FormatBool(report.Partial)).Inc()
	metrics.RunDuration.WithLabelValues(string(report.State)).Observe(elapsed.Seconds())
	log.Info("run finished",
		zap.String("state", string(report.State)),
		zap.Bool("partial", report.Partial),
		zap.Int("corpus_size", report.CorpusSize),
		zap.Int("findings", len(report.Findings)),
		zap.Int64("elapsed_ms", report.ElapsedMS),
	)
	return report
}

// fetchAll runs every planned adapter concurrently under the soft deadline.
// Adapters still running when it passes are recorded as timeouts.
func (s *Service) fetchAll(
	ctx context.Context, p plan, report *domain.RunReport, em emitter,
) map[domain.Source][]domain.NormalizedRecord {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.TotalTimeout)
	defer cancel()

	outcomes := make(map[domain.Source]sourceResult, len(p.sources))
	results := make(chan sourceResult, len(p.sources))
	pending := 0

	var g errgroup.Group
	for _, src := range p.sources {
		f, ok := s.fetchers[src]
		if !ok {
			r := sourceResult{source: src, err: &domain.SourceError{
				Source: src, Kind: domain.FailureUnavailable,
				Err: fmt.Errorf("no adapter registered: %w", domain.ErrSourceUnavailable),
			}}
			outcomes[src] = r
			em.source(r, sourceStatus(r))
			continue
		}
		pending++
		c := p.constraints[src]
		g.Go(func() error {
			sctx, scancel := context.WithTimeout(fetchCtx, s.opts.SourceTimeout)
			defer scancel()
			sctx, _ = logpkg.With(sctx, zap.String("source", string(src)))

			started := s.opts.Now()
			recs, err := f.Fetch(sctx, p.query, c)
			results <- sourceResult{source: src, records: recs, err: err, elapsed: s.opts.Now().Sub(started)}
			return nil
		})
	}

	collect := func(r sourceResult) {
		outcomes[r.source] = r
		pending--
		em.source(r, sourceStatus(r))
	}
	for pending > 0 {
		select {
		case r := <-results:
			collect(r)
		case <-fetchCtx.Done():
			// drain whatever already finished, then give up on the rest
			for drained := false; !drained && pending > 0; {
				select {
				case r := <-results:
					collect(r)
				default:
					drained = true
				}
			}
			for _, src := range p.sources {
				if _, done := outcomes[src]; done {
					continue
				}
				r := sourceResult{source: src, err: &domain.SourceError{
					Source: src, Kind: domain.FailureTimeout,
					Err: fmt.Errorf("run deadline passed: %w", context.DeadlineExceeded),
				}, elapsed: s.opts.Now().Sub(em.start)}
				outcomes[src] = r
				em.source(r, sourceStatus(r))
			}
			pending = 0
		}
	}
	cancel()
	// adapters honor ctx, so this returns promptly once the deadline fired
	_ = g.Wait()

	perSource := make(map[domain.Source][]domain.NormalizedRecord)
	for _, src := range p.sources {
		r := outcomes[src]
		st := sourceStatus(r)
		report.SourceStatuses = append(report.SourceStatuses, st)
		if st.Outcome == domain.OutcomeSucceeded {
			report.SourcesSucceeded = append(report.SourcesSucceeded, src)
			perSource[src] = r.records
		} else {
			report.SourcesFailed = append(report.SourcesFailed, src)
		}
	}
	report.Partial = len(report.SourcesFailed) > 0 && len(report.SourcesSucceeded) > 0
	return perSource
}

// sourceStatus classifies an adapter outcome. Empty results count as failed.
func sourceStatus(r sourceResult) domain.SourceStatus {
	st := domain.SourceStatus{
		Source:    r.source,
		Records:   len(r.records),
		ElapsedMS: r.elapsed.Milliseconds(),
	}
	switch {
	case r.err != nil:
		st.Outcome = domain.OutcomeFailed
		st.Kind = domain.KindOf(r.err)
		st.Detail = r.err.Error()
		st.Records = 0
		var se *domain.SourceError
		if errors.As(r.err, &se) {
			st.Attempts = se.Attempts
		}
	case len(r.records) == 0:
		st.Outcome = domain.OutcomeFailed
		st.Kind = domain.FailureEmpty
	default:
		st.Outcome = domain.OutcomeSucceeded
	}
	return st
}

func extractionRunError(err error) *domain.RunError {
	kind := string(domain.ExtractionProvider)
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		kind = string(ee.Kind)
	}
	return &domain.RunError{Stage: domain.StateExtracting, Kind: kind, Message: err.Error()}
}

// emitter writes progress events without ever blocking the pipeline.
type emitter struct {
	ch    chan<- domain.ProgressEvent
	runID string
	start time.Time
	now   func() time.Time
}

func (e emitter) stage(state domain.RunState) {
	e.send(domain.ProgressEvent{Type: domain.EventStage, State: state})
}

func (e emitter) source(r sourceResult, st domain.SourceStatus) {
	e.send(domain.ProgressEvent{
		Type:    domain.EventSource,
		State:   domain.StateFetching,
		Source:  r.source,
		Outcome: st.Outcome,
		Kind:    st.Kind,
		Records: st.Records,
	})
}

func (e emitter) send(ev domain.ProgressEvent) {
	if e.ch == nil {
		return
	}
	now := e.now()
	ev.RunID = e.runID
	ev.At = now.UTC()
	ev.ElapsedMS = now.Sub(e.start).Milliseconds()
	select {
	case e.ch <- ev:
	default:
		metrics.EventsDroppedTotal.Inc()
	}
}
