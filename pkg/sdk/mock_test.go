package painradar

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
	healthuc "github.com/kailas-cloud/painradar/internal/usecase/health"
	runuc "github.com/kailas-cloud/painradar/internal/usecase/run"
)

// --- runUseCase mock ---

type mockRunUC struct {
	runFn     func(ctx context.Context, query string, opts domain.RunOptions) (domain.RunReport, error)
	streamFn  func(ctx context.Context, query string, opts domain.RunOptions) (<-chan domain.ProgressEvent, <-chan domain.RunReport, error)
	sourcesFn func() []runuc.SourceInfo
}

func (m *mockRunUC) Run(
	ctx context.Context, query string, opts domain.RunOptions, _ chan<- domain.ProgressEvent,
) (domain.RunReport, error) {
	return m.runFn(ctx, query, opts)
}

func (m *mockRunUC) Stream(
	ctx context.Context, query string, opts domain.RunOptions,
) (<-chan domain.ProgressEvent, <-chan domain.RunReport, error) {
	return m.streamFn(ctx, query, opts)
}

func (m *mockRunUC) Sources() []runuc.SourceInfo {
	return m.sourcesFn()
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report {
	return m.report
}

// --- pinger mock ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

// --- Completer stub ---

type stubCompleter struct {
	content string
	err     error
	calls   int
}

func (s *stubCompleter) Complete(context.Context, CompletionRequest) (CompletionResult, error) {
	s.calls++
	if s.err != nil {
		return CompletionResult{}, s.err
	}
	return CompletionResult{
		Content: s.content,
		Model:   "stub",
		Usage:   TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// --- helpers ---

func testClient(runSvc runUseCase, healthSvc healthUseCase, obs *observer) *Client {
	return &Client{
		store:     &mockPinger{},
		runSvc:    runSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}
}
