package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/bootstrap"
	"github.com/kailas-cloud/painradar/internal/config"
	"github.com/kailas-cloud/painradar/internal/db/memory"
	"github.com/kailas-cloud/painradar/internal/domain"
	sourceuc "github.com/kailas-cloud/painradar/internal/usecase/source"
)

// --- Mocks ---

type stubProvider struct{ src domain.Source }

func (p stubProvider) Source() domain.Source                    { return p.src }
func (p stubProvider) Configured() error                        { return nil }
func (p stubProvider) HardLimit() int                           { return 10 }
func (p stubProvider) Scopes(domain.FetchConstraints) []string { return []string{""} }

func (p stubProvider) Search(context.Context, string, string, domain.FetchConstraints) ([]domain.NormalizedRecord, error) {
	return []domain.NormalizedRecord{{
		ID:              "42",
		Source:          p.src,
		Title:           "Ask HN: why is payroll software so painful?",
		URL:             "https://news.ycombinator.com/item?id=42",
		EngagementScore: 80,
	}}, nil
}

type stubCompleter struct{ content string }

func (c stubCompleter) Complete(context.Context, domain.CompletionRequest) (domain.CompletionResult, error) {
	return domain.CompletionResult{Content: c.content, Model: "stub"}, nil
}

const validContent = `{"findings":[{"name":"Payroll pain","description":"Payroll tools are painful",` +
	`"severity":"medium","evidence":[{"ref":"R0","url":"https://news.ycombinator.com/item?id=42"}]}],` +
	`"narrative":"Payroll hurts [R0]."}`

func testCLI(content string) *cli {
	return &cli{
		loadConfig: func(string) (config.Config, error) {
			var cfg config.Config
			cfg.HTTP.Port = 8080
			cfg.ApplyDefaults()
			return cfg, nil
		},
		build: func(ctx context.Context, cfg *config.Config, _ *zap.Logger) (*bootstrap.App, error) {
			return bootstrap.Build(ctx, cfg, bootstrap.Deps{
				Store:     memory.NewStore(),
				Completer: stubCompleter{content: content},
				Providers: []sourceuc.Provider{stubProvider{src: domain.SourceHackerNews}},
			}, zap.NewNop())
		},
	}
}

func execute(t *testing.T, c *cli, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(c)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// --- Tests ---

func TestRun_Markdown(t *testing.T) {
	out, progress, err := execute(t, testCLI(validContent), "run", "payroll", "software", "--env", "local")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "# Pain points: payroll software") || !strings.Contains(out, "Payroll pain") {
		t.Errorf("unexpected report:\n%s", out)
	}
	for _, want := range []string{"PENDING", "FETCHING", "hackernews", "DONE"} {
		if !strings.Contains(progress, want) {
			t.Errorf("progress missing %q:\n%s", want, progress)
		}
	}
}

func TestRun_JSONQuiet(t *testing.T) {
	out, progress, err := execute(t, testCLI(validContent), "run", "payroll", "--format", "json", "-q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if progress != "" {
		t.Errorf("quiet run printed progress: %q", progress)
	}
	var report domain.RunReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("stdout is not a report: %v\n%s", err, out)
	}
	if report.State != domain.StateDone || len(report.Findings) != 1 {
		t.Errorf("report: state=%s findings=%d", report.State, len(report.Findings))
	}
}

func TestRun_FailedExitsNonZero(t *testing.T) {
	out, _, err := execute(t, testCLI(`{"narrative":"no findings key"}`), "run", "payroll", "-q")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(out, "## Run failed") {
		t.Errorf("failed report must still be printed:\n%s", out)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown source", []string{"run", "crm", "--sources", "myspace"}, domain.ErrUnknownSource},
		{"bad time", []string{"run", "crm", "--time", "decade"}, domain.ErrInvalidOptions},
		{"bad limit", []string{"run", "crm", "--limit", "reddit=0"}, domain.ErrInvalidOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, testCLI(validContent), tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := execute(t, testCLI(validContent), "run", "crm", "--format", "xml"); err == nil {
		t.Error("unknown format must fail")
	}
	if _, _, err := execute(t, testCLI(validContent), "run"); err == nil {
		t.Error("missing query must fail")
	}
}

func TestSources(t *testing.T) {
	out, _, err := execute(t, testCLI(validContent), "sources")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if !strings.Contains(out, "hackernews") || !strings.Contains(out, "available") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "disabled") {
		t.Errorf("unregistered sources must show as disabled:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, testCLI(validContent), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "painctl dev") {
		t.Errorf("got %q", out)
	}
}

func TestPrintEvent(t *testing.T) {
	tests := []struct {
		ev   domain.ProgressEvent
		want string
	}{
		{domain.ProgressEvent{Type: domain.EventStage, State: domain.StateFetching, ElapsedMS: 100}, "[   0.1s] FETCHING\n"},
		{domain.ProgressEvent{Type: domain.EventStage, State: domain.StateDone, ElapsedMS: 2500}, "[   2.5s] run DONE\n"},
		{domain.ProgressEvent{Type: domain.EventStage, State: domain.StateFailed}, "[   0.0s] run FAILED\n"},
		{domain.ProgressEvent{
			Type: domain.EventSource, Source: domain.SourceReddit,
			Outcome: domain.OutcomeSucceeded, Records: 4, ElapsedMS: 1200,
		}, "[   1.2s] reddit     4 records\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		printEvent(&buf, tt.ev)
		if buf.String() != tt.want {
			t.Errorf("printEvent(%+v) = %q, want %q", tt.ev, buf.String(), tt.want)
		}
	}
}
