package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/painradar/internal/domain"
	"github.com/kailas-cloud/painradar/internal/metrics"
)

func TestInstrumentedCompleter_RecordsBudgetAndMetrics(t *testing.T) {
	budget := NewBudgetTracker("test-record", 10000, 100000, BudgetActionReject, zap.NewNop())
	inner := &scriptedCompleter{replies: []reply{{content: `{}`, usage: 1200}}}
	p := NewInstrumentedCompleter(inner, "test-record", "m", budget, zap.NewNop())

	res, err := p.Complete(context.Background(), domain.CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Usage.TotalTokens != 1200 {
		t.Errorf("expected usage passthrough, got %+v", res.Usage)
	}
	if budget.DailyUsed() != 1200 {
		t.Errorf("expected 1200 tokens recorded, got %d", budget.DailyUsed())
	}
	gauge := metrics.LLMBudgetTokensRemaining.WithLabelValues("test-record", "daily")
	if got := testutil.ToFloat64(gauge); got != 8800 {
		t.Errorf("expected remaining gauge 8800, got %v", got)
	}
}

func TestInstrumentedCompleter_BudgetRejection(t *testing.T) {
	budget := NewBudgetTracker("test-budget", 100, 0, BudgetActionReject, zap.NewNop())
	budget.Record(100)
	inner := &scriptedCompleter{}
	p := NewInstrumentedCompleter(inner, "test-budget", "m", budget, zap.NewNop())

	_, err := p.Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrModelQuota) {
		t.Fatalf("expected domain.ErrModelQuota, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("inner completer must not be called over budget, got %d calls", inner.calls)
	}
}

func TestInstrumentedCompleter_ErrorPassthrough(t *testing.T) {
	inner := &scriptedCompleter{replies: []reply{{err: domain.ErrModelAuth}}}
	p := NewInstrumentedCompleter(inner, "test-err", "m", nil, zap.NewNop())

	if _, err := p.Complete(context.Background(), domain.CompletionRequest{}); !errors.Is(err, domain.ErrModelAuth) {
		t.Fatalf("expected ErrModelAuth, got %v", err)
	}
}
