package extract

import (
	"context"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// BudgetChecker is the local interface for token budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// BudgetStore persists token counters per budget window.
type BudgetStore interface {
	Add(ctx context.Context, w domain.BudgetWindow, tokens int64) error
	Used(ctx context.Context, w domain.BudgetWindow) (int64, error)
}
