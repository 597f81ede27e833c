package domain

import "time"

// BudgetPeriod is the reset cadence of a token budget.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetWindow names one persisted token counter: a provider's usage in one
// UTC day or month. Start is the first instant of the window.
type BudgetWindow struct {
	Provider string
	Period   BudgetPeriod
	Start    time.Time
}

// DailyWindow returns the day window containing t.
func DailyWindow(provider string, t time.Time) BudgetWindow {
	t = t.UTC()
	return BudgetWindow{
		Provider: provider,
		Period:   BudgetDaily,
		Start:    time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// MonthlyWindow returns the month window containing t.
func MonthlyWindow(provider string, t time.Time) BudgetWindow {
	t = t.UTC()
	return BudgetWindow{
		Provider: provider,
		Period:   BudgetMonthly,
		Start:    time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
}

// Label formats Start at the period's resolution (2006-01-02 or 2006-01).
func (w BudgetWindow) Label() string {
	if w.Period == BudgetDaily {
		return w.Start.Format("2006-01-02")
	}
	return w.Start.Format("2006-01")
}
