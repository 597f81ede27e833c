package painradar

import (
	"context"
	"errors"
	"sort"
	"time"

	healthuc "github.com/kailas-cloud/painradar/internal/usecase/health"
)

// Health status values.
const (
	HealthOK       = string(healthuc.Healthy)
	HealthDegraded = string(healthuc.Degraded)
	HealthError    = string(healthuc.Unhealthy)
)

// HealthStatus is the aggregated state of the store, the language model and
// the enabled sources. Checks maps "database", "llm" and "source:<name>" to
// "ok", "error" or "disabled".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// OK reports whether every component passed.
func (h HealthStatus) OK() bool { return h.Status == HealthOK }

// Failing lists the components whose check failed, sorted by name.
func (h HealthStatus) Failing() []string {
	var out []string
	for name, res := range h.Checks {
		if res == string(healthuc.CheckError) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Health checks the store, the language model and every enabled source.
// A degraded system can still run; an observed error is recorded only when
// nothing is usable.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	hs := HealthStatus{
		Status: string(report.Status),
		Checks: make(map[string]string, len(report.Checks)),
	}
	for name, res := range report.Checks {
		hs.Checks[name] = string(res)
	}

	var err error
	if report.Status == healthuc.Unhealthy {
		err = errUnhealthy
	}
	c.obs.observe("health", start, err)
	return hs
}

var errUnhealthy = errors.New("painradar: no component is healthy")

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
