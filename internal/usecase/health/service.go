package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled marks a source that is switched off or has no credentials.
	// It does not affect the aggregated status.
	CheckDisabled CheckResult = "disabled"
)

// defaultCheckTimeout bounds each network check.
const defaultCheckTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	llm     LLMChecker
	sources []SourceChecker
	timeout time.Duration
}

// New creates a Service. llm can be nil.
func New(db DBPinger, llm LLMChecker, sources ...SourceChecker) *Service {
	return &Service{db: db, llm: llm, sources: sources, timeout: defaultCheckTimeout}
}

// Check runs health checks against all components.
// Everything failing is Unhealthy; some failing, or no usable source, is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	failed, total := 0, 0

	record := func(name string, err error) {
		total++
		if err != nil {
			failed++
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	record("database", s.ping(ctx, s.db.Ping))
	if s.llm != nil {
		record("llm", s.ping(ctx, s.llm.HealthCheck))
	}

	usable := 0
	for _, src := range s.sources {
		name := "source:" + string(src.Source())
		if err := src.Available(); err != nil {
			checks[name] = CheckDisabled
			continue
		}
		checks[name] = CheckOK
		usable++
	}

	status := Healthy
	switch {
	case failed == total:
		status = Unhealthy
	case failed > 0:
		status = Degraded
	case len(s.sources) > 0 && usable == 0:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func (s *Service) ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}
