package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/painradar/internal/domain"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockLLMChecker struct {
	err error
}

func (m *mockLLMChecker) HealthCheck(_ context.Context) error { return m.err }

type mockSource struct {
	src domain.Source
	err error
}

func (m *mockSource) Source() domain.Source { return m.src }
func (m *mockSource) Available() error      { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockLLMChecker{}, &mockSource{src: domain.SourceReddit})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK || r.Checks["llm"] != CheckOK {
		t.Errorf("unexpected checks: %v", r.Checks)
	}
	if r.Checks["source:reddit"] != CheckOK {
		t.Errorf("expected source:reddit %q, got %q", CheckOK, r.Checks["source:reddit"])
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, &mockLLMChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if r.Checks["llm"] != CheckOK {
		t.Errorf("expected llm %q, got %q", CheckOK, r.Checks["llm"])
	}
}

func TestCheck_LLMError(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockLLMChecker{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["llm"] != CheckError {
		t.Errorf("expected llm %q, got %q", CheckError, r.Checks["llm"])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(
		&mockDBPinger{err: errors.New("db down")},
		&mockLLMChecker{err: errors.New("llm down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoLLM(t *testing.T) {
	svc := New(&mockDBPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["llm"]; ok {
		t.Error("llm check should be absent when llm is nil")
	}
}

func TestCheck_Sources(t *testing.T) {
	disabled := &mockSource{src: domain.SourceTwitter, err: domain.ErrSourceUnavailable}

	r := New(&mockDBPinger{}, nil, &mockSource{src: domain.SourceHackerNews}, disabled).Check(context.Background())
	if r.Status != Healthy {
		t.Errorf("a disabled source must not degrade health, got %q", r.Status)
	}
	if r.Checks["source:twitter"] != CheckDisabled {
		t.Errorf("expected source:twitter %q, got %q", CheckDisabled, r.Checks["source:twitter"])
	}

	r = New(&mockDBPinger{}, nil, disabled).Check(context.Background())
	if r.Status != Degraded {
		t.Errorf("expected %q with no usable source, got %q", Degraded, r.Status)
	}
}
