// Package retry implements exponential backoff as a small explicit state machine.
//
// A Machine is fed the outcome of every attempt and answers with a Decision:
// retry after a delay, or stop with a terminal Reason. Do drives a Machine
// against a Clock so tests can replace sleeping with a recording fake.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Reason is why the machine stopped.
type Reason string

const (
	ReasonSuccess      Reason = "success"
	ReasonNonRetryable Reason = "non_retryable"
	ReasonExhausted    Reason = "exhausted"
	ReasonCancelled    Reason = "cancelled"
)

// Policy configures backoff. Delay for attempt n (1-based) is
// BaseDelay * Multiplier^(n-1), plus up to Jitter of itself, capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultPolicy mirrors the provider defaults: 4 attempts starting at 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

// Validate keeps delays strictly increasing below the cap:
// with Jitter < Multiplier-1 the next un-jittered delay always exceeds the
// current jittered one.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max_attempts must be >= 1, got %d", p.MaxAttempts)
	case p.BaseDelay <= 0:
		return fmt.Errorf("base delay must be positive, got %s", p.BaseDelay)
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	case p.Multiplier <= 1:
		return fmt.Errorf("multiplier must be > 1, got %v", p.Multiplier)
	case p.Jitter < 0 || p.Jitter >= p.Multiplier-1:
		return fmt.Errorf("jitter must be in [0, multiplier-1), got %v", p.Jitter)
	}
	return nil
}

// Backoff returns the un-jittered, capped delay after the given failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Verdict is the caller's classification of one failed attempt.
type Verdict struct {
	Retryable  bool
	RetryAfter time.Duration
}

// Classifier maps an attempt error to a Verdict.
type Classifier func(err error) Verdict

// Decision is the machine's answer after one attempt.
type Decision struct {
	Attempt int
	Retry   bool
	Delay   time.Duration
	Reason  Reason
	Err     error
}

// Machine tracks attempt count and the previous delay of one retry loop.
type Machine struct {
	policy    Policy
	classify  Classifier
	rnd       func() float64
	attempt   int
	lastDelay time.Duration
	stopped   *Decision
}

// NewMachine creates a machine. rnd returns values in [0,1); nil uses math/rand/v2.
func NewMachine(p Policy, classify Classifier, rnd func() float64) *Machine {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Machine{policy: p, classify: classify, rnd: rnd}
}

// Next records the outcome of an attempt and decides what happens next.
// Once the machine has stopped, Next keeps returning the terminal decision.
func (m *Machine) Next(err error) Decision {
	if m.stopped != nil {
		return *m.stopped
	}
	m.attempt++

	switch {
	case err == nil:
		return m.stop(ReasonSuccess, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return m.stop(ReasonCancelled, err)
	}

	v := m.classify(err)
	if !v.Retryable {
		return m.stop(ReasonNonRetryable, err)
	}
	if m.attempt >= m.policy.MaxAttempts {
		return m.stop(ReasonExhausted, err)
	}

	delay := m.delay(v.RetryAfter)
	m.lastDelay = delay
	return Decision{Attempt: m.attempt, Retry: true, Delay: delay, Err: err}
}

// Cancel stops the machine from the outside, e.g. when a sleep was interrupted.
func (m *Machine) Cancel(err error) Decision {
	if m.stopped != nil {
		return *m.stopped
	}
	return m.stop(ReasonCancelled, err)
}

func (m *Machine) stop(reason Reason, err error) Decision {
	d := Decision{Attempt: m.attempt, Reason: reason, Err: err}
	m.stopped = &d
	return d
}

func (m *Machine) delay(retryAfter time.Duration) time.Duration {
	base := m.policy.Backoff(m.attempt)
	d := base + time.Duration(float64(base)*m.policy.Jitter*m.rnd())
	if retryAfter > d {
		d = retryAfter
	}
	if d > m.policy.MaxDelay {
		d = m.policy.MaxDelay
	}
	if d <= m.lastDelay && m.lastDelay < m.policy.MaxDelay {
		d = m.lastDelay + time.Millisecond
	}
	return d
}

// Clock abstracts waiting between attempts.
type Clock interface {
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on a timer.
type RealClock struct{}

// Sleep implements Clock.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op until the machine stops. onRetry, if set, is called before each sleep.
// The returned error is nil on success; on cancellation it wraps the context error
// so callers classify it as a timeout rather than as the last provider error.
func Do(
	ctx context.Context,
	m *Machine,
	clock Clock,
	op func(ctx context.Context) error,
	onRetry func(Decision),
) (Decision, error) {
	for {
		if err := ctx.Err(); err != nil {
			d := m.Cancel(err)
			return d, fmt.Errorf("before attempt %d: %w", d.Attempt+1, err)
		}

		err := op(ctx)
		if err != nil && ctx.Err() != nil {
			d := m.Next(ctx.Err())
			return d, fmt.Errorf("attempt %d interrupted: %w", d.Attempt, ctx.Err())
		}

		d := m.Next(err)
		if !d.Retry {
			return d, d.Err
		}
		if onRetry != nil {
			onRetry(d)
		}
		if serr := clock.Sleep(ctx, d.Delay); serr != nil {
			c := m.Cancel(serr)
			return c, fmt.Errorf("backoff after attempt %d: %w (last error: %v)", d.Attempt, serr, err)
		}
	}
}
