// Package await implements the bounded waits shared by the timer and work managers.
package await

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
)

// Cond reports whether the awaited condition holds. When it does not, it returns
// a channel that is closed once the condition may have changed.
type Cond func() (ok bool, changed <-chan struct{}, err error)

// Until blocks until cond holds, the timeout elapses, or ctx is done.
//
// A timeout of domain.Immediate checks cond once without blocking and
// domain.Indefinite waits without limit. The timeout is measured with clk.
//
// Returns:
//   - true if cond holds.
//   - false with a nil error if the timeout elapsed first.
//   - ErrNegativeTimeout for a negative timeout.
//   - ErrWaitCancelled wrapping ctx.Err() if ctx ended first.
//   - Any error returned by cond.
func Until(ctx context.Context, clk clock.Clock, timeout time.Duration, cond Cond) (bool, error) {
	if timeout < 0 {
		return false, errs.New(errs.ErrNegativeTimeout, timeout.String())
	}

	ok, changed, err := cond()
	if err != nil || ok {
		return ok, err
	}
	if timeout == domain.Immediate {
		return false, nil
	}

	var deadline <-chan time.Time
	if timeout != domain.Indefinite {
		timer := clk.Timer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-changed:
		case <-deadline:
			ok, _, err = cond()
			return ok, err
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %w", errs.ErrWaitCancelled, ctx.Err())
		}

		ok, changed, err = cond()
		if err != nil || ok {
			return ok, err
		}
	}
}

// Signal lets waiters block until the next Broadcast.
//
// Signal carries no lock of its own: Wait and Broadcast must be called under
// the lock that guards the state the waiters inspect.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns a Signal with no pending broadcast.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns a channel closed by the next Broadcast.
func (s *Signal) Wait() <-chan struct{} {
	return s.ch
}

// Broadcast wakes every current waiter.
func (s *Signal) Broadcast() {
	close(s.ch)
	s.ch = make(chan struct{})
}
