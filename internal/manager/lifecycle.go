package manager

import (
	"context"
	"time"

	"github.com/osmike/cadence/internal/await"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"go.uber.org/zap"
)

// Suspend stops firing timers. It returns without waiting for running listeners:
// the manager is Suspending until they complete and Suspended afterwards.
//
// Returns:
//   - ErrStopped if the manager is stopping or stopped.
//   - ErrInvalidTransition if the manager is not running.
func (m *Manager) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case domain.Running:
		m.state = domain.Suspending
		m.logger.Info("timer manager suspending", zap.Int("in_flight", m.inFlight))
		m.settleLocked()
		return nil
	case domain.Stopping, domain.Stopped:
		return errs.New(errs.ErrStopped, m.name)
	default:
		return errs.New(errs.ErrInvalidTransition, string(m.state)+" -> "+string(domain.Suspending))
	}
}

// Resume restarts a suspended manager. Timers that became due while suspended
// fire immediately, once each.
//
// Returns:
//   - ErrStopped if the manager is stopping or stopped.
//   - ErrInvalidTransition if the manager is not suspended.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case domain.Suspended:
		m.state = domain.Running
		m.logger.Info("timer manager resumed", zap.Int("pending", m.queue.Len()))
		m.changed.Broadcast()
		m.wake()
		return nil
	case domain.Stopping, domain.Stopped:
		return errs.New(errs.ErrStopped, m.name)
	default:
		return errs.New(errs.ErrInvalidTransition, string(m.state)+" -> "+string(domain.Running))
	}
}

// Stop rejects new schedules and drops every pending timer. Running listeners
// finish, then listeners implementing StopTimerListener receive their stop
// notification. The manager is Stopped once all of that has completed.
//
// Returns:
//   - ErrStopped if Stop was already called.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stoppingLocked() {
		return errs.New(errs.ErrStopped, m.name)
	}
	m.state = domain.Stopping

	pending := m.queue.Drain()
	for _, t := range pending {
		t.MarkDone()
		delete(m.timers, t.ID())
		if t.HasStopHook() {
			t := t
			m.submitLocked(t, func() { m.notify(t, domain.ExecStopped, t.NotifyStop) })
		}
	}
	m.logger.Info("timer manager stopping",
		zap.Int("pending", len(pending)),
		zap.Int("in_flight", m.inFlight),
	)

	m.settleLocked()
	m.wake()
	return nil
}

// IsSuspending reports whether the manager is suspending or suspended.
// It fails with ErrStopped once the manager has stopped.
func (m *Manager) IsSuspending() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Stopped {
		return false, errs.New(errs.ErrStopped, m.name)
	}
	return m.state == domain.Suspending || m.state == domain.Suspended, nil
}

// IsSuspended reports whether every listener has completed following a suspend.
// It fails with ErrStopped once the manager has stopped.
func (m *Manager) IsSuspended() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Stopped {
		return false, errs.New(errs.ErrStopped, m.name)
	}
	return m.state == domain.Suspended, nil
}

// IsStopping reports whether the manager is stopping or stopped.
func (m *Manager) IsStopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stoppingLocked()
}

// IsStopped reports whether every listener and stop notification has completed after a stop.
func (m *Manager) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.Stopped
}

// State returns the current lifecycle state.
func (m *Manager) State() domain.ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WaitForSuspend blocks until the manager is suspended, the timeout elapses or ctx ends.
//
// Returns:
//   - true once suspended, false on timeout.
//   - ErrStopped if the manager is or becomes stopping.
//   - ErrNegativeTimeout or ErrWaitCancelled, see await.Until.
func (m *Manager) WaitForSuspend(ctx context.Context, timeout time.Duration) (bool, error) {
	return await.Until(ctx, m.clock, timeout, func() (bool, <-chan struct{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stoppingLocked() {
			return false, nil, errs.New(errs.ErrStopped, m.name)
		}
		return m.state == domain.Suspended, m.changed.Wait(), nil
	})
}

// WaitForStop blocks until the manager is stopped, the timeout elapses or ctx ends.
func (m *Manager) WaitForStop(ctx context.Context, timeout time.Duration) (bool, error) {
	return await.Until(ctx, m.clock, timeout, func() (bool, <-chan struct{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.state == domain.Stopped, m.changed.Wait(), nil
	})
}
