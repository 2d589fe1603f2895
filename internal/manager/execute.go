package manager

import (
	"time"

	"github.com/osmike/cadence/internal/domain"
	"github.com/osmike/cadence/internal/timer"
	"go.uber.org/zap"
)

// loop pops due timers and dispatches them until the manager starts stopping.
//
// While suspended nothing is popped; overdue timers stay in the queue and fire
// as soon as the manager resumes.
func (m *Manager) loop() {
	defer close(m.loopDone)

	for {
		m.mu.Lock()
		if m.stoppingLocked() {
			m.mu.Unlock()
			return
		}

		var (
			next    time.Time
			hasNext bool
		)
		if m.state == domain.Running {
			now := m.clock.Now()
			for _, t := range m.queue.PopDue(now) {
				m.dispatchLocked(t)
			}
			next, hasNext = m.queue.Next()
		}
		m.mu.Unlock()

		if !hasNext {
			<-m.kick
			continue
		}

		tm := m.clock.Timer(next.Sub(m.clock.Now()))
		// The clock may have moved between PopDue and creating the timer.
		if !m.clock.Now().Before(next) {
			tm.Stop()
			continue
		}
		select {
		case <-m.kick:
		case <-tm.C:
		}
		tm.Stop()
	}
}

// dispatchLocked hands a due timer to the pool.
func (m *Manager) dispatchLocked(t *timer.Timer) {
	t.Begin()
	m.submitLocked(t, func() { m.execute(t) })
}

// submitLocked runs fn on the pool and counts it as in flight until it settles.
func (m *Manager) submitLocked(t *timer.Timer, fn func()) {
	m.inFlight++
	if err := m.pool.Submit(fn); err != nil {
		m.inFlight--
		m.logger.Error("submit failed", zap.String("timer_id", t.ID()), zap.Error(err))
	}
}

// execute runs one expiration and decides what happens to the timer next.
func (m *Manager) execute(t *timer.Timer) {
	start := m.clock.Now()
	err := t.Expire()
	end := m.clock.Now()

	status := domain.ExecCompleted
	if err != nil {
		status = domain.ExecError
		m.logger.Warn("timer listener failed", zap.String("timer_id", t.ID()), zap.Error(err))
	}
	m.report(t, start, end, status, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	next, again := t.Finish(end, err)
	switch {
	case m.state == domain.Stopping:
		delete(m.timers, t.ID())
		t.MarkDone()
		if again && t.HasStopHook() {
			// Stop notification follows the execution that was running when stop began.
			m.mu.Unlock()
			m.notifyStop(t)
			m.mu.Lock()
		}
	case !again:
		delete(m.timers, t.ID())
	default:
		if err := m.queue.Insert(t.ID(), next, t); err != nil {
			m.logger.Error("reschedule failed", zap.String("timer_id", t.ID()), zap.Error(err))
			delete(m.timers, t.ID())
			break
		}
		m.wake()
	}

	m.inFlight--
	m.settleLocked()
}

// notify runs a cancel or stop notification submitted to the pool.
func (m *Manager) notify(t *timer.Timer, status domain.ExecStatus, fn func() error) {
	start := m.clock.Now()
	err := fn()
	if err != nil {
		m.logger.Warn("timer notification failed", zap.String("timer_id", t.ID()), zap.Error(err))
	}
	m.report(t, start, m.clock.Now(), status, err)

	m.mu.Lock()
	m.inFlight--
	m.settleLocked()
	m.mu.Unlock()
}

func (m *Manager) notifyStop(t *timer.Timer) {
	start := m.clock.Now()
	err := t.NotifyStop()
	if err != nil {
		m.logger.Warn("timer notification failed", zap.String("timer_id", t.ID()), zap.Error(err))
	}
	m.report(t, start, m.clock.Now(), domain.ExecStopped, err)
}

// settleLocked completes pending transitions once nothing is in flight and wakes waiters.
func (m *Manager) settleLocked() {
	if m.inFlight == 0 {
		switch m.state {
		case domain.Suspending:
			m.state = domain.Suspended
			m.logger.Info("timer manager suspended")
		case domain.Stopping:
			m.state = domain.Stopped
			m.pool.Close()
			m.logger.Info("timer manager stopped")
		}
	}
	m.changed.Broadcast()
}

func (m *Manager) report(t *timer.Timer, start, end time.Time, status domain.ExecStatus, err error) {
	if m.mon == nil {
		return
	}
	m.mon.SaveMetrics(domain.StateDTO{
		ID:            t.ID(),
		Manager:       m.name,
		Kind:          "timer",
		StartAt:       start,
		EndAt:         end,
		ExecutionTime: end.Sub(start).Nanoseconds(),
		Status:        status,
		Error:         err,
	})
}
