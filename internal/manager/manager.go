// Package manager implements the timer manager: a timing loop that pops due
// timers from the pending queue and hands them to a worker pool.
package manager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/osmike/cadence/internal/await"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/osmike/cadence/internal/pool"
	"github.com/osmike/cadence/internal/queue"
	"github.com/osmike/cadence/internal/timer"
	"go.uber.org/zap"
)

// Manager schedules TimerListeners and runs them on a bounded worker pool.
//
// A single mutex guards the pending queue, the timer table and the manager
// state. Listeners always run outside of it.
type Manager struct {
	name   string
	clock  clock.Clock
	logger *zap.Logger
	mon    domain.Monitoring
	pool   *pool.Pool

	mu       sync.Mutex
	state    domain.ManagerState
	queue    *queue.Queue[*timer.Timer]
	timers   map[string]*timer.Timer
	inFlight int
	changed  *await.Signal

	kick     chan struct{}
	loopDone chan struct{}
}

// New creates a Manager in the Running state and starts its timing loop.
//
// Parameters:
//   - cfg: Manager settings. Zero values fall back to defaults.
//   - mon: Monitoring receiving one StateDTO per finished execution. May be nil.
//
// Returns:
//   - A running Manager. Stop must be called to release its goroutines.
func New(cfg domain.TimerManagerConfig, mon domain.Monitoring) *Manager {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	logger = logger.Named("timers").With(zap.String("manager", name))

	m := &Manager{
		name:     name,
		clock:    clk,
		logger:   logger,
		mon:      mon,
		pool:     pool.New(cfg.Pool, clk, logger),
		state:    domain.Running,
		queue:    queue.New[*timer.Timer](),
		timers:   make(map[string]*timer.Timer),
		changed:  await.NewSignal(),
		kick:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
	go m.loop()
	return m
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// Schedule schedules l for a single execution after delay.
func (m *Manager) Schedule(ctx context.Context, l domain.TimerListener, delay time.Duration) (domain.Timer, error) {
	return m.ScheduleTimer(ctx, domain.TimerConfig{Listener: l, Mode: domain.OneShot, Delay: delay})
}

// ScheduleAt schedules l for a single execution at the given time.
// A time in the past expires immediately.
func (m *Manager) ScheduleAt(ctx context.Context, l domain.TimerListener, at time.Time) (domain.Timer, error) {
	if at.IsZero() {
		if l == nil {
			return nil, errs.ErrNilListener
		}
		return nil, errs.ErrZeroTime
	}
	return m.ScheduleTimer(ctx, domain.TimerConfig{Listener: l, Mode: domain.OneShot, FirstTime: at})
}

// ScheduleWithFixedDelay schedules l to run after delay and then repeatedly,
// period after each completion. A zero period schedules a single execution.
func (m *Manager) ScheduleWithFixedDelay(ctx context.Context, l domain.TimerListener, delay, period time.Duration) (domain.Timer, error) {
	return m.ScheduleTimer(ctx, domain.TimerConfig{Listener: l, Mode: domain.FixedDelay, Delay: delay, Period: period})
}

// ScheduleAtFixedRate schedules l to run after delay and then on the grid
// first + k*period. A zero period schedules a single execution.
func (m *Manager) ScheduleAtFixedRate(ctx context.Context, l domain.TimerListener, delay, period time.Duration) (domain.Timer, error) {
	return m.ScheduleTimer(ctx, domain.TimerConfig{Listener: l, Mode: domain.FixedRate, Delay: delay, Period: period})
}

// ScheduleCron schedules l to run on every tick of a five-field cron expression.
func (m *Manager) ScheduleCron(ctx context.Context, l domain.TimerListener, expr string) (domain.Timer, error) {
	if expr == "" {
		if l == nil {
			return nil, errs.ErrNilListener
		}
		return nil, errs.New(errs.ErrInvalidCron, "empty expression")
	}
	return m.ScheduleTimer(ctx, domain.TimerConfig{Listener: l, Mode: domain.Cron, CronExpr: expr})
}

// ScheduleTimer schedules a timer described by cfg.
//
// The arguments are validated before the manager state, so a usage error is
// reported even on a stopped manager.
//
// Returns:
//   - The timer handle.
//   - A usage error for an invalid cfg.
//   - ErrStopped once Stop has been called.
func (m *Manager) ScheduleTimer(ctx context.Context, cfg domain.TimerConfig) (domain.Timer, error) {
	id := "tmr_" + uuid.New().String()
	t, err := timer.New(ctx, id, cfg, m.clock.Now(), m)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stoppingLocked() {
		return nil, errs.New(errs.ErrStopped, m.name)
	}
	if err := m.queue.Insert(id, t.ScheduledAt(), t); err != nil {
		return nil, err
	}
	m.timers[id] = t
	m.wake()

	m.logger.Debug("timer scheduled",
		zap.String("timer_id", id),
		zap.String("mode", string(t.Mode())),
		zap.Time("first", t.ScheduledAt()),
	)
	return t, nil
}

// Timers returns a snapshot of every timer that may still execute, ordered by scheduled time.
func (m *Manager) Timers() []domain.TimerState {
	m.mu.Lock()
	out := make([]domain.TimerState, 0, len(m.timers))
	for _, t := range m.timers {
		out = append(out, t.Snapshot())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

// CancelTimer implements timer.Owner.
func (m *Manager) CancelTimer(t *timer.Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stoppingLocked() || !t.MarkCancelled() {
		return false
	}
	if !t.Running() {
		m.queue.Remove(t.ID())
		delete(m.timers, t.ID())
	}
	if t.HasCancelHook() {
		m.submitLocked(t, func() { m.notify(t, domain.ExecCancelled, t.NotifyCancel) })
	}
	m.logger.Debug("timer cancelled", zap.String("timer_id", t.ID()))
	return true
}

// ScheduledTime implements timer.Owner.
func (m *Manager) ScheduledTime(t *timer.Timer) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Stopped {
		return time.Time{}, errs.New(errs.ErrStopped, m.name)
	}
	return t.ScheduledAt(), nil
}

// Stopped implements timer.Owner.
func (m *Manager) Stopped() bool {
	return m.IsStopped()
}

func (m *Manager) stoppingLocked() bool {
	return m.state == domain.Stopping || m.state == domain.Stopped
}

// wake nudges the timing loop without blocking.
func (m *Manager) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}
