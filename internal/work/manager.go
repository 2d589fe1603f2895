// Package work implements the work manager: asynchronous dispatch of Work
// with listener events and completion waits.
package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/osmike/cadence/internal/await"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/osmike/cadence/internal/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Manager dispatches Work to a bounded worker pool, or to a dedicated
// goroutine for daemon work.
type Manager struct {
	name      string
	clock     clock.Clock
	logger    *zap.Logger
	mon       domain.Monitoring
	pool      *pool.Pool
	limiter   *rate.Limiter
	maxQueued int

	mu       sync.Mutex
	state    domain.ManagerState
	items    map[string]*Item
	queued   int
	inFlight int
	changed  *await.Signal
}

// New creates a running Manager.
//
// Parameters:
//   - cfg: Manager settings. Zero values fall back to defaults.
//   - mon: Monitoring receiving one StateDTO per rejected or completed item. May be nil.
func New(cfg domain.WorkManagerConfig, mon domain.Monitoring) *Manager {
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
	logger = logger.Named("work").With(zap.String("manager", name))

	m := &Manager{
		name:      name,
		clock:     clk,
		logger:    logger,
		mon:       mon,
		pool:      pool.New(cfg.Pool, clk, logger),
		maxQueued: cfg.MaxQueued,
		state:     domain.Running,
		items:     make(map[string]*Item),
		changed:   await.NewSignal(),
	}
	if cfg.SubmitRate > 0 {
		burst := cfg.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), burst)
	}
	return m
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// Stats returns a snapshot of the manager counters. Pending counts accepted
// items that have not finished, Queued those waiting for a pool worker.
// Started may briefly include items being rejected.
func (m *Manager) Stats() domain.WorkStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.WorkStats{
		Name:    m.name,
		State:   m.state,
		Pending: len(m.items),
		Queued:  m.queued,
		Started: len(m.items) - m.queued,
	}
}

// Schedule dispatches w for asynchronous execution.
func (m *Manager) Schedule(ctx context.Context, w domain.Work) (domain.WorkItem, error) {
	return m.ScheduleWithListener(ctx, w, nil)
}

// ScheduleWithListener dispatches w and reports its progress to l.
//
// The accepted event is delivered before ScheduleWithListener returns. The item
// is then either rejected (rate limit, full backlog, ctx ended before start, or
// Stop before start) or started and completed.
//
// Parameters:
//   - ctx: Its values are visible to the work. Ending it before the work starts rejects the item.
//   - w: The work to run.
//   - l: Optional listener.
//
// Returns:
//   - The work item.
//   - ErrNilWork for a nil w, ErrStopped once Stop has been called.
func (m *Manager) ScheduleWithListener(ctx context.Context, w domain.Work, l domain.WorkListener) (domain.WorkItem, error) {
	if w == nil {
		return nil, errs.ErrNilWork
	}
	if ctx == nil {
		ctx = context.Background()
	}

	it := newItem(ctx, "wrk_"+uuid.New().String(), w, l)
	it.events.Lock()

	m.mu.Lock()
	if m.state != domain.Running {
		m.mu.Unlock()
		it.events.Unlock()
		it.cancel()
		return nil, errs.New(errs.ErrStopped, m.name)
	}

	var reason error
	switch {
	case m.limiter != nil && !m.limiter.AllowN(m.clock.Now(), 1):
		reason = errs.ErrRateLimited
	case !it.daemon && m.maxQueued > 0 && m.queued >= m.maxQueued:
		reason = errs.New(errs.ErrBacklogFull, fmt.Sprintf("limit %d", m.maxQueued))
	case !it.daemon:
		it.queued = true
		m.queued++
	}
	m.items[it.id] = it
	m.inFlight++
	m.mu.Unlock()

	m.emit(it, domain.WorkEvent{Type: domain.WorkAccepted, Item: it})
	if reason != nil {
		m.rejectLocked(it, reason)
		it.events.Unlock()
		return it, nil
	}
	it.events.Unlock()

	if it.daemon {
		go m.run(it)
		return it, nil
	}
	if err := m.pool.Submit(func() { m.run(it) }); err != nil {
		m.reject(it, err)
	}
	return it, nil
}

// run starts an accepted item unless it was rejected meanwhile.
func (m *Manager) run(it *Item) {
	it.events.Lock()
	if it.Status() != domain.WorkAccepted {
		it.events.Unlock()
		return
	}
	if err := it.parent.Err(); err != nil {
		m.rejectLocked(it, context.Cause(it.parent))
		it.events.Unlock()
		return
	}
	if !m.begin(it) {
		m.rejectLocked(it, errs.New(errs.ErrStopped, m.name))
		it.events.Unlock()
		return
	}
	m.emit(it, domain.WorkEvent{Type: domain.WorkStarted, Item: it})
	it.events.Unlock()

	start := m.clock.Now()
	value, runErr := it.execute()
	end := m.clock.Now()

	it.events.Lock()
	err := it.complete(value, runErr)
	m.emit(it, domain.WorkEvent{Type: domain.WorkCompleted, Item: it, Err: err})
	close(it.done)
	it.events.Unlock()

	status := domain.ExecCompleted
	if err != nil {
		status = domain.ExecError
		m.logger.Warn("work failed", zap.String("item_id", it.id), zap.Error(err))
	}
	m.report(it, start, end, status, err)
	m.finish(it)
}

// reject rejects it if it has not started yet. It reports whether it did.
func (m *Manager) reject(it *Item, reason error) bool {
	it.events.Lock()
	defer it.events.Unlock()
	if it.Status() != domain.WorkAccepted {
		return false
	}
	m.rejectLocked(it, reason)
	return true
}

// rejectLocked rejects an accepted item. The caller holds it.events.
func (m *Manager) rejectLocked(it *Item, reason error) {
	rej := it.reject(reason)
	m.emit(it, domain.WorkEvent{Type: domain.WorkRejected, Item: it, Err: rej})
	close(it.done)

	m.logger.Debug("work rejected", zap.String("item_id", it.id), zap.Error(reason))
	now := m.clock.Now()
	m.report(it, time.Time{}, now, domain.ExecRejected, rej)
	m.finish(it)
}

// begin marks it Started unless Stop was called. Checking the state and
// moving the status under one lock lets Stop see either a rejected or a
// started item, never one that starts unreleased.
func (m *Manager) begin(it *Item) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.Running {
		return false
	}
	if it.queued {
		it.queued = false
		m.queued--
	}
	it.setStatus(domain.WorkStarted)
	return true
}

// finish forgets a terminal item and settles a pending stop.
func (m *Manager) finish(it *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.queued {
		it.queued = false
		m.queued--
	}
	delete(m.items, it.id)
	m.inFlight--
	m.settleLocked()
}

func (m *Manager) settleLocked() {
	if m.state == domain.Stopping && m.inFlight == 0 {
		m.state = domain.Stopped
		m.pool.Close()
		m.logger.Info("work manager stopped")
	}
	m.changed.Broadcast()
}

// emit delivers ev to the item listener. A panicking listener is logged and ignored.
func (m *Manager) emit(it *Item, ev domain.WorkEvent) {
	if it.listener == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("work listener panicked",
				zap.String("item_id", it.id),
				zap.Stringer("event", ev.Type),
				zap.Any("panic", r),
			)
		}
	}()
	ctx := it.eventCtx
	switch ev.Type {
	case domain.WorkAccepted:
		it.listener.WorkAccepted(ctx, ev)
	case domain.WorkRejected:
		it.listener.WorkRejected(ctx, ev)
	case domain.WorkStarted:
		it.listener.WorkStarted(ctx, ev)
	case domain.WorkCompleted:
		it.listener.WorkCompleted(ctx, ev)
	}
}

func (m *Manager) report(it *Item, start, end time.Time, status domain.ExecStatus, err error) {
	if m.mon == nil {
		return
	}
	var execTime int64
	if !start.IsZero() {
		execTime = end.Sub(start).Nanoseconds()
	}
	m.mon.SaveMetrics(domain.StateDTO{
		ID:            it.id,
		Manager:       m.name,
		Kind:          "work",
		StartAt:       start,
		EndAt:         end,
		ExecutionTime: execTime,
		Status:        status,
		Error:         err,
	})
}
