// Package timer holds a single scheduled listener and the rules that move it
// from one execution to the next.
package timer

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
)

// Owner is the manager a Timer belongs to. The handle methods that read
// mutable state go through it so they run under the manager's lock.
type Owner interface {
	// CancelTimer cancels t and reports whether a future execution was prevented.
	CancelTimer(t *Timer) bool

	// ScheduledTime returns the scheduled time of the current or next execution of t.
	ScheduledTime(t *Timer) (time.Time, error)

	// Stopped reports whether the manager has stopped.
	Stopped() bool
}

// Timer is a scheduled listener together with its repeat rule.
//
// Identity fields never change after New. The remaining fields are guarded by
// the owner's lock: every method documented as "lock held" must only be called
// while holding it.
type Timer struct {
	id       string
	listener domain.TimerListener
	onCancel func(ctx context.Context, t domain.Timer)
	onStop   func(ctx context.Context, t domain.Timer)
	mode     domain.RepeatMode
	period   time.Duration
	cronExpr string
	origin   time.Time
	ctx      context.Context
	owner    Owner

	slot        int64
	scheduledAt time.Time
	running     bool
	cancelled   bool
	done        bool
	runs        int64
	lastErr     error
}

// New validates cfg and builds a Timer whose first execution is derived from now.
//
// The listener's optional capabilities are detected here: a CancelTimerListener
// or StopTimerListener receives notifications, as does a domain.TimerHooks with
// the matching callback set.
//
// Parameters:
//   - ctx: Context whose values are handed to every callback. Its cancellation is dropped.
//   - id: Unique timer identifier.
//   - cfg: Timer description.
//   - now: Current time of the manager clock.
//   - owner: The manager that will run the timer.
//
// Returns:
//   - The new Timer or a usage error describing the invalid field.
func New(ctx context.Context, id string, cfg domain.TimerConfig, now time.Time, owner Owner) (*Timer, error) {
	if cfg.Listener == nil {
		return nil, errs.ErrNilListener
	}
	if cfg.Delay < 0 {
		return nil, errs.New(errs.ErrNegativeDelay, cfg.Delay.String())
	}
	if cfg.Period < 0 {
		return nil, errs.New(errs.ErrNegativePeriod, cfg.Period.String())
	}

	mode, err := resolveMode(cfg)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	t := &Timer{
		id:       id,
		listener: cfg.Listener,
		mode:     mode,
		ctx:      context.WithoutCancel(ctx),
		owner:    owner,
	}
	t.bindHooks(cfg.Listener)

	switch mode {
	case domain.Cron:
		t.cronExpr = strings.TrimSpace(cfg.CronExpr)
		from := now
		if !cfg.FirstTime.IsZero() {
			from = cfg.FirstTime
		} else if cfg.Delay > 0 {
			from = now.Add(cfg.Delay)
		}
		first, err := NextCron(t.cronExpr, from)
		if err != nil {
			return nil, err
		}
		t.origin = first
	default:
		t.period = cfg.Period
		if cfg.FirstTime.IsZero() {
			t.origin = now.Add(cfg.Delay)
		} else {
			t.origin = cfg.FirstTime
		}
	}
	t.scheduledAt = t.origin
	return t, nil
}

func resolveMode(cfg domain.TimerConfig) (domain.RepeatMode, error) {
	if cfg.CronExpr != "" {
		if cfg.Period > 0 || (cfg.Mode != "" && cfg.Mode != domain.Cron) {
			return "", errs.ErrMixedScheduleType
		}
		if err := ValidateCron(cfg.CronExpr); err != nil {
			return "", err
		}
		return domain.Cron, nil
	}

	switch cfg.Mode {
	case domain.Cron:
		return "", errs.New(errs.ErrInvalidCron, "empty expression")
	case "", domain.OneShot, domain.FixedRate, domain.FixedDelay:
	default:
		return "", errs.New(errs.ErrUnknownMode, string(cfg.Mode))
	}

	if cfg.Period == 0 {
		return domain.OneShot, nil
	}
	if cfg.Mode == "" || cfg.Mode == domain.OneShot {
		return domain.FixedDelay, nil
	}
	return cfg.Mode, nil
}

func (t *Timer) bindHooks(l domain.TimerListener) {
	switch h := l.(type) {
	case domain.TimerHooks:
		t.onCancel, t.onStop = h.OnCancel, h.OnStop
	case *domain.TimerHooks:
		t.onCancel, t.onStop = h.OnCancel, h.OnStop
	default:
		if c, ok := l.(domain.CancelTimerListener); ok {
			t.onCancel = c.TimerCancelled
		}
		if s, ok := l.(domain.StopTimerListener); ok {
			t.onStop = s.TimerStopped
		}
	}
}

// ID returns the unique identifier of the timer.
func (t *Timer) ID() string { return t.id }

// Period returns the repeat period, zero for one-shot and cron timers.
func (t *Timer) Period() time.Duration { return t.period }

// Mode returns the repeat mode.
func (t *Timer) Mode() domain.RepeatMode { return t.mode }

// Cancel cancels the timer. See domain.Timer.
func (t *Timer) Cancel() bool {
	return t.owner.CancelTimer(t)
}

// Listener returns the listener, or ErrStopped once the manager has stopped.
func (t *Timer) Listener() (domain.TimerListener, error) {
	if t.owner.Stopped() {
		return nil, errs.New(errs.ErrStopped, t.id)
	}
	return t.listener, nil
}

// ScheduledExecutionTime returns the scheduled time of the current or next execution.
func (t *Timer) ScheduledExecutionTime() (time.Time, error) {
	return t.owner.ScheduledTime(t)
}

// Context returns the context handed to callbacks.
func (t *Timer) Context() context.Context { return t.ctx }

// HasCancelHook reports whether the listener takes cancel notifications.
func (t *Timer) HasCancelHook() bool { return t.onCancel != nil }

// HasStopHook reports whether the listener takes stop notifications.
func (t *Timer) HasStopHook() bool { return t.onStop != nil }

// Repeating reports whether the timer executes more than once.
func (t *Timer) Repeating() bool { return t.mode != domain.OneShot }

// ScheduledAt returns the scheduled time of the current or next execution. Lock held.
func (t *Timer) ScheduledAt() time.Time { return t.scheduledAt }

// Running reports whether the listener is executing. Lock held.
func (t *Timer) Running() bool { return t.running }

// Cancelled reports whether the timer was cancelled. Lock held.
func (t *Timer) Cancelled() bool { return t.cancelled }

// Done reports whether the timer will never execute again. Lock held.
func (t *Timer) Done() bool { return t.done }

// Begin marks the start of an execution. Lock held.
func (t *Timer) Begin() {
	t.running = true
}

// MarkCancelled flags the timer as cancelled. It returns false if the timer was
// already cancelled or will not execute again. Lock held.
func (t *Timer) MarkCancelled() bool {
	if t.cancelled || t.done {
		return false
	}
	if t.running && !t.Repeating() {
		// the one-shot execution is already under way
		return false
	}
	t.cancelled = true
	t.done = !t.running
	return true
}

// MarkDone retires the timer. Lock held.
func (t *Timer) MarkDone() {
	t.done = true
}

// Finish records the end of an execution and computes the next one. Lock held.
//
// Parameters:
//   - completion: The time the listener returned.
//   - err: The listener error, if any.
//
// Returns:
//   - The next execution time and true when the timer must be queued again.
//   - false when the timer is one-shot, was cancelled, or has no further cron tick.
func (t *Timer) Finish(completion time.Time, err error) (time.Time, bool) {
	t.running = false
	t.runs++
	t.lastErr = err

	if t.cancelled || !t.Repeating() {
		t.done = true
		return time.Time{}, false
	}

	switch t.mode {
	case domain.FixedRate:
		t.slot, t.scheduledAt = NextFixedRate(t.origin, t.period, t.slot, completion)
	case domain.FixedDelay:
		t.scheduledAt = NextFixedDelay(completion, t.period)
	case domain.Cron:
		next, cronErr := NextCron(t.cronExpr, completion)
		if cronErr != nil {
			t.lastErr = cronErr
			t.done = true
			return time.Time{}, false
		}
		t.scheduledAt = next
	}
	return t.scheduledAt, true
}

// Snapshot returns a read-only view of the timer. Lock held.
func (t *Timer) Snapshot() domain.TimerState {
	s := domain.TimerState{
		ID:          t.id,
		Mode:        t.mode,
		Period:      t.period,
		CronExpr:    t.cronExpr,
		ScheduledAt: t.scheduledAt,
		Running:     t.running,
		Cancelled:   t.cancelled,
		Runs:        t.runs,
	}
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
	}
	return s
}

// Expire runs the listener. It must be called without the lock.
// A panic in the listener is recovered and returned as ErrListenerPanicked.
func (t *Timer) Expire() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ErrListenerPanicked, fmt.Sprintf("%s: %v\n%s", t.id, r, debug.Stack()))
		}
	}()
	return t.listener.TimerExpired(t.ctx, t)
}

// NotifyCancel runs the cancel notification, if any. It must be called without the lock.
func (t *Timer) NotifyCancel() error {
	return t.notify(t.onCancel)
}

// NotifyStop runs the stop notification, if any. It must be called without the lock.
func (t *Timer) NotifyStop() error {
	return t.notify(t.onStop)
}

func (t *Timer) notify(fn func(ctx context.Context, t domain.Timer)) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ErrListenerPanicked, fmt.Sprintf("%s: %v", t.id, r))
		}
	}()
	fn(t.ctx, t)
	return nil
}
