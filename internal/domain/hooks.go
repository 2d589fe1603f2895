package domain

import (
	"context"
	"time"
)

// Timer is the handle returned when a TimerListener is scheduled.
// It allows retrieving information about the scheduled listener and cancelling it.
// The same handle is passed to the listener on every expiration.
type Timer interface {
	// ID returns the unique identifier of the timer.
	ID() string

	// Cancel cancels the timer and all future executions. It may be called from
	// inside the listener. Returns true if this prevented a future execution,
	// false if the timer was already cancelled, stopped, or had already expired in the one-shot case.
	Cancel() bool

	// Listener returns the listener associated with the timer.
	// Fails with ErrStopped once the manager has stopped.
	Listener() (TimerListener, error)

	// ScheduledExecutionTime returns the next scheduled execution time. While the listener
	// runs it returns the scheduled time of the current execution; while the manager is
	// suspended it returns the time computed before the suspend.
	// Fails with ErrStopped once the manager has stopped.
	ScheduledExecutionTime() (time.Time, error)

	// Period returns the repeat period. Zero means the timer does not repeat on a period.
	Period() time.Duration

	// Mode returns the repeat mode of the timer.
	Mode() RepeatMode
}

// TimerListener receives timer expirations.
//
// The context passed to TimerExpired carries the values of the context given
// when the timer was scheduled. A returned error is recorded and reported but
// never stops the timer or the manager.
type TimerListener interface {
	TimerExpired(ctx context.Context, t Timer) error
}

// CancelTimerListener is implemented by listeners that need a cancel notification.
// TimerCancelled may run concurrently with TimerExpired.
type CancelTimerListener interface {
	TimerListener
	TimerCancelled(ctx context.Context, t Timer)
}

// StopTimerListener is implemented by listeners that need a stop notification.
// TimerStopped runs after any in-progress TimerExpired of the same timer has returned.
type StopTimerListener interface {
	TimerListener
	TimerStopped(ctx context.Context, t Timer)
}

// TimerFunc adapts a plain function to TimerListener.
type TimerFunc func(ctx context.Context, t Timer) error

// TimerExpired calls f(ctx, t).
func (f TimerFunc) TimerExpired(ctx context.Context, t Timer) error {
	return f(ctx, t)
}

// TimerHooks is a TimerListener assembled from optional callbacks.
// A nil OnCancel or OnStop means the listener does not take that notification.
type TimerHooks struct {
	// OnExpire is executed on every expiration. Required.
	OnExpire func(ctx context.Context, t Timer) error

	// OnCancel is executed once when the timer is cancelled through its handle.
	OnCancel func(ctx context.Context, t Timer)

	// OnStop is executed once when the manager stops while the timer is still scheduled.
	OnStop func(ctx context.Context, t Timer)
}

// TimerExpired runs OnExpire if set.
func (h TimerHooks) TimerExpired(ctx context.Context, t Timer) error {
	if h.OnExpire == nil {
		return nil
	}
	return h.OnExpire(ctx, t)
}

// WorkListener is informed as a Work progresses through a WorkManager.
// Events are delivered in order: accepted, then either rejected or started and completed.
type WorkListener interface {
	WorkAccepted(ctx context.Context, ev WorkEvent)
	WorkRejected(ctx context.Context, ev WorkEvent)
	WorkStarted(ctx context.Context, ev WorkEvent)
	WorkCompleted(ctx context.Context, ev WorkEvent)
}

// WorkHooks is a WorkListener assembled from optional callbacks.
type WorkHooks struct {
	OnAccepted  func(ctx context.Context, ev WorkEvent)
	OnRejected  func(ctx context.Context, ev WorkEvent)
	OnStarted   func(ctx context.Context, ev WorkEvent)
	OnCompleted func(ctx context.Context, ev WorkEvent)
}

func (h WorkHooks) WorkAccepted(ctx context.Context, ev WorkEvent) {
	if h.OnAccepted != nil {
		h.OnAccepted(ctx, ev)
	}
}

func (h WorkHooks) WorkRejected(ctx context.Context, ev WorkEvent) {
	if h.OnRejected != nil {
		h.OnRejected(ctx, ev)
	}
}

func (h WorkHooks) WorkStarted(ctx context.Context, ev WorkEvent) {
	if h.OnStarted != nil {
		h.OnStarted(ctx, ev)
	}
}

func (h WorkHooks) WorkCompleted(ctx context.Context, ev WorkEvent) {
	if h.OnCompleted != nil {
		h.OnCompleted(ctx, ev)
	}
}
