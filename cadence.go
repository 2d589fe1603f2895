// Package cadence provides timer and work managers for applications that run
// listeners on a schedule and dispatch asynchronous work to bounded worker pools.
//
// Features:
//   - One-shot, fixed-rate, fixed-delay and cron timers sharing one scheduling loop.
//   - Suspend, resume and stop with waits bounded by a timeout or a context.
//   - Work dispatch with accepted, rejected, started and completed events.
//   - WaitForAll and WaitForAny across work items of any manager.
//   - Pluggable monitoring: in-memory, Prometheus, or both.
//
// Example usage:
//
//	timers := cadence.NewTimerManager(cadence.TimerManagerConfig{Name: "app"}, nil)
//	defer timers.Stop()
//
//	t, _ := timers.ScheduleAtFixedRate(ctx, cadence.TimerFunc(func(ctx context.Context, t cadence.Timer) error {
//		log.Println("tick", t.ID())
//		return nil
//	}), 0, 5*time.Second)
//
//	work := cadence.NewWorkManager(cadence.WorkManagerConfig{Name: "app"}, nil)
//	item, _ := work.Schedule(ctx, cadence.WorkFunc(func(ctx context.Context) (any, error) {
//		return "done", nil
//	}))
//	work.WaitForAll(ctx, []cadence.WorkItem{item}, cadence.Indefinite)
package cadence

import (
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/osmike/cadence/internal/manager"
	"github.com/osmike/cadence/internal/work"
	"github.com/osmike/cadence/monitoring"
)

// TimerManager schedules timers and runs their listeners on a worker pool.
//
// Methods:
//   - Schedule, ScheduleAt: one-shot timers.
//   - ScheduleWithFixedDelay, ScheduleAtFixedRate, ScheduleCron: repeating timers.
//   - ScheduleTimer: any of the above from a TimerConfig.
//   - Suspend, Resume, Stop and the matching Is/WaitFor queries.
type TimerManager = manager.Manager

// WorkManager dispatches Work asynchronously and reports its progress.
type WorkManager = work.Manager

// TimerManagerConfig holds the timer manager settings.
//
// Parameters:
//   - Name: Manager name used in logs and metrics.
//   - Pool: Worker limits. MaxWorkers defaults to 1000, IdleTimeout to one minute.
//   - Clock: Time source. The wall clock when nil.
//   - Logger: zap logger. A no-op logger when nil.
type TimerManagerConfig = domain.TimerManagerConfig

// WorkManagerConfig holds the work manager settings.
//
// Parameters:
//   - Name, Pool, Clock, Logger: as for TimerManagerConfig.
//   - MaxQueued: Items waiting for a worker beyond which new work is rejected. Zero means unbounded.
//   - SubmitRate, SubmitBurst: Token bucket applied to submissions. Zero rate means unlimited.
type WorkManagerConfig = domain.WorkManagerConfig

// PoolConfig sets the worker limits of a manager.
type PoolConfig = domain.PoolConfig

// Timer is the handle returned when a timer is scheduled.
type Timer = domain.Timer

// TimerConfig describes a timer for ScheduleTimer.
type TimerConfig = domain.TimerConfig

// TimerState is a read-only snapshot of a scheduled timer.
type TimerState = domain.TimerState

// TimerListener is invoked each time a timer expires.
type TimerListener = domain.TimerListener

// CancelTimerListener is a TimerListener that is told when its timer is cancelled.
type CancelTimerListener = domain.CancelTimerListener

// StopTimerListener is a TimerListener that is told when its manager stops.
type StopTimerListener = domain.StopTimerListener

// TimerFunc adapts a function to TimerListener.
type TimerFunc = domain.TimerFunc

// TimerHooks assembles a TimerListener from optional callbacks.
type TimerHooks = domain.TimerHooks

type (
	// Work is a unit of work run by a WorkManager.
	Work = domain.Work
	// WorkFunc adapts a function to Work.
	WorkFunc = domain.WorkFunc
	// WorkItem tracks one scheduled Work through its lifecycle.
	WorkItem = domain.WorkItem
	// WorkEvent is delivered to a WorkListener on each status change.
	WorkEvent = domain.WorkEvent
	// WorkListener observes the lifecycle of a WorkItem.
	WorkListener = domain.WorkListener
	// WorkHooks assembles a WorkListener from optional callbacks.
	WorkHooks = domain.WorkHooks
	// WorkStatus is the lifecycle status of a WorkItem.
	WorkStatus = domain.WorkStatus
	// WorkStats is a snapshot of a WorkManager's backlog.
	WorkStats = domain.WorkStats
	// Releaser is implemented by Work that can be asked to return early.
	Releaser = domain.Releaser
	// Daemon is implemented by Work that runs outside the worker pool.
	Daemon = domain.Daemon
)

type (
	// ManagerState is the lifecycle state shared by both managers.
	ManagerState = domain.ManagerState
	// RepeatMode selects how a repeating timer computes its next run.
	RepeatMode = domain.RepeatMode
	// ExecStatus is the outcome of a single timer or work execution.
	ExecStatus = domain.ExecStatus
)

// ExecutionState is the snapshot of one finished execution handed to Monitoring.
type ExecutionState = domain.StateDTO

// Monitoring receives one ExecutionState per finished execution.
type Monitoring = domain.Monitoring

const (
	Running    = domain.Running
	Suspending = domain.Suspending
	Suspended  = domain.Suspended
	Stopping   = domain.Stopping
	Stopped    = domain.Stopped

	OneShot    = domain.OneShot
	FixedRate  = domain.FixedRate
	FixedDelay = domain.FixedDelay
	Cron       = domain.Cron

	WorkAccepted  = domain.WorkAccepted
	WorkRejected  = domain.WorkRejected
	WorkStarted   = domain.WorkStarted
	WorkCompleted = domain.WorkCompleted

	ExecCompleted = domain.ExecCompleted
	ExecError     = domain.ExecError
	ExecRejected  = domain.ExecRejected
	ExecCancelled = domain.ExecCancelled
	ExecStopped   = domain.ExecStopped

	// Immediate makes a WaitFor method check once without blocking.
	Immediate = domain.Immediate
	// Indefinite makes a WaitFor method block until satisfied or its context ends.
	Indefinite = domain.Indefinite
)

// Error kinds, usable with errors.Is.
var (
	ErrUsage              = errs.ErrUsage
	ErrState              = errs.ErrState
	ErrExecution          = errs.ErrExecution
	ErrTimeoutOrCancelled = errs.ErrTimeoutOrCancelled
)

var (
	ErrNilListener       = errs.ErrNilListener
	ErrNegativeDelay     = errs.ErrNegativeDelay
	ErrNegativePeriod    = errs.ErrNegativePeriod
	ErrNegativeTimeout   = errs.ErrNegativeTimeout
	ErrZeroTime          = errs.ErrZeroTime
	ErrInvalidCron       = errs.ErrInvalidCron
	ErrMixedScheduleType = errs.ErrMixedScheduleType
	ErrUnknownMode       = errs.ErrUnknownMode
	ErrNilWork           = errs.ErrNilWork
	ErrNilItem           = errs.ErrNilItem

	ErrStopped           = errs.ErrStopped
	ErrInvalidTransition = errs.ErrInvalidTransition
	ErrWorkNotDone       = errs.ErrWorkNotDone
	ErrWorkRejected      = errs.ErrWorkRejected
	ErrRateLimited       = errs.ErrRateLimited
	ErrBacklogFull       = errs.ErrBacklogFull

	ErrListenerPanicked = errs.ErrListenerPanicked
	ErrWorkPanicked     = errs.ErrWorkPanicked
	ErrWorkFailed       = errs.ErrWorkFailed

	ErrWaitCancelled = errs.ErrWaitCancelled
)

// WorkCompletedError is the error of a work item whose Run failed.
type WorkCompletedError = errs.WorkCompletedError

// WorkRejectedError is the error of a work item rejected before it started.
type WorkRejectedError = errs.WorkRejectedError

// NewTimerManager creates a running timer manager.
//
// Parameters:
//   - cfg: Manager settings. Zero values fall back to defaults.
//   - mon: Monitoring for finished executions. Defaults to in-memory monitoring if nil.
//
// Returns:
//   - The manager, ready to schedule timers.
func NewTimerManager(cfg TimerManagerConfig, mon Monitoring) *TimerManager {
	if mon == nil {
		mon = monitoring.New()
	}
	return manager.New(cfg, mon)
}

// NewWorkManager creates a running work manager.
//
// Parameters:
//   - cfg: Manager settings. Zero values fall back to defaults.
//   - mon: Monitoring for finished work. Defaults to in-memory monitoring if nil.
func NewWorkManager(cfg WorkManagerConfig, mon Monitoring) *WorkManager {
	if mon == nil {
		mon = monitoring.New()
	}
	return work.New(cfg, mon)
}

// ErrorKind is the category of an error returned by a manager.
type ErrorKind = errs.Kind

const (
	KindUnknown            = errs.KindUnknown
	KindUsage              = errs.KindUsage
	KindState              = errs.KindState
	KindExecution          = errs.KindExecution
	KindTimeoutOrCancelled = errs.KindTimeoutOrCancelled
)

// KindOf returns the category of an error returned by a manager.
func KindOf(err error) ErrorKind {
	return errs.KindOf(err)
}
