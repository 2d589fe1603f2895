package domain

import (
	"math"
	"time"
)

// ManagerState represents the lifecycle state of a timer or work manager.
//
// Transitions are monotonic towards Stopped:
// - Running -> Suspending -> Suspended -> Running (resume)
// - Running | Suspending | Suspended -> Stopping -> Stopped
type ManagerState string

const (
	// Running indicates the manager fires due timers and accepts new schedules.
	Running ManagerState = "running"

	// Suspending indicates a suspend was requested and listeners are still executing.
	// No new timer is fired while suspending; expired timers accumulate.
	Suspending ManagerState = "suspending"

	// Suspended indicates every listener has completed following a suspend.
	Suspended ManagerState = "suspended"

	// Stopping indicates a stop was requested. New schedules are rejected,
	// in-flight executions and stop notifications are allowed to complete.
	Stopping ManagerState = "stopping"

	// Stopped is terminal. The manager can never be restarted.
	Stopped ManagerState = "stopped"
)

// RepeatMode defines how the next execution time of a timer is derived.
type RepeatMode string

const (
	// OneShot timers fire once and are discarded.
	OneShot RepeatMode = "one-shot"

	// FixedRate timers fire on an absolute grid: origin + k*period.
	// Missed slots collapse into one immediate execution.
	FixedRate RepeatMode = "fixed-rate"

	// FixedDelay timers fire period after the completion of the previous execution.
	FixedDelay RepeatMode = "fixed-delay"

	// Cron timers fire at the next tick of a cron expression after the previous completion.
	Cron RepeatMode = "cron"
)

// WorkStatus is the dispatch status of a submitted Work.
// Values match the event types delivered to a WorkListener.
type WorkStatus int

const (
	// WorkAccepted indicates the work was accepted for dispatching.
	WorkAccepted WorkStatus = iota + 1

	// WorkRejected indicates the work could not be processed prior to starting but after accept.
	WorkRejected

	// WorkStarted indicates the work is currently running.
	WorkStarted

	// WorkCompleted indicates the work ran to completion, successfully or with an error.
	WorkCompleted
)

// String returns a lowercase name of the status.
func (s WorkStatus) String() string {
	switch s {
	case WorkAccepted:
		return "accepted"
	case WorkRejected:
		return "rejected"
	case WorkStarted:
		return "started"
	case WorkCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final (rejected or completed).
func (s WorkStatus) Terminal() bool {
	return s == WorkRejected || s == WorkCompleted
}

// ExecStatus is the outcome recorded for a single execution reported to Monitoring.
type ExecStatus string

const (
	ExecCompleted ExecStatus = "completed"
	ExecError     ExecStatus = "error"
	ExecRejected  ExecStatus = "rejected"
	ExecCancelled ExecStatus = "cancelled"
	ExecStopped   ExecStatus = "stopped"
)

const (
	// Immediate can be used as a timeout for the WaitFor methods.
	// The current state is checked and the result returned without blocking.
	Immediate time.Duration = 0

	// Indefinite can be used as a timeout for the WaitFor methods.
	// The call blocks until the wait is satisfied or its context is cancelled.
	Indefinite time.Duration = math.MaxInt64
)

const (
	// DEFAULT_NUM_WORKERS specifies the default number of concurrent workers
	// a manager uses to execute listeners and work when no explicit limit is provided.
	DEFAULT_NUM_WORKERS = 1000
	// DEFAULT_IDLE_TIMEOUT specifies how long an idle worker waits for a new job
	// before it exits. Workers are started again on demand.
	DEFAULT_IDLE_TIMEOUT = time.Minute
)
