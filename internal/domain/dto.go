package domain

import (
	"time"
)

// StateDTO is a lightweight snapshot of one finished execution, used to report
// metrics to Monitoring without exposing manager internals.
type StateDTO struct {
	// ID is the identifier of the timer or work item that executed.
	ID string

	// Manager is the name of the manager that owns the execution.
	Manager string

	// Kind is either "timer" or "work".
	Kind string

	// StartAt is the time the execution started.
	// It is zero for work rejected before starting.
	StartAt time.Time

	// EndAt is the time the execution finished.
	EndAt time.Time

	// ExecutionTime is the execution duration in nanoseconds.
	ExecutionTime int64

	// Status is the outcome of the execution.
	Status ExecStatus

	// Error holds the failure captured during execution, if any.
	Error error
}

// TimerState is a read-only snapshot of a scheduled timer.
type TimerState struct {
	ID          string
	Mode        RepeatMode
	Period      time.Duration
	CronExpr    string
	ScheduledAt time.Time
	Running     bool
	Cancelled   bool
	Runs        int64
	LastError   string
}

// TimerConfig describes a timer to schedule.
type TimerConfig struct {
	// Listener is invoked each time the timer expires. Required.
	Listener TimerListener

	// Mode selects the repeat behavior. If empty it is derived:
	// Cron when CronExpr is set, FixedDelay when Period > 0, OneShot otherwise.
	// FixedRate and FixedDelay with a zero Period schedule a one-shot timer.
	Mode RepeatMode

	// Delay before the first expiration. Must not be negative.
	// Ignored when FirstTime is set.
	Delay time.Duration

	// FirstTime is the absolute time of the first expiration.
	// A time in the past expires immediately.
	FirstTime time.Time

	// Period between executions. Must not be negative. Zero means one-shot.
	Period time.Duration

	// CronExpr is a cron expression for Cron timers. Cannot be combined with Period.
	CronExpr string
}

// WorkStats is a read-only snapshot of a work manager.
type WorkStats struct {
	Name    string       `json:"name"`
	State   ManagerState `json:"state"`
	Pending int          `json:"pending"`
	Queued  int          `json:"queued"`
	Started int          `json:"started"`
}
