package error

import (
	"errors"
	"fmt"
)

// Kinds. Every sentinel below wraps exactly one of them so callers can
// branch on the category with errors.Is.
var (
	ErrUsage              = errors.New("usage error")
	ErrState              = errors.New("state error")
	ErrExecution          = errors.New("execution error")
	ErrTimeoutOrCancelled = errors.New("timeout or cancelled")
)

// Usage errors.
var (
	ErrNilListener       = New(ErrUsage, "listener is nil")
	ErrNegativeDelay     = New(ErrUsage, "delay must not be negative")
	ErrNegativePeriod    = New(ErrUsage, "period must not be negative")
	ErrNegativeTimeout   = New(ErrUsage, "timeout must not be negative")
	ErrZeroTime          = New(ErrUsage, "first time must be set")
	ErrInvalidCron       = New(ErrUsage, "invalid cron expression")
	ErrMixedScheduleType = New(ErrUsage, "timer schedule is only supported with one type of interval")
	ErrUnknownMode       = New(ErrUsage, "unknown repeat mode")
	ErrNilWork           = New(ErrUsage, "work is nil")
	ErrNilItem           = New(ErrUsage, "work item is nil")
	ErrDuplicateID       = New(ErrUsage, "id not unique")
)

// State errors.
var (
	ErrStopped           = New(ErrState, "manager is stopped")
	ErrInvalidTransition = New(ErrState, "invalid state transition")
	ErrWorkNotDone       = New(ErrState, "work is not done")
	ErrWorkRejected      = New(ErrState, "work rejected")
)

// Rejection reasons.
var (
	ErrRateLimited = errors.New("submit rate exceeded")
	ErrBacklogFull = errors.New("too many queued items")
)

// Execution errors.
var (
	ErrListenerPanicked = New(ErrExecution, "listener panicked")
	ErrWorkPanicked     = New(ErrExecution, "work panicked")
	ErrWorkFailed       = New(ErrExecution, "work failed")
)

// Timeout or cancellation errors.
var (
	ErrWaitCancelled = New(ErrTimeoutOrCancelled, "wait cancelled")
)

// New wraps err with an additional message, keeping err reachable through errors.Is.
func New(err error, str string) error {
	return fmt.Errorf("%w: %s", err, str)
}

// Kind is the category of an error returned by a manager.
type Kind int

const (
	KindUnknown Kind = iota
	KindUsage
	KindState
	KindExecution
	KindTimeoutOrCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindState:
		return "state"
	case KindExecution:
		return "execution"
	case KindTimeoutOrCancelled:
		return "timeout-or-cancelled"
	default:
		return "unknown"
	}
}

// KindOf returns the category of err, or KindUnknown if err carries none.
// Execution wins over State for completed work, since a WorkCompletedError
// is about the work and not the manager.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrUsage):
		return KindUsage
	case errors.Is(err, ErrExecution):
		return KindExecution
	case errors.Is(err, ErrTimeoutOrCancelled):
		return KindTimeoutOrCancelled
	case errors.Is(err, ErrState):
		return KindState
	default:
		return KindUnknown
	}
}
