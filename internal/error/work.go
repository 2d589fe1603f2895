package error

import (
	"fmt"

	"go.uber.org/multierr"
)

// WorkCompletedError is returned by a work item's Result when the work completed
// with an error. It keeps every failure captured during the run.
type WorkCompletedError struct {
	ItemID string
	Errs   []error
}

// NewWorkCompleted flattens err into a WorkCompletedError. Nil is returned for a nil err.
func NewWorkCompleted(id string, err error) *WorkCompletedError {
	if err == nil {
		return nil
	}
	return &WorkCompletedError{ItemID: id, Errs: multierr.Errors(err)}
}

func (e *WorkCompletedError) Error() string {
	return fmt.Sprintf("%s: item %s: %v", ErrWorkFailed, e.ItemID, multierr.Combine(e.Errs...))
}

// Unwrap exposes ErrWorkFailed and every captured error to errors.Is and errors.As.
func (e *WorkCompletedError) Unwrap() []error {
	return append([]error{ErrWorkFailed}, e.Errs...)
}

// WorkRejectedError is returned by a work item's Result when the item was
// rejected before it started.
type WorkRejectedError struct {
	ItemID string
	Reason error
}

func (e *WorkRejectedError) Error() string {
	return fmt.Sprintf("%s: item %s: %v", ErrWorkRejected, e.ItemID, e.Reason)
}

// Unwrap exposes ErrWorkRejected and the rejection reason.
func (e *WorkRejectedError) Unwrap() []error {
	return []error{ErrWorkRejected, e.Reason}
}
