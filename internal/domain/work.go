package domain

import "context"

// Work is a unit of asynchronous work dispatched by a WorkManager.
//
// Run receives the values of the context given at scheduling time. The context is
// cancelled when the work is released. The returned value becomes the item's result.
type Work interface {
	Run(ctx context.Context) (any, error)
}

// WorkFunc adapts a plain function to Work.
type WorkFunc func(ctx context.Context) (any, error)

// Run calls f(ctx).
func (f WorkFunc) Run(ctx context.Context) (any, error) {
	return f(ctx)
}

// Releaser is implemented by Work that can be asked to return early.
// Release is called from a different goroutine than Run when the manager stops.
type Releaser interface {
	Release()
}

// Daemon is implemented by Work that is long lived. Daemon work does not take a
// slot of the bounded worker pool.
type Daemon interface {
	IsDaemon() bool
}

// WorkItem is returned once a Work is submitted. It can be used to check the
// status of the Work and its result, and to wait for it together with items
// from any other manager.
type WorkItem interface {
	// ID returns the unique identifier of the item.
	ID() string

	// Status returns the current dispatch status.
	Status() WorkStatus

	// Result returns the value produced by the Work. After an error completion it
	// returns a *WorkCompletedError, after a rejection a *WorkRejectedError, and
	// ErrWorkNotDone while the item is not terminal.
	Result() (any, error)

	// Done is closed once the item reaches a terminal status.
	Done() <-chan struct{}
}

// WorkEvent is delivered to a WorkListener as a Work is processed.
type WorkEvent struct {
	// Type is the status the item transitioned to.
	Type WorkStatus

	// Item is the item the event is for.
	Item WorkItem

	// Err is the captured failure for WorkRejected and WorkCompleted events, nil otherwise.
	Err error
}
