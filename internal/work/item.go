package work

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"go.uber.org/multierr"
)

// Item tracks one submitted Work from acceptance to its terminal status.
type Item struct {
	id       string
	work     domain.Work
	listener domain.WorkListener
	daemon   bool

	// parent is the schedule context; it ending before the start rejects the item.
	parent context.Context
	// runCtx carries parent's values and is cancelled on release.
	runCtx context.Context
	cancel context.CancelFunc
	// eventCtx carries parent's values to the listener and is never cancelled.
	eventCtx context.Context

	// events serializes status transitions with their listener events.
	// Stop only ever try-locks it, so listeners may call Stop.
	events sync.Mutex

	mu       sync.Mutex
	status   domain.WorkStatus
	value    any
	err      error
	released bool
	done     chan struct{}

	// queued is guarded by the manager lock.
	queued bool
}

func newItem(ctx context.Context, id string, w domain.Work, l domain.WorkListener) *Item {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	it := &Item{
		id:       id,
		work:     w,
		listener: l,
		parent:   ctx,
		runCtx:   runCtx,
		cancel:   cancel,
		eventCtx: context.WithoutCancel(ctx),
		status:   domain.WorkAccepted,
		done:     make(chan struct{}),
	}
	if d, ok := w.(domain.Daemon); ok {
		it.daemon = d.IsDaemon()
	}
	return it
}

// ID returns the unique identifier of the item.
func (it *Item) ID() string { return it.id }

// Status returns the current dispatch status.
func (it *Item) Status() domain.WorkStatus {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.status
}

// Result returns the value produced by the work.
//
// Returns:
//   - The work value and nil after a successful completion.
//   - The work value and a *WorkCompletedError after a failed completion.
//   - A *WorkRejectedError after a rejection.
//   - ErrWorkNotDone while the item is accepted or started.
func (it *Item) Result() (any, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	switch it.status {
	case domain.WorkCompleted:
		return it.value, it.err
	case domain.WorkRejected:
		return nil, it.err
	default:
		return nil, errs.New(errs.ErrWorkNotDone, it.id)
	}
}

// Done is closed once the item is rejected or completed.
func (it *Item) Done() <-chan struct{} { return it.done }

// IsDaemon reports whether the work runs outside the bounded pool.
func (it *Item) IsDaemon() bool { return it.daemon }

func (it *Item) setStatus(s domain.WorkStatus) {
	it.mu.Lock()
	it.status = s
	it.mu.Unlock()
}

// reject moves an accepted item to Rejected. The caller holds it.events.
func (it *Item) reject(reason error) *errs.WorkRejectedError {
	rej := &errs.WorkRejectedError{ItemID: it.id, Reason: reason}
	it.mu.Lock()
	it.status = domain.WorkRejected
	it.err = rej
	it.mu.Unlock()
	it.cancel()
	return rej
}

// complete moves a started item to Completed. The caller holds it.events.
func (it *Item) complete(value any, err error) error {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.status = domain.WorkCompleted
	it.value = value
	if err != nil && it.released {
		err = multierr.Append(err, errs.New(errs.ErrStopped, "work released"))
	}
	if wc := errs.NewWorkCompleted(it.id, err); wc != nil {
		it.err = wc
	}
	it.cancel()
	return it.err
}

// execute runs the work, converting a panic into an error.
func (it *Item) execute() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = multierr.Append(err, errs.New(errs.ErrWorkPanicked, fmt.Sprintf("%s: %v\n%s", it.id, r, debug.Stack())))
		}
	}()
	return it.work.Run(it.runCtx)
}

// release cancels the run context and asks a Releaser to return. It runs once.
func (it *Item) release() {
	it.mu.Lock()
	if it.released || it.status.Terminal() {
		it.mu.Unlock()
		return
	}
	it.released = true
	it.mu.Unlock()

	it.cancel()
	if r, ok := it.work.(domain.Releaser); ok {
		r.Release()
	}
}
