package work

import (
	"context"
	"sync"
	"time"

	"github.com/osmike/cadence/internal/await"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"go.uber.org/zap"
)

// Stop rejects every item that has not started and releases the running ones.
// The manager is Stopped once every item reached a terminal status.
//
// Returns:
//   - ErrStopped if Stop was already called.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.state != domain.Running {
		m.mu.Unlock()
		return errs.New(errs.ErrStopped, m.name)
	}
	m.state = domain.Stopping
	items := make([]*Item, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	m.logger.Info("work manager stopping", zap.Int("in_flight", m.inFlight))
	m.settleLocked()
	m.mu.Unlock()

	for _, it := range items {
		switch it.Status() {
		case domain.WorkStarted:
			it.release()
		case domain.WorkAccepted:
			// A busy item is rejected by run once its current event returns.
			if it.events.TryLock() {
				if it.Status() == domain.WorkAccepted {
					m.rejectLocked(it, errs.New(errs.ErrStopped, m.name))
				}
				it.events.Unlock()
			}
		}
	}
	return nil
}

// IsStopping reports whether Stop has been called.
func (m *Manager) IsStopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != domain.Running
}

// IsStopped reports whether every item reached a terminal status after Stop.
func (m *Manager) IsStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.Stopped
}

// State returns the current lifecycle state.
func (m *Manager) State() domain.ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WaitForStop blocks until the manager is stopped, the timeout elapses or ctx ends.
func (m *Manager) WaitForStop(ctx context.Context, timeout time.Duration) (bool, error) {
	return await.Until(ctx, m.clock, timeout, func() (bool, <-chan struct{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.state == domain.Stopped, m.changed.Wait(), nil
	})
}

// WaitForAll blocks until every item is rejected or completed.
// Items may belong to any manager. An empty list is satisfied immediately.
//
// Returns:
//   - true when every item is terminal, false on timeout.
//   - ErrNilItem if the list holds a nil item.
//   - ErrNegativeTimeout or ErrWaitCancelled, see await.Until.
func (m *Manager) WaitForAll(ctx context.Context, items []domain.WorkItem, timeout time.Duration) (bool, error) {
	if err := checkItems(items); err != nil {
		return false, err
	}
	return await.Until(ctx, m.clock, timeout, func() (bool, <-chan struct{}, error) {
		for _, it := range items {
			select {
			case <-it.Done():
			default:
				return false, it.Done(), nil
			}
		}
		return true, nil, nil
	})
}

// WaitForAny blocks until at least one item is rejected or completed.
//
// Returns:
//   - Every item that is terminal when the wait ends. Empty on timeout or for an empty list.
//   - ErrNilItem if the list holds a nil item.
//   - ErrNegativeTimeout or ErrWaitCancelled, see await.Until.
func (m *Manager) WaitForAny(ctx context.Context, items []domain.WorkItem, timeout time.Duration) ([]domain.WorkItem, error) {
	if err := checkItems(items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.WorkItem{}, nil
	}

	// fan in every Done channel until the wait returns
	anyDone := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	var once sync.Once
	for _, it := range items {
		go func(done <-chan struct{}) {
			select {
			case <-done:
				once.Do(func() { close(anyDone) })
			case <-quit:
			}
		}(it.Done())
	}

	ok, err := await.Until(ctx, m.clock, timeout, func() (bool, <-chan struct{}, error) {
		return len(terminal(items)) > 0, anyDone, nil
	})
	if err != nil || !ok {
		return []domain.WorkItem{}, err
	}
	return terminal(items), nil
}

func terminal(items []domain.WorkItem) []domain.WorkItem {
	var out []domain.WorkItem
	for _, it := range items {
		select {
		case <-it.Done():
			out = append(out, it)
		default:
		}
	}
	return out
}

func checkItems(items []domain.WorkItem) error {
	for _, it := range items {
		if it == nil {
			return errs.ErrNilItem
		}
	}
	return nil
}
