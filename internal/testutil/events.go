package testutil

import (
	"context"
	"sync"

	"github.com/osmike/cadence/internal/domain"
)

// Events is a WorkListener that records the events it receives.
type Events struct {
	mu     sync.Mutex
	events []domain.WorkEvent
}

func (e *Events) add(ev domain.WorkEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *Events) WorkAccepted(_ context.Context, ev domain.WorkEvent)  { e.add(ev) }
func (e *Events) WorkRejected(_ context.Context, ev domain.WorkEvent)  { e.add(ev) }
func (e *Events) WorkStarted(_ context.Context, ev domain.WorkEvent)   { e.add(ev) }
func (e *Events) WorkCompleted(_ context.Context, ev domain.WorkEvent) { e.add(ev) }

// Types returns the event types received for the item with the given id, in order.
func (e *Events) Types(id string) []domain.WorkStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.WorkStatus
	for _, ev := range e.events {
		if ev.Item.ID() == id {
			out = append(out, ev.Type)
		}
	}
	return out
}

// Last returns the last event received for the item with the given id.
func (e *Events) Last(id string) (domain.WorkEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].Item.ID() == id {
			return e.events[i], true
		}
	}
	return domain.WorkEvent{}, false
}
