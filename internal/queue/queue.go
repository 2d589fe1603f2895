// Package queue provides the time-ordered queue that holds scheduled timers.
package queue

import (
	"container/heap"
	"time"

	errs "github.com/osmike/cadence/internal/error"
)

type entry[T any] struct {
	id    string
	at    time.Time
	seq   uint64
	index int
	value T
}

type entries[T any] []*entry[T]

func (h entries[T]) Len() int { return len(h) }

// Less orders by due time, then by insertion order so equal times stay FIFO.
func (h entries[T]) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entries[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entries[T]) Push(x any) {
	e := x.(*entry[T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entries[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a min-heap of values keyed by id and ordered by due time.
//
// Queue is not safe for concurrent use; the owning manager guards it with its own lock.
type Queue[T any] struct {
	h     entries[T]
	byID  map[string]*entry[T]
	count uint64
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{byID: make(map[string]*entry[T])}
}

// Insert adds a value due at the given time.
//
// Returns:
//   - ErrDuplicateID if a value with the same id is already queued.
func (q *Queue[T]) Insert(id string, at time.Time, v T) error {
	if _, ok := q.byID[id]; ok {
		return errs.New(errs.ErrDuplicateID, id)
	}
	q.count++
	e := &entry[T]{id: id, at: at, seq: q.count, value: v}
	heap.Push(&q.h, e)
	q.byID[id] = e
	return nil
}

// Remove deletes the value with the given id. It reports whether the value was queued.
func (q *Queue[T]) Remove(id string) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, id)
	return true
}

// Contains reports whether a value with the given id is queued.
func (q *Queue[T]) Contains(id string) bool {
	_, ok := q.byID[id]
	return ok
}

// Next returns the due time of the earliest value.
func (q *Queue[T]) Next() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].at, true
}

// PopDue removes and returns, in due order, every value due at or before now.
func (q *Queue[T]) PopDue(now time.Time) []T {
	var due []T
	for len(q.h) > 0 && !q.h[0].at.After(now) {
		e := heap.Pop(&q.h).(*entry[T])
		delete(q.byID, e.id)
		due = append(due, e.value)
	}
	return due
}

// Drain removes and returns every queued value in due order.
func (q *Queue[T]) Drain() []T {
	out := make([]T, 0, len(q.h))
	for len(q.h) > 0 {
		e := heap.Pop(&q.h).(*entry[T])
		out = append(out, e.value)
	}
	clear(q.byID)
	return out
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	return len(q.h)
}
