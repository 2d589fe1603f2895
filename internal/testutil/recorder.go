// Package testutil holds listeners shared by the package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/osmike/cadence/internal/domain"
)

// Fire is one recorded expiration.
type Fire struct {
	ID        string
	At        time.Time
	End       time.Time
	Scheduled time.Time
}

// Recorder is a TimerListener that records every callback it receives.
// It takes cancel and stop notifications.
type Recorder struct {
	Clock clock.Clock

	// Hold, when set, is awaited inside every expiration.
	Hold chan struct{}

	// Work is slept inside every expiration, on the real clock.
	Work time.Duration

	// Err is returned from every expiration.
	Err error

	// OnFire is called inside every expiration.
	OnFire func(t domain.Timer)

	mu       sync.Mutex
	fires    []Fire
	cancels  []string
	stops    []Fire
	running  int
	peak     int
	afterEnd bool
}

// NewRecorder returns a Recorder reading time from clk.
func NewRecorder(clk clock.Clock) *Recorder {
	return &Recorder{Clock: clk}
}

func (r *Recorder) TimerExpired(_ context.Context, t domain.Timer) error {
	r.mu.Lock()
	r.running++
	if r.running > r.peak {
		r.peak = r.running
	}
	r.mu.Unlock()

	start := r.Clock.Now()
	scheduled, _ := t.ScheduledExecutionTime()
	if r.OnFire != nil {
		r.OnFire(t)
	}
	if r.Hold != nil {
		<-r.Hold
	}
	if r.Work > 0 {
		time.Sleep(r.Work)
	}

	r.mu.Lock()
	r.running--
	r.fires = append(r.fires, Fire{ID: t.ID(), At: start, End: r.Clock.Now(), Scheduled: scheduled})
	r.mu.Unlock()
	return r.Err
}

func (r *Recorder) TimerCancelled(_ context.Context, t domain.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, t.ID())
}

func (r *Recorder) TimerStopped(_ context.Context, t domain.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running > 0 {
		r.afterEnd = true
	}
	r.stops = append(r.stops, Fire{ID: t.ID(), At: r.Clock.Now()})
}

// Fires returns a copy of the recorded expirations.
func (r *Recorder) Fires() []Fire {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fire(nil), r.fires...)
}

// Count returns the number of completed expirations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fires)
}

// Cancels returns the ids that received a cancel notification.
func (r *Recorder) Cancels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cancels...)
}

// Stops returns the recorded stop notifications.
func (r *Recorder) Stops() []Fire {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fire(nil), r.stops...)
}

// Peak returns the highest number of concurrent expirations observed.
func (r *Recorder) Peak() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

// StopOverlapped reports whether a stop notification arrived while an expiration was running.
func (r *Recorder) StopOverlapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.afterEnd
}

// Order returns the ids of the recorded expirations in completion order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.fires))
	for i, f := range r.fires {
		ids[i] = f.ID
	}
	return ids
}
