package work

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/osmike/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func newManager(t *testing.T, cfg domain.WorkManagerConfig) *Manager {
	t.Helper()
	cfg.Name = t.Name()
	cfg.Logger = zaptest.NewLogger(t)
	m := New(cfg, nil)
	t.Cleanup(func() {
		_ = m.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_, _ = m.WaitForStop(ctx, domain.Indefinite)
	})
	return m
}

func value(v any) domain.WorkFunc {
	return func(context.Context) (any, error) { return v, nil }
}

func blocking(gate <-chan struct{}) domain.WorkFunc {
	return func(ctx context.Context) (any, error) {
		select {
		case <-gate:
			return "released", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type releasable struct {
	released chan struct{}
	once     sync.Once
}

func (r *releasable) Run(ctx context.Context) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *releasable) Release() {
	r.once.Do(func() { close(r.released) })
}

type daemonWork struct {
	fn domain.WorkFunc
}

func (d daemonWork) Run(ctx context.Context) (any, error) { return d.fn(ctx) }
func (d daemonWork) IsDaemon() bool                       { return true }

func TestSchedule_Completes(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})
	events := &testutil.Events{}

	it, err := m.ScheduleWithListener(ctx, value(42), events)
	require.NoError(t, err)

	ok, err := m.WaitForAll(ctx, []domain.WorkItem{it}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := it.Result()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, domain.WorkCompleted, it.Status())
	assert.Equal(t, []domain.WorkStatus{domain.WorkAccepted, domain.WorkStarted, domain.WorkCompleted}, events.Types(it.ID()))
}

func TestSchedule_FailureIsCompletedNotRejected(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})
	events := &testutil.Events{}
	boom := errors.New("boom")

	it, err := m.ScheduleWithListener(ctx, domain.WorkFunc(func(context.Context) (any, error) {
		return nil, boom
	}), events)
	require.NoError(t, err)

	ok, err := m.WaitForAll(ctx, []domain.WorkItem{it}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, domain.WorkCompleted, it.Status())
	_, err = it.Result()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, errs.ErrWorkFailed)
	assert.Equal(t, errs.KindExecution, errs.KindOf(err))

	var completed *errs.WorkCompletedError
	require.ErrorAs(t, err, &completed)
	assert.Equal(t, it.ID(), completed.ItemID)

	last, _ := events.Last(it.ID())
	assert.Equal(t, domain.WorkCompleted, last.Type)
	assert.ErrorIs(t, last.Err, boom)
}

func TestSchedule_Panic(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})

	it, err := m.Schedule(ctx, domain.WorkFunc(func(context.Context) (any, error) {
		panic("kaboom")
	}))
	require.NoError(t, err)

	<-it.Done()
	_, err = it.Result()
	assert.ErrorIs(t, err, errs.ErrWorkPanicked)
	assert.Equal(t, domain.WorkCompleted, it.Status())
}

func TestSchedule_Validation(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})

	_, err := m.Schedule(ctx, nil)
	assert.ErrorIs(t, err, errs.ErrNilWork)
	assert.Equal(t, errs.KindUsage, errs.KindOf(err))

	_, err = m.WaitForAll(ctx, []domain.WorkItem{nil}, domain.Immediate)
	assert.ErrorIs(t, err, errs.ErrNilItem)
	_, err = m.WaitForAny(ctx, []domain.WorkItem{nil}, domain.Immediate)
	assert.ErrorIs(t, err, errs.ErrNilItem)

	gate := make(chan struct{})
	defer close(gate)
	it, err := m.Schedule(ctx, blocking(gate))
	require.NoError(t, err)
	_, err = it.Result()
	assert.ErrorIs(t, err, errs.ErrWorkNotDone)

	_, err = m.WaitForAll(ctx, []domain.WorkItem{it}, -time.Second)
	assert.ErrorIs(t, err, errs.ErrNegativeTimeout)
}

func TestWaitForAll_Immediate(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})

	ok, err := m.WaitForAll(ctx, nil, domain.Immediate)
	require.NoError(t, err)
	assert.True(t, ok, "empty list is satisfied")

	gate := make(chan struct{})
	it, err := m.Schedule(ctx, blocking(gate))
	require.NoError(t, err)

	begin := time.Now()
	ok, err = m.WaitForAll(ctx, []domain.WorkItem{it}, domain.Immediate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	close(gate)
	ok, err = m.WaitForAll(ctx, []domain.WorkItem{it}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForAll_Cancelled(t *testing.T) {
	m := newManager(t, domain.WorkManagerConfig{})
	gate := make(chan struct{})
	defer close(gate)

	it, err := m.Schedule(context.Background(), blocking(gate))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err := m.WaitForAll(ctx, []domain.WorkItem{it}, domain.Indefinite)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errs.ErrWaitCancelled)
	assert.Equal(t, errs.KindTimeoutOrCancelled, errs.KindOf(err))
}

func TestWaitForAll_AcrossManagers(t *testing.T) {
	ctx := context.Background()
	first := newManager(t, domain.WorkManagerConfig{})
	second := newManager(t, domain.WorkManagerConfig{})

	a, err := first.Schedule(ctx, value("a"))
	require.NoError(t, err)
	b, err := second.Schedule(ctx, value("b"))
	require.NoError(t, err)

	ok, err := first.WaitForAll(ctx, []domain.WorkItem{a, b}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForAny(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{})

	got, err := m.WaitForAny(ctx, nil, domain.Indefinite)
	require.NoError(t, err)
	assert.Empty(t, got)

	slow := make(chan struct{})
	defer close(slow)
	fast := make(chan struct{})

	a, err := m.Schedule(ctx, blocking(slow))
	require.NoError(t, err)
	b, err := m.Schedule(ctx, blocking(fast))
	require.NoError(t, err)
	items := []domain.WorkItem{a, b}

	got, err = m.WaitForAny(ctx, items, domain.Immediate)
	require.NoError(t, err)
	assert.Empty(t, got)

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(fast)
	}()
	got, err = m.WaitForAny(ctx, items, domain.Indefinite)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID(), got[0].ID())
}

func TestWaitForAny_TimesOutOnManagerClock(t *testing.T) {
	clk := clock.NewMock()
	m := newManager(t, domain.WorkManagerConfig{Clock: clk})
	gate := make(chan struct{})
	defer close(gate)

	it, err := m.Schedule(context.Background(), blocking(gate))
	require.NoError(t, err)

	res := make(chan []domain.WorkItem, 1)
	go func() {
		got, _ := m.WaitForAny(context.Background(), []domain.WorkItem{it}, time.Minute)
		res <- got
	}()
	assert.Eventually(t, func() bool {
		clk.Add(10 * time.Second)
		select {
		case got := <-res:
			return len(got) == 0
		default:
			return false
		}
	}, waitFor, tick)
}

func TestRejection_RateLimited(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	m := newManager(t, domain.WorkManagerConfig{Clock: clk, SubmitRate: 1, SubmitBurst: 1})
	events := &testutil.Events{}

	first, err := m.ScheduleWithListener(ctx, value(1), events)
	require.NoError(t, err)
	second, err := m.ScheduleWithListener(ctx, value(2), events)
	require.NoError(t, err)

	ok, err := m.WaitForAll(ctx, []domain.WorkItem{first, second}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, domain.WorkCompleted, first.Status())
	assert.Equal(t, domain.WorkRejected, second.Status())
	assert.Equal(t, []domain.WorkStatus{domain.WorkAccepted, domain.WorkRejected}, events.Types(second.ID()))

	_, err = second.Result()
	assert.ErrorIs(t, err, errs.ErrWorkRejected)
	assert.ErrorIs(t, err, errs.ErrRateLimited)
	assert.Equal(t, errs.KindState, errs.KindOf(err))
	var rejected *errs.WorkRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, second.ID(), rejected.ItemID)

	clk.Add(time.Second)
	third, err := m.Schedule(ctx, value(3))
	require.NoError(t, err)
	<-third.Done()
	assert.Equal(t, domain.WorkCompleted, third.Status())
}

func TestRejection_BacklogFull(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{Pool: domain.PoolConfig{MaxWorkers: 1}, MaxQueued: 1})
	gate := make(chan struct{})

	running, err := m.Schedule(ctx, blocking(gate))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return running.Status() == domain.WorkStarted }, waitFor, tick)

	queued, err := m.Schedule(ctx, value("queued"))
	require.NoError(t, err)
	overflow, err := m.Schedule(ctx, value("overflow"))
	require.NoError(t, err)

	<-overflow.Done()
	_, err = overflow.Result()
	assert.ErrorIs(t, err, errs.ErrBacklogFull)
	assert.Equal(t, domain.WorkAccepted, queued.Status())

	close(gate)
	ok, err := m.WaitForAll(ctx, []domain.WorkItem{running, queued}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)
	v, err := queued.Result()
	assert.NoError(t, err)
	assert.Equal(t, "queued", v)
}

func TestRejection_ContextEndedBeforeStart(t *testing.T) {
	m := newManager(t, domain.WorkManagerConfig{Pool: domain.PoolConfig{MaxWorkers: 1}})
	gate := make(chan struct{})

	first, err := m.Schedule(context.Background(), blocking(gate))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return first.Status() == domain.WorkStarted }, waitFor, tick)

	ctx, cancel := context.WithCancel(context.Background())
	second, err := m.Schedule(ctx, value("never"))
	require.NoError(t, err)
	cancel()
	close(gate)

	<-second.Done()
	assert.Equal(t, domain.WorkRejected, second.Status())
	_, err = second.Result()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStop(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{Pool: domain.PoolConfig{MaxWorkers: 1}})
	events := &testutil.Events{}

	rel := &releasable{released: make(chan struct{})}
	running, err := m.ScheduleWithListener(ctx, rel, events)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return running.Status() == domain.WorkStarted }, waitFor, tick)

	pending, err := m.ScheduleWithListener(ctx, value("pending"), events)
	require.NoError(t, err)

	require.NoError(t, m.Stop())
	assert.True(t, m.IsStopping())
	assert.ErrorIs(t, m.Stop(), errs.ErrStopped)
	_, err = m.Schedule(ctx, value(1))
	assert.ErrorIs(t, err, errs.ErrStopped)

	ok, err := m.WaitForStop(ctx, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, m.IsStopped())

	select {
	case <-rel.released:
	default:
		t.Fatal("running work was not released")
	}
	assert.Equal(t, domain.WorkCompleted, running.Status())
	_, err = running.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errs.ErrStopped)

	assert.Equal(t, domain.WorkRejected, pending.Status())
	assert.Equal(t, []domain.WorkStatus{domain.WorkAccepted, domain.WorkRejected}, events.Types(pending.ID()))
	_, err = pending.Result()
	assert.ErrorIs(t, err, errs.ErrStopped)
}

func TestDaemonRunsOutsidePool(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{Pool: domain.PoolConfig{MaxWorkers: 1}, MaxQueued: 1})
	gate := make(chan struct{})
	defer close(gate)

	busy, err := m.Schedule(ctx, blocking(gate))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return busy.Status() == domain.WorkStarted }, waitFor, tick)

	d, err := m.Schedule(ctx, daemonWork{fn: value("daemon")})
	require.NoError(t, err)

	ok, err := m.WaitForAll(ctx, []domain.WorkItem{d}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	v, err := d.Result()
	assert.NoError(t, err)
	assert.Equal(t, "daemon", v)
}

type ctxKey struct{}

func TestWorkSeesScheduleContext(t *testing.T) {
	m := newManager(t, domain.WorkManagerConfig{})
	ctx := context.WithValue(context.Background(), ctxKey{}, "tenant-b")

	it, err := m.Schedule(ctx, domain.WorkFunc(func(ctx context.Context) (any, error) {
		return ctx.Value(ctxKey{}), nil
	}))
	require.NoError(t, err)
	<-it.Done()
	v, err := it.Result()
	assert.NoError(t, err)
	assert.Equal(t, "tenant-b", v)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, domain.WorkManagerConfig{Pool: domain.PoolConfig{MaxWorkers: 1}})
	gate := make(chan struct{})

	running, err := m.Schedule(ctx, blocking(gate))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return running.Status() == domain.WorkStarted }, waitFor, tick)
	queued, err := m.Schedule(ctx, value("queued"))
	require.NoError(t, err)

	st := m.Stats()
	assert.Equal(t, t.Name(), st.Name)
	assert.Equal(t, domain.Running, st.State)
	assert.Equal(t, 2, st.Pending)
	assert.Equal(t, 1, st.Queued)
	assert.Equal(t, 1, st.Started)

	close(gate)
	ok, err := m.WaitForAll(ctx, []domain.WorkItem{running, queued}, domain.Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Eventually(t, func() bool { return m.Stats().Pending == 0 }, waitFor, tick)
}

func TestStop_FromListener(t *testing.T) {
	tests := map[string]struct {
		hooks func(stop func()) domain.WorkHooks
		want  domain.WorkStatus
	}{
		"accepted": {
			hooks: func(stop func()) domain.WorkHooks {
				return domain.WorkHooks{OnAccepted: func(context.Context, domain.WorkEvent) { stop() }}
			},
			want: domain.WorkRejected,
		},
		"started": {
			hooks: func(stop func()) domain.WorkHooks {
				return domain.WorkHooks{OnStarted: func(context.Context, domain.WorkEvent) { stop() }}
			},
			want: domain.WorkCompleted,
		},
		"completed": {
			hooks: func(stop func()) domain.WorkHooks {
				return domain.WorkHooks{OnCompleted: func(context.Context, domain.WorkEvent) { stop() }}
			},
			want: domain.WorkCompleted,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newManager(t, domain.WorkManagerConfig{})

			returned := make(chan error, 1)
			var once sync.Once
			stop := func() { once.Do(func() { returned <- m.Stop() }) }

			item, err := m.ScheduleWithListener(ctx, value(1), tc.hooks(stop))
			require.NoError(t, err)

			select {
			case err := <-returned:
				assert.NoError(t, err)
			case <-time.After(waitFor):
				t.Fatal("Stop called from a listener did not return")
			}

			waitCtx, cancel := context.WithTimeout(ctx, waitFor)
			defer cancel()
			ok, err := m.WaitForStop(waitCtx, domain.Indefinite)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, m.IsStopped())
			assert.Equal(t, tc.want, item.Status())
		})
	}
}

func TestListenerContextNotCancelledOnTerminalEvent(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	m := newManager(t, domain.WorkManagerConfig{SubmitRate: 0.001, SubmitBurst: 1})

	type seen struct {
		err error
		val any
	}
	got := make(chan seen, 2)
	record := func(ctx context.Context, _ domain.WorkEvent) {
		got <- seen{err: ctx.Err(), val: ctx.Value(ctxKey{})}
	}
	hooks := domain.WorkHooks{OnRejected: record, OnCompleted: record}

	completed, err := m.ScheduleWithListener(ctx, value(1), hooks)
	require.NoError(t, err)
	rejected, err := m.ScheduleWithListener(ctx, value(2), hooks)
	require.NoError(t, err)

	ok, err := m.WaitForAll(ctx, []domain.WorkItem{completed, rejected}, domain.Indefinite)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.WorkCompleted, completed.Status())
	assert.Equal(t, domain.WorkRejected, rejected.Status())

	for range 2 {
		s := <-got
		assert.NoError(t, s.err)
		assert.Equal(t, "value", s.val)
	}
}
