package cadence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTimerManager_FiringOrder(t *testing.T) {
	tm := NewTimerManager(TimerManagerConfig{Name: "order", Pool: PoolConfig{MaxWorkers: 1}, Logger: zaptest.NewLogger(t)}, nil)
	defer tm.Stop()

	var (
		mu    sync.Mutex
		order []string
	)
	listener := func(name string) TimerListener {
		return TimerFunc(func(context.Context, Timer) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		delay time.Duration
	}{{"10ms", 10 * time.Millisecond}, {"20ms", 20 * time.Millisecond}, {"5ms", 5 * time.Millisecond}} {
		_, err := tm.Schedule(ctx, listener(tc.name), tc.delay)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"5ms", "10ms", "20ms"}, order)
}

func TestWorkManager_FailedWorkIsCompleted(t *testing.T) {
	wm := NewWorkManager(WorkManagerConfig{Name: "fail", Logger: zaptest.NewLogger(t)}, nil)
	defer wm.Stop()

	boom := errors.New("boom")
	ctx := context.Background()
	item, err := wm.Schedule(ctx, WorkFunc(func(context.Context) (any, error) { return nil, boom }))
	require.NoError(t, err)

	ok, err := wm.WaitForAll(ctx, []WorkItem{item}, Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = item.Result()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrWorkFailed)
	var completed *WorkCompletedError
	assert.ErrorAs(t, err, &completed)
	assert.Equal(t, KindExecution, KindOf(err))
	assert.Equal(t, WorkCompleted, item.Status())
}

func TestWorkManager_WaitForAllImmediate(t *testing.T) {
	wm := NewWorkManager(WorkManagerConfig{Name: "immediate"}, nil)
	defer wm.Stop()
	ctx := context.Background()

	ok, err := wm.WaitForAll(ctx, nil, Immediate)
	require.NoError(t, err)
	assert.True(t, ok, "an empty set is complete")

	gate := make(chan struct{})
	defer close(gate)
	item, err := wm.Schedule(ctx, WorkFunc(func(context.Context) (any, error) {
		<-gate
		return nil, nil
	}))
	require.NoError(t, err)

	start := time.Now()
	ok, err = wm.WaitForAll(ctx, []WorkItem{item}, Immediate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestStop_ThenSchedule(t *testing.T) {
	tm := NewTimerManager(TimerManagerConfig{Name: "stop"}, nil)
	require.NoError(t, tm.Stop())

	_, err := tm.Schedule(context.Background(), TimerFunc(func(context.Context, Timer) error { return nil }), 0)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, KindState, KindOf(err))
	assert.ErrorIs(t, tm.Stop(), ErrStopped)

	ok, err := tm.WaitForStop(context.Background(), Indefinite)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, tm.IsStopped())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUsage, KindOf(ErrNegativeDelay))
	assert.Equal(t, KindTimeoutOrCancelled, KindOf(ErrWaitCancelled))
	assert.Equal(t, KindUnknown, KindOf(errors.New("other")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}
