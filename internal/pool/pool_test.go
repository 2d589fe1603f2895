package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPool_RunsAllJobs(t *testing.T) {
	p := New(domain.PoolConfig{MaxWorkers: 8}, nil, zaptest.NewLogger(t))

	var count atomic.Int64
	for i := 0; i < 500; i++ {
		assert.NoError(t, p.Submit(func() { count.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int64(500), count.Load())
	assert.Equal(t, 0, p.InFlight())
	assert.LessOrEqual(t, p.Workers(), 8)
	p.Close()
}

func TestPool_SingleWorkerIsFIFO(t *testing.T) {
	p := New(domain.PoolConfig{MaxWorkers: 1}, nil, zaptest.NewLogger(t))

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 50; i++ {
		i := i
		assert.NoError(t, p.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	p.Wait()

	assert.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	p := New(domain.PoolConfig{MaxWorkers: 3}, nil, zaptest.NewLogger(t))

	var running, peak atomic.Int64
	release := make(chan struct{})
	for i := 0; i < 10; i++ {
		assert.NoError(t, p.Submit(func() {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	assert.Eventually(t, func() bool { return running.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 7, p.Queued())
	close(release)
	p.Wait()
	assert.Equal(t, int64(3), peak.Load())
}

func TestPool_RecoversPanics(t *testing.T) {
	p := New(domain.PoolConfig{MaxWorkers: 1}, nil, zaptest.NewLogger(t))

	done := make(chan struct{})
	assert.NoError(t, p.Submit(func() { panic("boom") }))
	assert.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job after panic did not run")
	}
	p.Wait()
}

func TestPool_IdleWorkersRetire(t *testing.T) {
	clk := clock.NewMock()
	p := New(domain.PoolConfig{MaxWorkers: 2, IdleTimeout: time.Second}, clk, zaptest.NewLogger(t))

	assert.NoError(t, p.Submit(func() {}))
	p.Wait()
	assert.Equal(t, 1, p.Workers())

	assert.Eventually(t, func() bool {
		clk.Add(time.Second)
		return p.Workers() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPool_Close(t *testing.T) {
	p := New(domain.PoolConfig{MaxWorkers: 2}, nil, zaptest.NewLogger(t))
	assert.NoError(t, p.Submit(func() {}))
	p.Wait()

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Submit(func() {}), errs.ErrStopped)
	assert.Eventually(t, func() bool { return p.Workers() == 0 }, time.Second, 5*time.Millisecond)
}
