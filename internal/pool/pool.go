package pool

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"go.uber.org/zap"
)

// Pool runs submitted jobs on a bounded set of worker goroutines.
//
// Workers are started on demand up to MaxWorkers and exit after IdleTimeout
// without work. Jobs that cannot be picked up immediately wait in a FIFO backlog,
// so Submit never blocks. With MaxWorkers set to 1 jobs run strictly in submission order.
type Pool struct {
	cfg    domain.PoolConfig
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	backlog  []func()
	workers  int
	idle     int
	inFlight int
	closed   bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a Pool. Zero fields of cfg are replaced by their defaults.
//
// Parameters:
//   - cfg: Pool limits.
//   - clk: Clock used for idle timeouts.
//   - logger: Logger used to report recovered panics.
//
// Returns:
//   - A ready to use Pool. No goroutine is started until the first Submit.
func New(cfg domain.PoolConfig, clk clock.Clock, logger *zap.Logger) *Pool {
	cfg = cfg.WithDefaults()
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:    cfg,
		clock:  clk,
		logger: logger,
		wake:   make(chan struct{}, cfg.MaxWorkers),
		quit:   make(chan struct{}),
	}
}

// Submit queues job for execution.
//
// The job is handed to an idle worker when there is one, a new worker is
// started when the pool is below MaxWorkers, otherwise it waits in the backlog.
//
// Returns:
//   - ErrStopped if the pool was closed.
func (p *Pool) Submit(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.New(errs.ErrStopped, "pool closed")
	}

	p.backlog = append(p.backlog, job)
	p.inFlight++
	p.wg.Add(1)

	switch {
	case p.idle > 0:
		p.idle--
		p.wake <- struct{}{}
	case p.workers < p.cfg.MaxWorkers:
		p.workers++
		go p.worker()
	}
	return nil
}

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

// InFlight returns the number of submitted jobs that have not finished yet.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Workers returns the number of live worker goroutines.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close rejects further submissions and lets idle workers exit.
// Jobs already submitted still run to completion.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.quit)
}

// worker executes jobs from the backlog until it has been idle for IdleTimeout.
func (p *Pool) worker() {
	for {
		p.mu.Lock()
		if len(p.backlog) > 0 {
			job := p.backlog[0]
			p.backlog[0] = nil
			p.backlog = p.backlog[1:]
			p.mu.Unlock()

			p.run(job)
			continue
		}
		if p.closed {
			p.workers--
			p.mu.Unlock()
			return
		}
		p.idle++
		p.mu.Unlock()

		if !p.waitForWork() {
			return
		}
	}
}

// waitForWork parks an idle worker. It returns false when the worker retired.
func (p *Pool) waitForWork() bool {
	timer := p.clock.Timer(p.cfg.IdleTimeout)
	defer timer.Stop()

	select {
	case <-p.wake:
		return true
	case <-timer.C:
	case <-p.quit:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// A submitter may have claimed this worker while it was timing out.
	select {
	case <-p.wake:
		return true
	default:
	}
	p.idle--
	if len(p.backlog) > 0 {
		return true
	}
	p.workers--
	return false
}

func (p *Pool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", zap.Error(fmt.Errorf("%v", r)))
		}
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
		p.wg.Done()
	}()
	job()
}
