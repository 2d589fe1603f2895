package domain

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// PoolConfig holds the settings of a worker pool.
type PoolConfig struct {
	// MaxWorkers is the maximum number of jobs executed concurrently.
	// Default is DEFAULT_NUM_WORKERS if set to 0.
	MaxWorkers int

	// IdleTimeout is how long an idle worker waits for a job before exiting.
	// Default is DEFAULT_IDLE_TIMEOUT if set to 0.
	IdleTimeout time.Duration
}

// WithDefaults returns a copy of the config with zero fields replaced by defaults.
func (c PoolConfig) WithDefaults() PoolConfig {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DEFAULT_NUM_WORKERS
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DEFAULT_IDLE_TIMEOUT
	}
	return c
}

// TimerManagerConfig holds the settings of a timer manager.
type TimerManagerConfig struct {
	// Name identifies the manager in logs and metrics.
	Name string

	// Pool configures the workers that run listeners.
	Pool PoolConfig

	// Clock supplies the current time and timers. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives manager logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// WorkManagerConfig holds the settings of a work manager.
type WorkManagerConfig struct {
	// Name identifies the manager in logs and metrics.
	Name string

	// Pool configures the workers that run non-daemon work.
	Pool PoolConfig

	// MaxQueued bounds the number of accepted items waiting for a worker.
	// Work submitted beyond it is rejected. Zero means unbounded.
	MaxQueued int

	// SubmitRate limits accepted submissions per second. Work submitted above the
	// rate is rejected. Zero means unlimited.
	SubmitRate float64

	// SubmitBurst is the burst size for SubmitRate. Defaults to 1 when SubmitRate is set.
	SubmitBurst int

	// Clock supplies the current time and timers. Defaults to the system clock.
	Clock clock.Clock

	// Logger receives manager logs. Defaults to a no-op logger.
	Logger *zap.Logger
}
