// Example: zap structured logging from timer and work listeners.
// Demonstrates how failures surface in listeners and in the managers' own logs.

package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/osmike/cadence"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()
	timers := cadence.NewTimerManager(cadence.TimerManagerConfig{Name: "log", Logger: logger}, nil)
	work := cadence.NewWorkManager(cadence.WorkManagerConfig{Name: "log", Logger: logger, SubmitRate: 2}, nil)

	events := cadence.WorkHooks{
		OnStarted: func(_ context.Context, ev cadence.WorkEvent) {
			logger.Info("work started", zap.String("item", ev.Item.ID()))
		},
		OnCompleted: func(_ context.Context, ev cadence.WorkEvent) {
			if ev.Err != nil {
				logger.Warn("work failed", zap.String("item", ev.Item.ID()), zap.Error(ev.Err))
				return
			}
			logger.Info("work completed", zap.String("item", ev.Item.ID()))
		},
		OnRejected: func(_ context.Context, ev cadence.WorkEvent) {
			logger.Warn("work rejected", zap.String("item", ev.Item.ID()), zap.Error(ev.Err))
		},
	}

	_, err := timers.ScheduleWithFixedDelay(ctx, cadence.TimerHooks{
		OnExpire: func(ctx context.Context, t cadence.Timer) error {
			logger.Info("timer expired", zap.String("timer", t.ID()))
			_, err := work.ScheduleWithListener(ctx, cadence.WorkFunc(simulate), events)
			return err
		},
		OnStop: func(_ context.Context, t cadence.Timer) {
			logger.Info("timer stopped", zap.String("timer", t.ID()))
		},
	}, 0, 300*time.Millisecond)
	if err != nil {
		logger.Fatal("schedule", zap.Error(err))
	}

	time.Sleep(5 * time.Second)
	_ = timers.Stop()
	_ = work.Stop()
	_, _ = timers.WaitForStop(ctx, cadence.Indefinite)
	_, _ = work.WaitForStop(ctx, cadence.Indefinite)
	logger.Info("managers stopped")
}

func simulate(ctx context.Context) (any, error) {
	select {
	case <-time.After(time.Duration(rand.Intn(800)+200) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if rand.Float32() < 0.3 {
		return nil, errors.New("simulated failure")
	}
	return "ok", nil
}
