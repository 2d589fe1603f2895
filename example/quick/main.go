// Example: a fixed-rate timer that submits work on every expiration.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/osmike/cadence"
)

func main() {
	ctx := context.Background()
	timers := cadence.NewTimerManager(cadence.TimerManagerConfig{Name: "quick"}, nil)
	work := cadence.NewWorkManager(cadence.WorkManagerConfig{Name: "quick"}, nil)

	var items []cadence.WorkItem
	itemsCh := make(chan cadence.WorkItem, 16)

	_, err := timers.ScheduleAtFixedRate(ctx, cadence.TimerFunc(func(ctx context.Context, t cadence.Timer) error {
		at, _ := t.ScheduledExecutionTime()
		item, err := work.Schedule(ctx, cadence.WorkFunc(func(context.Context) (any, error) {
			return fmt.Sprintf("hello from %s", at.Format(time.TimeOnly)), nil
		}))
		if err != nil {
			return err
		}
		itemsCh <- item
		return nil
	}), 0, time.Second)
	if err != nil {
		panic(err)
	}

	time.Sleep(5500 * time.Millisecond)
	_ = timers.Stop()
	_, _ = timers.WaitForStop(ctx, cadence.Indefinite)
	close(itemsCh)
	for item := range itemsCh {
		items = append(items, item)
	}

	_, _ = work.WaitForAll(ctx, items, 5*time.Second)
	for _, item := range items {
		v, err := item.Result()
		fmt.Println(item.ID(), v, err)
	}
	_ = work.Stop()
}
