// Example: persisting the execution history in SQLite.
// Run it twice: the second run lists the executions of the first.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/osmike/cadence"
	"github.com/osmike/cadence/monitoring"
)

const dbName = "history.db"

func main() {
	history, err := monitoring.OpenHistory(dbName, nil)
	if err != nil {
		log.Fatalf("open history: %v", err)
	}
	defer history.Close()

	ctx := context.Background()
	previous, err := history.Recent(ctx, 5)
	if err != nil {
		log.Fatalf("read history: %v", err)
	}
	for _, e := range previous {
		fmt.Printf("[history] %s %s %s in %s\n", e.Kind, e.ID, e.Status, time.Duration(e.ExecutionTime))
	}

	timers := cadence.NewTimerManager(cadence.TimerManagerConfig{Name: "db"}, history)
	_, err = timers.ScheduleAtFixedRate(ctx, cadence.TimerFunc(func(context.Context, cadence.Timer) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}), 0, 200*time.Millisecond)
	if err != nil {
		log.Fatal(err)
	}

	time.Sleep(time.Second)
	_ = timers.Stop()
	_, _ = timers.WaitForStop(ctx, cadence.Indefinite)

	n, _ := history.Count(ctx, cadence.ExecCompleted)
	fmt.Printf("[history] %d completed executions recorded in %s\n", n, dbName)
}
