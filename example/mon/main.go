// Example: Prometheus metrics for timers and work.
// Exposes cadence_* metrics on :2112/metrics via promhttp.

package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/osmike/cadence"
	"github.com/osmike/cadence/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	reg := prometheus.NewRegistry()
	prom, err := monitoring.NewPrometheus(reg)
	if err != nil {
		log.Fatal(err)
	}
	mem := monitoring.New()
	mon := monitoring.Multi{prom, mem}

	ctx := context.Background()
	timers := cadence.NewTimerManager(cadence.TimerManagerConfig{Name: "mon"}, mon)
	work := cadence.NewWorkManager(cadence.WorkManagerConfig{Name: "mon", MaxQueued: 4}, mon)

	_, err = timers.ScheduleCron(ctx, cadence.TimerFunc(func(ctx context.Context, _ cadence.Timer) error {
		for range 8 {
			if _, err := work.Schedule(ctx, cadence.WorkFunc(task)); err != nil {
				return err
			}
		}
		return nil
	}), "* * * * *")
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		for range time.Tick(10 * time.Second) {
			log.Printf("completed=%d failed=%d rejected=%d",
				mem.Count(cadence.ExecCompleted),
				mem.Count(cadence.ExecError),
				mem.Count(cadence.ExecRejected))
		}
	}()

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Println("serving metrics on :2112/metrics")
	log.Fatal(http.ListenAndServe(":2112", nil))
}

func task(ctx context.Context) (any, error) {
	time.Sleep(time.Duration(rand.Intn(2000)) * time.Millisecond)
	if rand.Float32() < 0.2 {
		return nil, errors.New("random failure")
	}
	return nil, nil
}
