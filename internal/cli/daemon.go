package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/osmike/cadence/internal/config"
	"github.com/osmike/cadence/internal/domain"
	"github.com/osmike/cadence/internal/manager"
	"github.com/osmike/cadence/internal/server"
	"github.com/osmike/cadence/internal/work"
	"github.com/osmike/cadence/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// daemon wires both managers, monitoring and the HTTP server together.
type daemon struct {
	cfg     config.File
	logger  *zap.Logger
	memory  *monitoring.Monitoring
	history *monitoring.History
	timers  *manager.Manager
	work    *work.Manager
	server  *server.Server
}

func newDaemon(cfg config.File, logger *zap.Logger) (*daemon, error) {
	reg := prometheus.NewRegistry()
	if err := multierr.Combine(
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	); err != nil {
		return nil, err
	}
	prom, err := monitoring.NewPrometheus(reg)
	if err != nil {
		return nil, err
	}

	mem := monitoring.New()
	mon := monitoring.Multi{prom, mem}
	var opts []server.Option
	d := &daemon{cfg: cfg, logger: logger, memory: mem}
	if cfg.History.Path != "" {
		h, err := monitoring.OpenHistory(cfg.History.Path, logger)
		if err != nil {
			return nil, err
		}
		d.history = h
		mon = append(mon, h)
		opts = append(opts, server.WithHistory(h, cfg.History.Limit))
	}

	d.timers = manager.New(cfg.TimerManagerConfig(logger), mon)
	d.work = work.New(cfg.WorkManagerConfig(logger), mon)
	d.server = server.New(d.timers, d.work, reg, logger, opts...)
	return d, nil
}

// start schedules every configured heartbeat. Values of ctx reach the listeners.
func (d *daemon) start(ctx context.Context) error {
	for _, hb := range d.cfg.Timers.Heartbeats {
		tcfg, err := hb.TimerConfig(d.heartbeat(hb))
		if err != nil {
			return fmt.Errorf("heartbeat %s: %w", hb.Name, err)
		}
		t, err := d.timers.ScheduleTimer(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("heartbeat %s: %w", hb.Name, err)
		}
		d.logger.Info("heartbeat scheduled",
			zap.String("heartbeat", hb.Name),
			zap.String("timer_id", t.ID()),
			zap.String("mode", string(t.Mode())),
		)
	}
	return nil
}

// heartbeat builds the listener of hb. A probe heartbeat submits one work item
// per expiration; a rejected probe is logged, not returned.
func (d *daemon) heartbeat(hb config.Heartbeat) domain.TimerListener {
	logger := d.logger.With(zap.String("heartbeat", hb.Name))
	return domain.TimerHooks{
		OnExpire: func(ctx context.Context, t domain.Timer) error {
			at, _ := t.ScheduledExecutionTime()
			logger.Info("heartbeat", zap.String("timer_id", t.ID()), zap.Time("scheduled", at))
			if !hb.Probe {
				return nil
			}
			_, err := d.work.ScheduleWithListener(ctx, probe(hb.Name), domain.WorkHooks{
				OnRejected: func(_ context.Context, ev domain.WorkEvent) {
					logger.Warn("probe rejected", zap.String("item_id", ev.Item.ID()), zap.Error(ev.Err))
				},
				OnCompleted: func(_ context.Context, ev domain.WorkEvent) {
					logger.Debug("probe completed", zap.String("item_id", ev.Item.ID()), zap.Error(ev.Err))
				},
			})
			return err
		},
		OnStop: func(_ context.Context, t domain.Timer) {
			logger.Info("heartbeat stopped", zap.String("timer_id", t.ID()))
		},
	}
}

// probe reports the manager round trip: the time from submission to start.
func probe(name string) domain.Work {
	submitted := time.Now()
	return domain.WorkFunc(func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s: started after %s", name, time.Since(submitted)), nil
	})
}

// shutdown stops both managers and waits up to the configured stop timeout
// for each of them.
func (d *daemon) shutdown() error {
	err := multierr.Combine(d.timers.Stop(), d.work.Stop())

	ctx := context.Background()
	timeout := d.cfg.Work.StopTimeout
	if timeout <= 0 {
		timeout = domain.Indefinite
	}
	for _, wait := range []func(context.Context, time.Duration) (bool, error){d.timers.WaitForStop, d.work.WaitForStop} {
		ok, waitErr := wait(ctx, timeout)
		if waitErr != nil {
			err = multierr.Append(err, waitErr)
		} else if !ok {
			err = multierr.Append(err, fmt.Errorf("managers did not stop within %s", timeout))
		}
	}
	if d.history != nil {
		err = multierr.Append(err, d.history.Close())
	}
	if err == nil {
		d.logger.Info("stopped",
			zap.Int64("completed", d.memory.Count(domain.ExecCompleted)),
			zap.Int64("failed", d.memory.Count(domain.ExecError)),
			zap.Int64("rejected", d.memory.Count(domain.ExecRejected)),
		)
	}
	return err
}
