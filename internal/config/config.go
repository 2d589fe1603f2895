// Package config loads the daemon configuration from YAML and the environment.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/osmike/cadence/internal/domain"
	errs "github.com/osmike/cadence/internal/error"
	"github.com/osmike/cadence/internal/timer"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errs.New(errs.ErrUsage, "invalid config")

// File is the daemon configuration file.
type File struct {
	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	Timers  TimersConfig  `yaml:"timers"`
	Work    WorkConfig    `yaml:"work"`
	History HistoryConfig `yaml:"history"`
}

// HistoryConfig enables the SQLite execution history. An empty Path disables it.
type HistoryConfig struct {
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the status and metrics listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// TimersConfig configures the timer manager and the timers the daemon schedules.
type TimersConfig struct {
	Name        string        `yaml:"name"`
	MaxWorkers  int           `yaml:"maxWorkers"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	Heartbeats  []Heartbeat   `yaml:"heartbeats"`
}

// Heartbeat is a timer scheduled at startup. Each expiration is logged and,
// when Probe is set, submits a probe work item to the work manager.
type Heartbeat struct {
	Name   string        `yaml:"name"`
	Mode   string        `yaml:"mode"`
	Delay  time.Duration `yaml:"delay"`
	Period time.Duration `yaml:"period"`
	Cron   string        `yaml:"cron"`
	Probe  bool          `yaml:"probe"`
}

// WorkConfig configures the work manager.
type WorkConfig struct {
	Name        string        `yaml:"name"`
	MaxWorkers  int           `yaml:"maxWorkers"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	MaxQueued   int           `yaml:"maxQueued"`
	SubmitRate  float64       `yaml:"submitRate"`
	SubmitBurst int           `yaml:"submitBurst"`
	StopTimeout time.Duration `yaml:"stopTimeout"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Log:  LogConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{Addr: ":9090", ShutdownTimeout: 5 * time.Second},
		Timers: TimersConfig{
			Name:        "timers",
			MaxWorkers:  domain.DEFAULT_NUM_WORKERS,
			IdleTimeout: domain.DEFAULT_IDLE_TIMEOUT,
		},
		Work: WorkConfig{
			Name:        "work",
			MaxWorkers:  domain.DEFAULT_NUM_WORKERS,
			IdleTimeout: domain.DEFAULT_IDLE_TIMEOUT,
			StopTimeout: 30 * time.Second,
		},
		History: HistoryConfig{Limit: 100},
	}
}

// Load reads the YAML file at path over the defaults, then applies environment overrides.
// An empty path yields the defaults with overrides.
func Load(path string) (File, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Decode(bytes.NewReader(data), &cfg); err != nil {
			return File{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Decode reads YAML from r into cfg. Fields missing from the document keep
// their current value; unknown fields are an error.
func Decode(r io.Reader, cfg *File) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnvOverrides applies CADENCE_* environment variables to cfg.
// Malformed numeric values are ignored.
func ApplyEnvOverrides(cfg *File) {
	if v := env("CADENCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("CADENCE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := env("CADENCE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if n, err := strconv.Atoi(env("CADENCE_TIMER_WORKERS")); err == nil {
		cfg.Timers.MaxWorkers = n
	}
	if n, err := strconv.Atoi(env("CADENCE_WORK_WORKERS")); err == nil {
		cfg.Work.MaxWorkers = n
	}
	if n, err := strconv.Atoi(env("CADENCE_WORK_MAX_QUEUED")); err == nil {
		cfg.Work.MaxQueued = n
	}
	if f, err := strconv.ParseFloat(env("CADENCE_WORK_RATE"), 64); err == nil {
		cfg.Work.SubmitRate = f
	}
	if v := env("CADENCE_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate reports every problem of cfg at once.
func (f File) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, errs.New(ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch strings.ToLower(f.Log.Format) {
	case "", "console", "json":
	default:
		invalid("log.format %q: expected console or json", f.Log.Format)
	}
	if f.Timers.MaxWorkers < 0 {
		invalid("timers.maxWorkers must not be negative")
	}
	if f.Work.MaxWorkers < 0 {
		invalid("work.maxWorkers must not be negative")
	}
	if f.Work.MaxQueued < 0 {
		invalid("work.maxQueued must not be negative")
	}
	if f.Work.SubmitRate < 0 {
		invalid("work.submitRate must not be negative")
	}
	if f.History.Limit < 0 {
		invalid("history.limit must not be negative")
	}

	seen := make(map[string]bool, len(f.Timers.Heartbeats))
	for i, hb := range f.Timers.Heartbeats {
		if hb.Name == "" {
			invalid("timers.heartbeats[%d]: name is required", i)
		} else if seen[hb.Name] {
			invalid("timers.heartbeats[%d]: duplicate name %q", i, hb.Name)
		}
		seen[hb.Name] = true
		if _, cfgErr := hb.TimerConfig(nil); cfgErr != nil {
			invalid("timers.heartbeats[%d] %s: %v", i, hb.Name, cfgErr)
		}
	}
	return err
}

// TimerConfig converts the heartbeat into a timer description for l.
// The result is validated the same way the timer manager validates it.
func (h Heartbeat) TimerConfig(l domain.TimerListener) (domain.TimerConfig, error) {
	cfg := domain.TimerConfig{
		Listener: l,
		Mode:     domain.RepeatMode(strings.ToLower(h.Mode)),
		Delay:    h.Delay,
		Period:   h.Period,
		CronExpr: h.Cron,
	}
	probe := cfg
	if probe.Listener == nil {
		probe.Listener = domain.TimerHooks{}
	}
	if _, err := timer.New(context.Background(), "heartbeat", probe, time.Now(), nil); err != nil {
		return domain.TimerConfig{}, err
	}
	return cfg, nil
}

// TimerManagerConfig returns the timer manager settings.
func (f File) TimerManagerConfig(logger *zap.Logger) domain.TimerManagerConfig {
	return domain.TimerManagerConfig{
		Name:   f.Timers.Name,
		Pool:   domain.PoolConfig{MaxWorkers: f.Timers.MaxWorkers, IdleTimeout: f.Timers.IdleTimeout},
		Logger: logger,
	}
}

// WorkManagerConfig returns the work manager settings.
func (f File) WorkManagerConfig(logger *zap.Logger) domain.WorkManagerConfig {
	return domain.WorkManagerConfig{
		Name:        f.Work.Name,
		Pool:        domain.PoolConfig{MaxWorkers: f.Work.MaxWorkers, IdleTimeout: f.Work.IdleTimeout},
		MaxQueued:   f.Work.MaxQueued,
		SubmitRate:  f.Work.SubmitRate,
		SubmitBurst: f.Work.SubmitBurst,
		Logger:      logger,
	}
}
