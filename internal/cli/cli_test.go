package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/osmike/cadence/internal/config"
	"github.com/osmike/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cadenced "+Version)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
timers:
  heartbeats:
    - name: pulse
      period: 1m
`)
	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config ok: 1 heartbeat(s)")

	bad := writeConfig(t, `
timers:
  heartbeats:
    - name: pulse
      cron: "not a cron"
`)
	_, err = execute(t, "validate", "-c", bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execute(t, "validate", "--log-format", "xml")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDaemon_ProbeHeartbeat(t *testing.T) {
	cfg := config.Default()
	cfg.Work.StopTimeout = 2 * time.Second
	cfg.Timers.Heartbeats = []config.Heartbeat{
		{Name: "probe", Period: 10 * time.Millisecond, Probe: true},
		{Name: "quiet", Delay: time.Hour},
	}

	d, err := newDaemon(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, d.start(context.Background()))
	assert.Len(t, d.timers.Timers(), 2)

	assert.Eventually(t, func() bool {
		return d.memory.Count(domain.ExecCompleted) >= 4
	}, 2*time.Second, 5*time.Millisecond, "heartbeats fire and probes complete")

	require.NoError(t, d.shutdown())
	assert.True(t, d.timers.IsStopped())
	assert.True(t, d.work.IsStopped())
}

func TestDaemon_History(t *testing.T) {
	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Timers.Heartbeats = []config.Heartbeat{{Name: "once", Probe: true}}

	d, err := newDaemon(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, d.history)
	require.NoError(t, d.start(context.Background()))

	assert.Eventually(t, func() bool {
		n, err := d.history.Count(context.Background(), domain.ExecCompleted)
		return err == nil && n == 2
	}, 2*time.Second, 5*time.Millisecond, "one heartbeat and one probe")
	require.NoError(t, d.shutdown())
}

func TestDaemon_InvalidHeartbeat(t *testing.T) {
	cfg := config.Default()
	cfg.Timers.Heartbeats = []config.Heartbeat{{Name: "bad", Period: -time.Second}}

	d, err := newDaemon(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	err = d.start(context.Background())
	assert.Error(t, err)
	assert.NoError(t, d.shutdown())
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Work.StopTimeout = 2 * time.Second
	cfg.Timers.Heartbeats = []config.Heartbeat{{Name: "pulse", Period: 5 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zaptest.NewLogger(t)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
