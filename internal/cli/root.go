// Package cli implements the cadenced command line.
package cli

import (
	"github.com/osmike/cadence/internal/config"
	"github.com/osmike/cadence/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

type options struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCmd creates the root cobra command for cadenced.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "cadenced",
		Short:        "cadenced runs timers and asynchronous work",
		Long:         "cadenced schedules the heartbeat timers of its config file, dispatches probe work and exposes status and Prometheus metrics over HTTP.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (console, json); overrides the config file")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the config file and applies the command line overrides.
func (o *options) load() (config.File, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.File{}, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.File) *zap.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
