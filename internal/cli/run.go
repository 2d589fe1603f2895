package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/osmike/cadence/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the managers and the HTTP listener until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

// run starts the daemon and blocks until ctx is done, then stops both managers.
func run(ctx context.Context, cfg config.File, logger *zap.Logger) error {
	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	if err := d.start(ctx); err != nil {
		return multierr.Append(err, d.shutdown())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.Run(gctx, cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return d.shutdown()
	})
	return g.Wait()
}
