package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/igwarmup/internal/app"
	"github.com/ibeckermayer/igwarmup/internal/config"
	"github.com/ibeckermayer/igwarmup/internal/scheduler"
	"github.com/ibeckermayer/igwarmup/internal/server"
)

func newServeCmd(st *rootState) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, and the warm-up schedule when enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				st.cfg.Server.Addr = addr
			}
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), st.cfg, a, st.logger())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(cfg, a, logger)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Schedule.Enabled {
		sched, err := newWarmUpScheduler(cfg, a, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	g.Go(func() error {
		reloadOnHangup(gctx, a, logger)
		return nil
	})

	return g.Wait()
}

// newWarmUpScheduler registers the warm-up round. The round is rebuilt on
// every run so a reloaded config takes effect.
func newWarmUpScheduler(cfg *config.Config, a *app.App, logger *zap.Logger) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(cfg.Schedule.Timezone, logger)
	if err != nil {
		return nil, err
	}
	job := func(ctx context.Context) error {
		return a.WarmUp().Job()(ctx)
	}
	if err := sched.AddJob("warmup", cfg.Schedule.Spec, job); err != nil {
		return nil, err
	}
	return sched, nil
}

func reloadOnHangup(ctx context.Context, a *app.App, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.ReloadConfig(); err != nil {
				logger.Error("Failed to reload config", zap.Error(err))
			}
		}
	}
}
