package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/transitcache/debugserver"
	"github.com/jonwraymond/transitcache/observe"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr       string
		skipWarmup bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the cache warm and serve the debug HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := root.load(ctx)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Debug.Addr = addr
			}

			a, err := newApp(ctx, cfg, appOptions{maintenance: true})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if !skipWarmup {
				for key, err := range a.service.PreloadEssential(ctx) {
					if err != nil {
						a.logger.Warn(ctx, "preload failed", observe.F("key", key), observe.Err(err))
					}
				}
			}

			h, err := a.router()
			if err != nil {
				return err
			}
			return debugserver.NewServer(cfg.Debug.Addr, h, a.logger).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override debug.addr")
	cmd.Flags().BoolVar(&skipWarmup, "skip-warmup", false, "do not preload hot datasets before serving")
	return cmd
}
