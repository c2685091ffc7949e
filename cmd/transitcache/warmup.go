package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/transitcache/buscache"
)

// errWarmupFailed is returned when no hot dataset could be fetched.
var errWarmupFailed = errors.New("warmup: every dataset failed")

func newWarmupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Fetch the hot datasets once and write them to the durable store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := root.load(ctx)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			results := a.service.Warmup(ctx)
			failed := 0
			out := cmd.OutOrStdout()
			for _, d := range []buscache.Dataset{buscache.LiveBuses, buscache.AllLines} {
				if err := results[d]; err != nil {
					failed++
					fmt.Fprintf(out, "%-10s error: %v\n", d, err)
					continue
				}
				fmt.Fprintf(out, "%-10s ok\n", d)
			}
			if failed == len(results) && failed > 0 {
				return errWarmupFailed
			}
			return nil
		},
	}
}
