package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var keys []string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print what the durable store holds for the hot datasets",
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

			out := map[string]any{"cache": a.service.CacheStatus()}
			if len(keys) > 0 {
				statuses := make(map[string]any, len(keys))
				for _, k := range keys {
					statuses[k] = a.engine.Status(k)
				}
				out["keys"] = statuses
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringSliceVar(&keys, "key", nil, "also report these cache keys")
	return cmd
}
