package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/transitcache/config"
	"github.com/jonwraymond/transitcache/secret"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "transitcache",
		Short:         "Stale-while-revalidate cache in front of the transit gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override observe.logging.level")

	cmd.AddCommand(newServeCmd(opts), newWarmupCmd(opts), newStatsCmd(opts))
	return cmd
}

// load reads, resolves and validates the configuration.
func (o *rootOptions) load(ctx context.Context) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Observe.Logging.Level = o.logLevel
	}

	resolver, err := secret.NewDefaultResolver(cfg.SecretsDir)
	if err != nil {
		return config.Config{}, err
	}
	defer resolver.Close()
	if err := cfg.Resolve(ctx, resolver); err != nil {
		return config.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
