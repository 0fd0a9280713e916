package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clustergraph/cluster-gcn-pipeline/pkg/options"
)

type rootFlags struct {
	configPath string
	overrides  []string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "clustergcn",
		Short:        "Graph clustering and batch construction for Cluster-GCN training",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "options file (YAML or JSON)")
	cmd.PersistentFlags().StringArrayVar(&flags.overrides, "set", nil, "dotted-path override, e.g. training.epochs=10 (repeatable)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newClusterCmd(flags))
	cmd.AddCommand(newStatsCmd(flags))
	cmd.AddCommand(newBatchesCmd(flags))
	return cmd
}

// load assembles the effective options and logger for a subcommand:
// defaults, then the config file, then --set overrides.
func (f *rootFlags) load() (*options.Options, *zap.Logger, error) {
	opts := options.Default()
	if f.configPath != "" {
		loaded, err := options.Load(f.configPath)
		if err != nil {
			return nil, nil, err
		}
		opts = loaded
	}
	if err := opts.Apply(f.overrides); err != nil {
		return nil, nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	logCfg := zap.NewProductionConfig()
	if f.verbose {
		logCfg = zap.NewDevelopmentConfig()
	}
	log, err := logCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return opts, log, nil
}
