package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "arena",
		Short: "Language-model trading agents competing on one market",
		Long: `Arena runs autonomous trading agents. Every cycle each agent receives market
indicators and its account state, asks a language model for trade decisions
and routes them to a broker (paper or Tinkoff).`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")

	cmd.AddCommand(
		newRunCmd(opts),
		newCycleCmd(opts),
		newExitPlansCmd(opts),
		newCloseAllCmd(opts),
	)
	return cmd
}
