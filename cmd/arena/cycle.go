package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCycleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one decision cycle for every agent and print their state",
		Long: `Cycle runs exactly one decision cycle for all agents, ignoring the trading
window, then prints every agent's state as JSON. Useful for debugging prompts
and provider output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			a.engine.RunCycle(ctx)

			out, err := json.MarshalIndent(a.engine.AgentStates(ctx), "", "  ")
			if err != nil {
				return fmt.Errorf("encode states: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
