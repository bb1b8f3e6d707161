package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/camuig/llm-arena/internal/broker"
	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/logger"
)

func newCloseAllCmd(opts *rootOptions) *cobra.Command {
	var dryRun, yes bool

	cmd := &cobra.Command{
		Use:   "closeall",
		Short: "Close every open Tinkoff position",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.Tinkoff.Token == "" {
				return fmt.Errorf("closeall needs tinkoff.token: paper positions live only in a running process")
			}
			log := logger.New(cfg.Logging.Level)

			ctx := cmd.Context()
			tc, err := broker.NewTinkoffConnector(ctx, cfg.Tinkoff, log)
			if err != nil {
				return fmt.Errorf("broker init: %w", err)
			}
			defer tc.Stop()

			confirm := askConfirm
			if yes {
				confirm = func(int) (bool, error) { return true, nil }
			}
			return closeAll(ctx, cmd, tc, dryRun, confirm)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show positions without closing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "close without asking for confirmation")
	return cmd
}

func askConfirm(n int) (bool, error) {
	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Close %d position(s) at market?", n),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func closeAll(ctx context.Context, cmd *cobra.Command, conn broker.Connector, dryRun bool, confirm func(n int) (bool, error)) error {
	out := cmd.OutOrStdout()

	positions, err := conn.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Fprintln(out, "No open positions.")
		return nil
	}

	fmt.Fprintf(out, "Found %d position(s):\n\n", len(positions))
	for _, p := range positions {
		fmt.Fprintf(out, "  %s: %g, avg price %.2f, current %.2f, P&L %.2f\n",
			p.Symbol, p.Quantity, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPnL)
	}
	fmt.Fprintln(out)

	if dryRun {
		fmt.Fprintln(out, "Dry run, no orders placed.")
		return nil
	}
	ok, err := confirm(len(positions))
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	var closed, failed int
	for _, p := range positions {
		if err := conn.ClosePosition(ctx, p.Symbol); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  [FAIL] %s: %v\n", p.Symbol, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "  [OK]   %s: closed %g\n", p.Symbol, p.Quantity)
		closed++
	}

	fmt.Fprintf(out, "\nDone: %d closed, %d failed.\n", closed, failed)
	if failed > 0 {
		return fmt.Errorf("%d positions failed to close", failed)
	}
	return nil
}
