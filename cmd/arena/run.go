package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camuig/llm-arena/internal/web"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var noEngine bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine and the reporting API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer a.close()

			mode := a.cfg.Broker.Kind
			if a.tinkoff != nil && a.cfg.IsSandbox() {
				mode += " (sandbox)"
			}
			a.log.Info("starting arena", "broker", mode, "market", a.cfg.Market.Source, "agents", len(a.agents))

			server := web.NewServer(a.engine, a.repo, a.metrics, a.cfg.Web.Port, a.log)
			go func() {
				if err := server.Start(ctx); err != nil {
					a.log.Error("web server error", "error", err)
				}
			}()

			if !noEngine {
				a.engine.Start(ctx)
			}

			<-ctx.Done()
			a.log.Info("shutdown signal received")

			a.engine.Stop()
			<-a.engine.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("web server shutdown: %w", err)
			}
			a.log.Info("arena stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noEngine, "no-engine", false, "serve the API without starting the trading loop")
	return cmd
}
