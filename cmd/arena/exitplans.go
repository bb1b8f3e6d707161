package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/models"
	"github.com/camuig/llm-arena/internal/storage"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newExitPlansCmd(opts *rootOptions) *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "exitplans",
		Short: "Print the stored exit plans of each agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			found := false
			for _, ac := range cfg.Agents {
				if agentID != "" && ac.ID != agentID {
					continue
				}
				found = true
				store, err := storage.NewExitPlanStore(cfg.ExitPlanPath(ac.ID))
				if err != nil {
					return err
				}
				plans, err := store.Load()
				if err != nil {
					return fmt.Errorf("load %s: %w", store.Path(), err)
				}
				renderExitPlans(cmd.OutOrStdout(), ac.ID, store.Path(), plans)
			}
			if !found {
				return fmt.Errorf("unknown agent %q", agentID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "only show this agent")
	return cmd
}

func renderExitPlans(w io.Writer, agentID, path string, plans map[string]models.ExitPlan) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s)", agentID, path)))
	if len(plans) == 0 {
		fmt.Fprintln(w, "no exit plans")
		return
	}

	symbols := make([]string, 0, len(plans))
	for s := range plans {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SYMBOL", "PROFIT TARGET", "STOP LOSS", "INVALIDATION").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range symbols {
		p := plans[s]
		t.Row(s, fmt.Sprintf("%.2f", p.ProfitTarget), fmt.Sprintf("%.2f", p.StopLoss), p.InvalidationCondition)
	}
	fmt.Fprintln(w, t.String())
}
