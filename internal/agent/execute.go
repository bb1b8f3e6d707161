package agent

import (
	"context"
	"fmt"
	"sort"

	"github.com/camuig/llm-arena/internal/models"
)

func (a *Agent) execute(ctx context.Context, decisions []models.TradeDecision) {
	prices, err := a.market.GetCurrentPrices(ctx, a.cfg.Symbols)
	if err != nil {
		a.logger.Warn("get current prices", "error", err)
		prices = map[string]float64{}
	}

	for _, d := range decisions {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("panic executing decision", "symbol", d.Symbol, "panic", fmt.Sprint(r))
				}
			}()

			price, ok := prices[d.Symbol]
			if !ok || price <= 0 {
				a.logger.Warn("no current price, skipping decision", "symbol", d.Symbol, "signal", d.Signal)
				return
			}

			switch d.Signal {
			case models.SignalBuyToEnter, models.SignalSellToEnter:
				a.executeEntry(ctx, d, price)
			case models.SignalClose:
				a.executeClose(ctx, d, price)
			case models.SignalHold:
				a.logger.Info("HOLD decision", "symbol", d.Symbol, "justification", d.Justification)
			default:
				a.logger.Warn("unknown signal, skipping", "signal", d.Signal, "symbol", d.Symbol)
			}
		}()
	}
}

func (a *Agent) executeEntry(ctx context.Context, d models.TradeDecision, price float64) {
	if d.Quantity == nil || *d.Quantity <= 0 {
		a.logger.Warn("entry without quantity, skipping", "symbol", d.Symbol, "signal", d.Signal)
		return
	}

	var plan *models.ExitPlan
	if d.StopLoss != nil && d.ProfitTarget != nil {
		plan = &models.ExitPlan{
			ProfitTarget: *d.ProfitTarget,
			StopLoss:     *d.StopLoss,
		}
		if d.InvalidationCondition != nil {
			plan.InvalidationCondition = *d.InvalidationCondition
		}
	}

	action := models.ActionBuy
	if d.Signal == models.SignalSellToEnter {
		action = models.ActionSell
	}

	trade, err := a.portfolio.ExecuteTrade(ctx, d.Symbol, action, *d.Quantity, price, plan)
	if err != nil {
		a.logger.Warn("trade rejected", "symbol", d.Symbol, "error", err)
		return
	}
	a.logger.Info("decision executed",
		"signal", d.Signal, "symbol", d.Symbol, "quantity", *d.Quantity, "price", price,
		"status", trade.Status, "confidence", d.Confidence, "justification", d.Justification)
}

func (a *Agent) executeClose(ctx context.Context, d models.TradeDecision, price float64) {
	pos, ok := a.portfolio.Position(ctx, d.Symbol)
	if !ok {
		a.logger.Warn("close requested but no open position", "symbol", d.Symbol)
		return
	}

	trade, err := a.portfolio.ExecuteTrade(ctx, d.Symbol, models.ActionSell, pos.Quantity, price, nil)
	if err != nil {
		a.logger.Warn("close rejected", "symbol", d.Symbol, "error", err)
		return
	}
	a.logger.Info("position closed",
		"symbol", d.Symbol, "quantity", pos.Quantity, "price", price,
		"status", trade.Status, "justification", d.Justification)
}

// CheckExitConditions force-closes every position whose exit plan bound has
// been crossed by the current price. It returns the number of closes routed.
func (a *Agent) CheckExitConditions(ctx context.Context) int {
	status := a.portfolio.GetStatus(ctx)
	if len(status.Positions) == 0 {
		return 0
	}

	symbols := sortedKeys(status.Positions)
	prices, err := a.market.GetCurrentPrices(ctx, symbols)
	if err != nil {
		a.logger.Warn("get current prices for exit checks", "error", err)
		return 0
	}

	closed := 0
	for _, symbol := range symbols {
		pos := status.Positions[symbol]
		if pos.ExitPlan == nil || pos.Quantity <= 0 {
			continue
		}
		price := prices[symbol]
		if price <= 0 {
			continue
		}

		var reason string
		switch {
		case price >= pos.ExitPlan.ProfitTarget:
			reason = "take-profit"
		case price <= pos.ExitPlan.StopLoss:
			reason = "stop-loss"
		default:
			continue
		}

		a.logger.Info("exit triggered", "reason", reason, "symbol", symbol, "price", price,
			"profit_target", pos.ExitPlan.ProfitTarget, "stop_loss", pos.ExitPlan.StopLoss)
		if _, err := a.portfolio.ExecuteTrade(ctx, symbol, models.ActionSell, pos.Quantity, price, nil); err != nil {
			a.logger.Warn("exit trade rejected", "symbol", symbol, "error", err)
			continue
		}
		closed++
	}
	return closed
}

func sortedKeys(positions map[string]models.Position) []string {
	keys := make([]string, 0, len(positions))
	for k := range positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
