package portfolio

import (
	"context"
	"math"
	"sort"

	"github.com/camuig/llm-arena/internal/broker"
	"github.com/camuig/llm-arena/internal/models"
)

const tradingDaysPerYear = 252

// GetStatus values the portfolio. Broker failures keep the last known cash
// and an empty broker position list; when the broker reports no positions
// the shadow ledger stands in. Each call extends the PnL history used for
// the Sharpe ratio.
func (p *Portfolio) GetStatus(ctx context.Context) models.PortfolioStatus {
	account, err := p.conn.GetAccount(ctx)

	p.mu.Lock()
	if err != nil {
		p.logger.Warn("get account, keeping last known cash", "cash", p.cash, "error", err)
	} else {
		p.cash = account.Cash
	}
	cash := p.cash
	p.mu.Unlock()

	positions, err := p.conn.GetPositions(ctx)
	if err != nil {
		p.logger.Warn("get broker positions", "error", err)
		positions = nil
	}
	synthesized := false
	if len(positions) == 0 {
		positions = p.shadowAsBroker()
		synthesized = len(positions) > 0
	}

	prices := map[string]float64{}
	if len(positions) > 0 && p.prices != nil {
		symbols := make([]string, len(positions))
		for i, pos := range positions {
			symbols[i] = pos.Symbol
		}
		fetched, err := p.prices.GetCurrentPrices(ctx, symbols)
		if err != nil {
			p.logger.Warn("get current prices, valuing at entry", "error", err)
		} else {
			prices = fetched
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var positionsValue float64
	details := make([]models.PositionDetails, 0, len(positions))
	current := make(map[string]models.Position, len(positions))
	for _, pos := range positions {
		price := prices[pos.Symbol]
		if price <= 0 {
			price = pos.CurrentPrice
		}
		if price <= 0 {
			price = pos.AvgEntryPrice
		}

		value := pos.Quantity * price
		positionsValue += value

		unrealized := pos.UnrealizedPnL
		if synthesized || unrealized == 0 {
			unrealized = (price - pos.AvgEntryPrice) * pos.Quantity
		}

		plan := p.planPtr(pos.Symbol)
		details = append(details, models.PositionDetails{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.AvgEntryPrice,
			CurrentPrice:  price,
			UnrealizedPnL: round2(unrealized),
			Leverage:      1,
			ExitPlan:      plan,
			NotionalUSD:   round2(value),
		})
		current[pos.Symbol] = models.Position{
			Symbol:       pos.Symbol,
			Quantity:     pos.Quantity,
			AveragePrice: pos.AvgEntryPrice,
			ExitPlan:     plan,
		}
	}

	totalValue := cash + positionsValue
	pnl := totalValue - p.initialCash
	p.pnlHistory = append(p.pnlHistory, pnl)
	sharpe := SharpeRatio(p.pnlHistory, p.initialCash)

	returnPct := 0.0
	if p.initialCash > 0 {
		returnPct = pnl / p.initialCash * 100
	}

	status := models.PortfolioStatus{
		Cash:                 cash,
		Positions:            current,
		LivePositionsDetails: details,
		TotalValue:           round2(totalValue),
		PnL:                  round2(pnl),
		TotalReturnPercent:   round2(returnPct),
		SharpeRatio:          math.Round(sharpe*1000) / 1000,
	}
	p.metrics.ObservePortfolio(p.agentID, status.TotalValue, status.SharpeRatio)
	return status
}

func (p *Portfolio) shadowAsBroker() []broker.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]broker.Position, 0, len(p.shadow))
	for _, pos := range p.shadow {
		out = append(out, broker.Position{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AveragePrice,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SharpeRatio annualizes the mean over the standard deviation of
// period-over-period PnL changes, each normalized by initial cash. It is 0
// with fewer than two observations, non-positive initial cash or no
// dispersion.
func SharpeRatio(pnlHistory []float64, initialCash float64) float64 {
	if initialCash <= 0 || len(pnlHistory) < 2 {
		return 0
	}

	returns := make([]float64, len(pnlHistory)-1)
	for i := 1; i < len(pnlHistory); i++ {
		returns[i-1] = (pnlHistory[i] - pnlHistory[i-1]) / initialCash
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))

	// Equal deltas can leave rounding residue instead of an exact zero.
	if std <= 1e-12*math.Max(1, math.Abs(mean)) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
