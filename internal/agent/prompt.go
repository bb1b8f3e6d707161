package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/camuig/llm-arena/internal/market"
	"github.com/camuig/llm-arena/internal/models"
)

func (a *Agent) buildPrompt(status models.PortfolioStatus, snapshots map[string]market.Snapshot) string {
	var b strings.Builder

	elapsed := int(a.now().Sub(a.started).Minutes())
	fmt.Fprintf(&b, "It has been %d minute since you started trading.\n\n", elapsed)
	b.WriteString("Below, we are providing you with a variety of state data, price data, and predictive signals so you can discover alpha. " +
		"Below that is your current account information, value, performance, positions, etc.\n\n")
	b.WriteString("**ALL OF THE PRICE OR SIGNAL DATA BELOW IS ORDERED: OLDEST → NEWEST**\n\n")
	b.WriteString("**Timeframes note:** Unless stated otherwise in a section title, the series provided below are sampled at **daily intervals**. " +
		"If a symbol uses a different interval, it is explicitly stated in that symbol’s section.\n\n")
	b.WriteString("---\n\n")
	b.WriteString("### CURRENT MARKET STATE FOR ALL SYMBOLS\n\n")

	for _, symbol := range a.cfg.Symbols {
		snap, ok := snapshots[symbol]
		if !ok {
			continue
		}
		writeSymbolSection(&b, snap)
	}

	b.WriteString("### HERE IS YOUR ACCOUNT INFORMATION & PERFORMANCE\n\n")
	fmt.Fprintf(&b, "Current Total Return (percent): %s%%\n\n", num(status.TotalReturnPercent))
	fmt.Fprintf(&b, "Available Cash: %s\n\n", num(status.Cash))
	fmt.Fprintf(&b, "**Current Account Value:** %s\n\n", num(status.TotalValue))
	b.WriteString("Current live positions & performance:\n")
	a.writePositions(&b, status.LivePositionsDetails)
	fmt.Fprintf(&b, "Sharpe Ratio: %s\n\n", num(status.SharpeRatio))

	b.WriteString("### EXIT PLAN STATUS & INSTRUCTIONS\n")
	b.WriteString("For every currently held symbol, inspect its `exit_plan` (profit_target / stop_loss / invalidation_condition) " +
		"versus the latest market data above. If current conditions satisfy the exit plan, for example price >= profit_target " +
		"or price <= stop_loss, issue the appropriate `close` decision in this cycle. Only keep holding if neither boundary is met.\n\n")

	fmt.Fprintf(&b, "You may ONLY issue decisions for the following symbols: %s. Ignore any other holdings you might see. ",
		strings.Join(a.cfg.Symbols, ", "))
	b.WriteString("Based on the above information, provide a JSON object with a 'decisions' key, containing a list of trade decisions " +
		"for each symbol you want to trade, hold, or close. ")
	b.WriteString("Each decision in the list should include 'symbol', 'signal' (one of 'buy_to_enter', 'sell_to_enter', 'hold', 'close'), " +
		"'confidence', 'justification', and relevant optional fields like 'stop_loss', 'leverage', 'risk_usd', 'profit_target', " +
		"'quantity', and 'invalidation_condition'. The 'confidence' field must reflect your best-effort probability (0.0–1.0) " +
		"that the action is correct for the given market context; do not default to 0.0 unless truly uncertain.\n")
	b.WriteString("For 'close' signals, you must specify the symbol of the position to close.\n")
	b.WriteString("For 'buy_to_enter' or 'sell_to_enter', you must specify both a quantity and a clear 'invalidation_condition' " +
		"describing when the exit plan should trigger (e.g., price crosses a threshold, indicator flips, etc.).\n")
	b.WriteString("You can also choose to 'hold' a position or do nothing for a symbol.\n")
	b.WriteString("OUTPUT FORMAT REQUIREMENTS: Respond with raw JSON only (no markdown fences, no prose, no error strings). " +
		"Use double quotes for all keys/strings, and if you have no trades simply respond with {\"decisions\": []}. " +
		"Never include messages like 'Invalid JSON' or explanations outside the JSON object.\n")

	return b.String()
}

func writeSymbolSection(b *strings.Builder, s market.Snapshot) {
	fmt.Fprintf(b, "### ALL %s DATA\n\n", s.Symbol)
	fmt.Fprintf(b, "current_price = %s, current_ema20 = %s, current_macd = %s, current_rsi (7 period) = %s\n\n",
		num(s.CurrentPrice), num(s.CurrentEMA20), num(s.CurrentMACD), num(s.CurrentRSI7))

	b.WriteString("**Daily series (oldest → latest):**\n\n")
	fmt.Fprintf(b, "Mid prices: %s\n\n", series(s.MidPrices))
	fmt.Fprintf(b, "EMA indicators (20‑period): %s\n\n", series(s.EMA20Series))
	fmt.Fprintf(b, "MACD indicators: %s\n\n", series(s.MACDSeries))
	fmt.Fprintf(b, "RSI indicators (7‑Period): %s\n\n", series(s.RSI7Series))
	fmt.Fprintf(b, "RSI indicators (14‑Period): %s\n\n", series(s.RSI14Series))

	w := s.Weekly
	b.WriteString("**Longer‑term context (weekly timeframe):**\n\n")
	fmt.Fprintf(b, "20‑Period EMA: %s vs. 50‑Period EMA: %s\n\n", num(w.EMA20), num(w.EMA50))
	fmt.Fprintf(b, "3‑Period ATR: %s vs. 14‑Period ATR: %s\n\n", num(w.ATR3), num(w.ATR14))
	fmt.Fprintf(b, "Current Volume: %s vs. Average Volume: %s\n\n", num(w.CurrentVolume), num(w.AverageVolume))
	fmt.Fprintf(b, "MACD indicators: %s\n\n", series(w.MACDSeries))
	fmt.Fprintf(b, "RSI indicators (14‑Period): %s\n\n", series(w.RSI14Series))
	b.WriteString("---\n\n")
}

// writePositions renders held positions for tradable symbols only, one
// indented JSON object each, or {} when there are none.
func (a *Agent) writePositions(b *strings.Builder, details []models.PositionDetails) {
	allowed := make(map[string]bool, len(a.cfg.Symbols))
	for _, s := range a.cfg.Symbols {
		allowed[s] = true
	}

	wrote := false
	for _, d := range details {
		if !allowed[d.Symbol] {
			continue
		}
		raw, err := json.MarshalIndent(d, "", "    ")
		if err != nil {
			a.logger.Warn("encode position", "symbol", d.Symbol, "error", err)
			continue
		}
		b.Write(raw)
		b.WriteString("\n\n")
		wrote = true
	}
	if !wrote {
		b.WriteString("{}\n\n")
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func series(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = num(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
