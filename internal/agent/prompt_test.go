package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/models"
)

func TestPromptLayout(t *testing.T) {
	f := newFixture(t, []string{"AAPL", "NVDA"})
	*f.clock = f.clock.Add(3*time.Minute + 20*time.Second)
	f.provider.answer = models.DecisionList{}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	require.Len(t, f.provider.prompts, 1)
	prompt := f.provider.prompts[0]

	assert.True(t, strings.HasPrefix(prompt, "It has been 3 minute since you started trading.\n\n"))
	assert.Contains(t, prompt, "**ALL OF THE PRICE OR SIGNAL DATA BELOW IS ORDERED: OLDEST → NEWEST**")
	assert.Contains(t, prompt, "### ALL AAPL DATA\n\n")
	assert.Contains(t, prompt, "current_price = 120, current_ema20 = 118.5, current_macd = 1.25, current_rsi (7 period) = 61.2")
	assert.Contains(t, prompt, "Mid prices: [117, 118.5, 120]")
	assert.Contains(t, prompt, "20‑Period EMA: 110 vs. 50‑Period EMA: 100")
	assert.NotContains(t, prompt, "### ALL NVDA DATA")

	assert.Contains(t, prompt, "Current Total Return (percent): 0%")
	assert.Contains(t, prompt, "Available Cash: 10000")
	assert.Contains(t, prompt, "Current live positions & performance:\n{}\n\n")
	assert.Contains(t, prompt, "Sharpe Ratio: 0")
	assert.Contains(t, prompt, "You may ONLY issue decisions for the following symbols: AAPL, NVDA.")
	assert.Contains(t, prompt, `{"decisions": []}`)

	marketIdx := strings.Index(prompt, "### CURRENT MARKET STATE")
	accountIdx := strings.Index(prompt, "### HERE IS YOUR ACCOUNT INFORMATION")
	exitIdx := strings.Index(prompt, "### EXIT PLAN STATUS & INSTRUCTIONS")
	assert.True(t, marketIdx < accountIdx && accountIdx < exitIdx)
}

func TestPromptListsOnlyTradablePositions(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	ctx := context.Background()
	pf := f.agent.Portfolio()

	_, err := pf.ExecuteTrade(ctx, "AAPL", models.ActionBuy, 2, 120, &models.ExitPlan{ProfitTarget: 150, StopLoss: 90, InvalidationCondition: "close below 100"})
	require.NoError(t, err)
	_, err = pf.ExecuteTrade(ctx, "NVDA", models.ActionBuy, 1, 400, nil)
	require.NoError(t, err)

	f.provider.answer = models.DecisionList{}
	require.NoError(t, f.agent.DecideAndTrade(ctx))
	prompt := f.provider.prompts[0]

	assert.Contains(t, prompt, `"symbol": "AAPL"`)
	assert.Contains(t, prompt, `"invalidation_condition": "close below 100"`)
	assert.Contains(t, prompt, `"sl_oid": 0`)
	assert.NotContains(t, prompt, `"symbol": "NVDA"`)
	assert.NotContains(t, prompt, "performance:\n{}")
}

func TestSeriesFormatting(t *testing.T) {
	assert.Equal(t, "[]", series(nil))
	assert.Equal(t, "[1, 2.5, -0.0001]", series([]float64{1, 2.5, -0.0001}))
}
