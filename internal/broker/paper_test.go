package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

func TestPaperConnectorTracksCash(t *testing.T) {
	ctx := context.Background()
	p := NewPaperConnector(1000, logger.Discard())

	order, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "AAPL", Quantity: 5, Side: models.ActionBuy, ReferencePrice: 120})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 120.0, order.FilledPrice)

	acct, err := p.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400.0, acct.Cash)

	_, err = p.SubmitOrder(ctx, OrderRequest{Symbol: "AAPL", Quantity: 2, Side: models.ActionSell, ReferencePrice: 130})
	require.NoError(t, err)
	acct, _ = p.GetAccount(ctx)
	assert.Equal(t, 660.0, acct.Cash)

	positions, err := p.GetPositions(ctx)
	assert.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaperConnectorRejects(t *testing.T) {
	ctx := context.Background()
	p := NewPaperConnector(100, logger.Discard())

	_, err := p.SubmitOrder(ctx, OrderRequest{Symbol: "NVDA", Quantity: 1, Side: models.ActionBuy, ReferencePrice: 900})
	assert.ErrorContains(t, err, "insufficient buying power")

	_, err = p.SubmitOrder(ctx, OrderRequest{Symbol: "NVDA", Quantity: 0, Side: models.ActionBuy, ReferencePrice: 9})
	assert.Error(t, err)

	_, err = p.SubmitOrder(ctx, OrderRequest{Symbol: "NVDA", Quantity: 1, Side: models.ActionBuy})
	assert.Error(t, err)

	assert.ErrorIs(t, p.ClosePosition(ctx, "NVDA"), ErrNoPosition)

	acct, _ := p.GetAccount(ctx)
	assert.Equal(t, 100.0, acct.Cash)
}
