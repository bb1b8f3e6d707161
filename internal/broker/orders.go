package broker

import (
	"context"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/llm-arena/internal/models"
)

// SubmitOrder places a market order for req.Quantity shares, rounded down to
// whole lots. The returned quantity is the executed share count.
func (tc *TinkoffConnector) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var direction pb.OrderDirection
	switch req.Side {
	case models.ActionBuy:
		direction = pb.OrderDirection_ORDER_DIRECTION_BUY
	case models.ActionSell:
		direction = pb.OrderDirection_ORDER_DIRECTION_SELL
	default:
		return nil, fmt.Errorf("unknown order side %q", req.Side)
	}

	uid, err := tc.ResolveTickerToUID(req.Symbol)
	if err != nil {
		return nil, err
	}
	lot, err := tc.lotSize(uid)
	if err != nil {
		return nil, err
	}
	lots := sharesToLots(req.Quantity, lot)
	if lots < 1 {
		return nil, fmt.Errorf("order for %s is below one lot of %d: %v", req.Symbol, lot, req.Quantity)
	}

	resp, err := tc.postMarketOrder(uid, lots, direction)
	if err != nil {
		return nil, fmt.Errorf("%s order %s: %w", req.Side, req.Symbol, err)
	}

	order := &Order{
		ID:       resp.GetOrderId(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: lotsToShares(resp.GetLotsExecuted(), lot),
	}
	if ep := resp.GetExecutedOrderPrice(); ep != nil {
		order.FilledPrice = ep.ToFloat()
	}
	if order.FilledPrice == 0 {
		order.FilledPrice = req.ReferencePrice
	}
	if order.Quantity == 0 {
		order.Quantity = lotsToShares(lots, lot)
	}

	tc.logger.Info("order placed",
		"symbol", req.Symbol, "side", req.Side, "lots", lots, "shares", order.Quantity,
		"order_id", order.ID, "price", order.FilledPrice)
	return order, nil
}

func (tc *TinkoffConnector) postMarketOrder(instrumentID string, lots int64, direction pb.OrderDirection) (*investgo.PostOrderResponse, error) {
	req := &investgo.PostOrderRequestShort{
		InstrumentId: instrumentID,
		Quantity:     lots,
		AccountId:    tc.AccountID(),
		OrderType:    pb.OrderType_ORDER_TYPE_MARKET,
		OrderId:      investgo.CreateUid(),
	}

	if tc.sandbox {
		sandbox := tc.client.NewSandboxServiceClient()
		return sandbox.PostSandboxOrder(&investgo.PostOrderRequest{
			InstrumentId: req.InstrumentId,
			Quantity:     req.Quantity,
			Direction:    direction,
			AccountId:    req.AccountId,
			OrderType:    req.OrderType,
			OrderId:      req.OrderId,
		})
	}

	orders := tc.client.NewOrdersServiceClient()
	if direction == pb.OrderDirection_ORDER_DIRECTION_BUY {
		return orders.Buy(req)
	}
	return orders.Sell(req)
}

// ClosePosition sells every whole lot held in symbol.
func (tc *TinkoffConnector) ClosePosition(ctx context.Context, symbol string) error {
	positions, err := tc.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.Symbol != symbol || p.Quantity <= 0 {
			continue
		}
		_, err := tc.SubmitOrder(ctx, OrderRequest{
			Symbol:         symbol,
			Quantity:       p.Quantity,
			Side:           models.ActionSell,
			ReferencePrice: p.CurrentPrice,
		})
		return err
	}
	return fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
}
