package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

// PaperConnector acknowledges every affordable market order at its reference
// price. It reports no positions: holdings live in the portfolio's shadow
// ledger, only cash is tracked here.
type PaperConnector struct {
	mu     sync.Mutex
	cash   float64
	logger *logger.Logger
}

func NewPaperConnector(initialCash float64, log *logger.Logger) *PaperConnector {
	return &PaperConnector{cash: initialCash, logger: log}
}

func (p *PaperConnector) GetPositions(ctx context.Context) ([]Position, error) {
	return nil, nil
}

func (p *PaperConnector) GetAccount(ctx context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Account{Cash: p.cash, Equity: p.cash}, nil
}

func (p *PaperConnector) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %v", req.Quantity)
	}
	if req.ReferencePrice <= 0 {
		return nil, fmt.Errorf("paper order for %s needs a reference price", req.Symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := req.Quantity * req.ReferencePrice
	switch req.Side {
	case models.ActionBuy:
		if notional > p.cash {
			return nil, fmt.Errorf("insufficient buying power: need %.2f, have %.2f", notional, p.cash)
		}
		p.cash -= notional
	case models.ActionSell:
		p.cash += notional
	default:
		return nil, fmt.Errorf("unknown order side %q", req.Side)
	}

	order := &Order{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Quantity:    req.Quantity,
		FilledPrice: req.ReferencePrice,
	}
	p.logger.Debug("paper order filled",
		"order_id", order.ID, "symbol", req.Symbol, "side", req.Side,
		"quantity", req.Quantity, "price", req.ReferencePrice)
	return order, nil
}

func (p *PaperConnector) ClosePosition(ctx context.Context, symbol string) error {
	return fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
}
