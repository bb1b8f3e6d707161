package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/llm-arena/internal/broker"
	"github.com/camuig/llm-arena/internal/id"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/models"
)

// quantityEpsilon absorbs float noise when comparing share quantities.
const quantityEpsilon = 1e-9

// PlanStore persists exit plans between restarts.
type PlanStore interface {
	Load() (map[string]models.ExitPlan, error)
	Save(plans map[string]models.ExitPlan) error
}

// PriceSource supplies live prices for status valuation.
type PriceSource interface {
	GetCurrentPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

type TradeRecorder interface {
	RecordTrade(agentID string, trade models.Trade) error
}

type TradeNotifier interface {
	NotifyTrade(agent string, trade models.Trade, plan *models.ExitPlan)
}

type Option func(*Portfolio)

func WithJournal(j TradeRecorder) Option { return func(p *Portfolio) { p.journal = j } }

func WithNotifier(n TradeNotifier) Option { return func(p *Portfolio) { p.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Portfolio) { p.metrics = m } }

// WithClock overrides the trade timestamp source.
func WithClock(now func() time.Time) Option { return func(p *Portfolio) { p.now = now } }

// Portfolio owns one agent's shadow ledger, exit plans and trade history, and
// routes orders to the broker connector.
type Portfolio struct {
	agentID     string
	initialCash float64

	conn   broker.Connector
	prices PriceSource
	store  PlanStore

	journal  TradeRecorder
	notifier TradeNotifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	cash       float64
	shadow     map[string]models.Position
	plans      map[string]models.ExitPlan
	exitOrders map[string]broker.ExitOrders
	history    []models.Trade
	pnlHistory []float64
}

func New(
	agentID string,
	initialCash float64,
	conn broker.Connector,
	prices PriceSource,
	store PlanStore,
	log *logger.Logger,
	opts ...Option,
) *Portfolio {
	p := &Portfolio{
		agentID:     agentID,
		initialCash: initialCash,
		conn:        conn,
		prices:      prices,
		store:       store,
		logger:      log.With("agent", agentID),
		now:         time.Now,
		cash:        initialCash,
		shadow:      make(map[string]models.Position),
		plans:       make(map[string]models.ExitPlan),
		exitOrders:  make(map[string]broker.ExitOrders),
		pnlHistory:  []float64{0},
	}
	for _, opt := range opts {
		opt(p)
	}

	if store != nil {
		plans, err := store.Load()
		if err != nil {
			p.logger.Warn("load exit plans", "error", err)
		}
		for symbol, plan := range plans {
			p.plans[symbol] = plan
		}
	}
	return p
}

func (p *Portfolio) AgentID() string { return p.agentID }

func (p *Portfolio) InitialCash() float64 { return p.initialCash }

// ExecuteTrade routes one market order and records it. BUY stores the exit
// plan (when given) and grows the shadow position. SELL requires the broker
// or the shadow ledger to hold at least quantity; otherwise it is skipped.
// Every validated call appends a trade whose status tells whether the broker
// acknowledged it. The error covers invalid arguments only.
func (p *Portfolio) ExecuteTrade(ctx context.Context, symbol string, action models.Action, quantity, price float64, plan *models.ExitPlan) (models.Trade, error) {
	if symbol == "" {
		return models.Trade{}, errors.New("empty symbol")
	}
	if quantity <= 0 {
		return models.Trade{}, fmt.Errorf("invalid quantity %v for %s", quantity, symbol)
	}
	if price <= 0 {
		return models.Trade{}, fmt.Errorf("invalid price %v for %s", price, symbol)
	}

	var (
		status models.TradeStatus
		fill   float64
		filled = quantity
	)
	switch action {
	case models.ActionBuy:
		status, fill, filled = p.buy(ctx, symbol, quantity, price, plan)
	case models.ActionSell:
		status, fill, filled = p.sell(ctx, symbol, quantity, price)
	default:
		return models.Trade{}, fmt.Errorf("unknown action %q", action)
	}

	trade := models.Trade{
		ID:        id.NewAt(p.now()),
		Symbol:    symbol,
		Action:    action,
		Quantity:  filled,
		Price:     fill,
		Timestamp: p.now().UTC(),
		Status:    status,
	}

	p.mu.Lock()
	p.history = append(p.history, trade)
	p.mu.Unlock()

	if p.journal != nil {
		if err := p.journal.RecordTrade(p.agentID, trade); err != nil {
			p.logger.Warn("journal trade", "trade_id", trade.ID, "error", err)
		}
	}
	p.metrics.ObserveTrade(p.agentID, string(action), string(status))
	if status == models.TradeFilled && p.notifier != nil {
		var notified *models.ExitPlan
		if action == models.ActionBuy {
			notified = plan
		}
		p.notifier.NotifyTrade(p.agentID, trade, notified)
	}
	return trade, nil
}

func (p *Portfolio) buy(ctx context.Context, symbol string, quantity, price float64, plan *models.ExitPlan) (models.TradeStatus, float64, float64) {
	order, err := p.conn.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:         symbol,
		Quantity:       quantity,
		Side:           models.ActionBuy,
		ReferencePrice: price,
	})
	if err != nil || order == nil {
		p.logger.Warn("buy order failed", "symbol", symbol, "quantity", quantity, "error", err)
		return models.TradeRejected, price, quantity
	}

	fill := price
	if order.FilledPrice > 0 {
		fill = order.FilledPrice
	}
	quantity = executedQuantity(order, quantity)
	p.logger.Info("buy order submitted", "symbol", symbol, "quantity", quantity, "price", fill, "order_id", order.ID)

	p.mu.Lock()
	pos := p.shadow[symbol]
	pos.Symbol = symbol
	pos.AveragePrice = weightedAverage(pos.Quantity, pos.AveragePrice, quantity, fill)
	pos.Quantity += quantity
	p.shadow[symbol] = pos
	total := pos.Quantity

	var previous broker.ExitOrders
	if plan != nil {
		p.plans[symbol] = *plan
		previous = p.exitOrders[symbol]
	}
	p.mu.Unlock()

	if plan != nil {
		p.persistPlans()
		p.replaceExitOrders(ctx, symbol, total, *plan, previous)
	}
	return models.TradeFilled, fill, quantity
}

func (p *Portfolio) sell(ctx context.Context, symbol string, quantity, price float64) (models.TradeStatus, float64, float64) {
	brokerQty := p.brokerQuantity(ctx, symbol)

	p.mu.Lock()
	shadowQty := p.shadow[symbol].Quantity
	p.mu.Unlock()

	if brokerQty+quantityEpsilon < quantity && shadowQty+quantityEpsilon < quantity {
		p.logger.Warn("sell skipped: not enough holdings",
			"symbol", symbol, "quantity", quantity, "broker_quantity", brokerQty, "shadow_quantity", shadowQty)
		return models.TradeSkipped, price, quantity
	}

	order, err := p.conn.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:         symbol,
		Quantity:       quantity,
		Side:           models.ActionSell,
		ReferencePrice: price,
	})
	if err != nil || order == nil {
		p.logger.Warn("sell order failed", "symbol", symbol, "quantity", quantity, "error", err)
		return models.TradeRejected, price, quantity
	}

	fill := price
	if order.FilledPrice > 0 {
		fill = order.FilledPrice
	}
	quantity = executedQuantity(order, quantity)
	p.logger.Info("sell order submitted", "symbol", symbol, "quantity", quantity, "price", fill, "order_id", order.ID)

	p.mu.Lock()
	shadowLeft := 0.0
	if pos, ok := p.shadow[symbol]; ok {
		shadowLeft = pos.Quantity - quantity
		if shadowLeft <= quantityEpsilon {
			delete(p.shadow, symbol)
			shadowLeft = 0
		} else {
			pos.Quantity = shadowLeft
			p.shadow[symbol] = pos
		}
	}
	remaining := max(brokerQty-quantity, shadowLeft, 0)

	flat := remaining <= quantityEpsilon
	_, hadPlan := p.plans[symbol]
	orders := p.exitOrders[symbol]
	if flat {
		delete(p.plans, symbol)
		delete(p.exitOrders, symbol)
	}
	p.mu.Unlock()

	if flat {
		if hadPlan {
			p.persistPlans()
		}
		p.cancelExitOrders(ctx, orders)
	}
	return models.TradeFilled, fill, quantity
}

// executedQuantity is the acknowledged size when the broker filled less than
// requested, for example after rounding down to whole lots.
func executedQuantity(order *broker.Order, requested float64) float64 {
	if order.Quantity > 0 && order.Quantity < requested {
		return order.Quantity
	}
	return requested
}

func (p *Portfolio) brokerQuantity(ctx context.Context, symbol string) float64 {
	positions, err := p.conn.GetPositions(ctx)
	if err != nil {
		p.logger.Warn("get broker positions", "error", err)
		return 0
	}
	for _, pos := range positions {
		if pos.Symbol == symbol {
			return pos.Quantity
		}
	}
	return 0
}

func (p *Portfolio) persistPlans() {
	if p.store == nil {
		return
	}
	p.mu.Lock()
	snapshot := make(map[string]models.ExitPlan, len(p.plans))
	for k, v := range p.plans {
		snapshot[k] = v
	}
	p.mu.Unlock()

	if err := p.store.Save(snapshot); err != nil {
		p.logger.Warn("persist exit plans", "error", err)
	}
}

func (p *Portfolio) replaceExitOrders(ctx context.Context, symbol string, quantity float64, plan models.ExitPlan, previous broker.ExitOrders) {
	placer, ok := p.conn.(broker.ExitOrderPlacer)
	if !ok {
		return
	}
	placer.CancelExitOrders(ctx, previous)
	orders, err := placer.PlaceExitOrders(ctx, symbol, quantity, plan)
	if err != nil {
		p.logger.Warn("place exit orders", "symbol", symbol, "error", err)
	}
	p.mu.Lock()
	p.exitOrders[symbol] = orders
	p.mu.Unlock()
}

func (p *Portfolio) cancelExitOrders(ctx context.Context, orders broker.ExitOrders) {
	placer, ok := p.conn.(broker.ExitOrderPlacer)
	if !ok || (orders.StopLossID == "" && orders.TakeProfitID == "") {
		return
	}
	placer.CancelExitOrders(ctx, orders)
}

// Position returns the open position for symbol, preferring the broker's
// view over the shadow ledger.
func (p *Portfolio) Position(ctx context.Context, symbol string) (models.Position, bool) {
	positions, err := p.conn.GetPositions(ctx)
	if err != nil {
		p.logger.Warn("get broker positions", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	plan := p.planPtr(symbol)
	for _, bp := range positions {
		if bp.Symbol == symbol && bp.Quantity > quantityEpsilon {
			return models.Position{Symbol: symbol, Quantity: bp.Quantity, AveragePrice: bp.AvgEntryPrice, ExitPlan: plan}, true
		}
	}
	if pos, ok := p.shadow[symbol]; ok && pos.Quantity > quantityEpsilon {
		pos.ExitPlan = plan
		return pos, true
	}
	return models.Position{}, false
}

// TradeHistory returns a copy of every recorded trade, oldest first.
func (p *Portfolio) TradeHistory() []models.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Trade(nil), p.history...)
}

// ExitPlans returns a copy of the in-memory exit plans.
func (p *Portfolio) ExitPlans() map[string]models.ExitPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]models.ExitPlan, len(p.plans))
	for k, v := range p.plans {
		out[k] = v
	}
	return out
}

// ShadowPositions returns the local ledger sorted by symbol.
func (p *Portfolio) ShadowPositions() []models.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, 0, len(p.shadow))
	for _, pos := range p.shadow {
		pos.ExitPlan = p.planPtr(pos.Symbol)
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// planPtr must be called with mu held.
func (p *Portfolio) planPtr(symbol string) *models.ExitPlan {
	plan, ok := p.plans[symbol]
	if !ok {
		return nil
	}
	return &plan
}

func weightedAverage(oldQty, oldAvg, addQty, addPrice float64) float64 {
	q0 := decimal.NewFromFloat(oldQty)
	q1 := decimal.NewFromFloat(addQty)
	total := q0.Add(q1)
	if total.IsZero() {
		return 0
	}
	cost := q0.Mul(decimal.NewFromFloat(oldAvg)).Add(q1.Mul(decimal.NewFromFloat(addPrice)))
	return cost.Div(total).InexactFloat64()
}
