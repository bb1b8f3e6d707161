package storage

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camuig/llm-arena/internal/models"
)

// Repository is the trade and cycle journal. It satisfies the recorder
// interfaces of the portfolio and agent packages.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Trades

func (r *Repository) RecordTrade(agentID string, trade models.Trade) error {
	return r.db.Create(&TradeRecord{
		TradeID:  trade.ID,
		AgentID:  agentID,
		Symbol:   trade.Symbol,
		Action:   string(trade.Action),
		Quantity: trade.Quantity,
		Price:    trade.Price,
		Status:   string(trade.Status),
		TradedAt: trade.Timestamp,
	}).Error
}

func (r *Repository) GetRecentTrades(agentID string, limit int) ([]TradeRecord, error) {
	var trades []TradeRecord
	err := r.db.Where("agent_id = ?", agentID).
		Order("traded_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

func (r *Repository) CountTradesByStatus(agentID, status string) (int64, error) {
	var n int64
	err := r.db.Model(&TradeRecord{}).
		Where("agent_id = ? AND status = ?", agentID, status).
		Count(&n).Error
	return n, err
}

// Cycle Logs

func (r *Repository) RecordCycle(agentID string, decisions []models.TradeDecision, cycleErr error) error {
	data, err := json.Marshal(decisions)
	if err != nil {
		data = []byte("[]")
	}
	log := &CycleLog{
		AgentID:        agentID,
		DecisionsCount: len(decisions),
		Decisions:      datatypes.JSON(data),
	}
	if cycleErr != nil {
		log.Error = cycleErr.Error()
	}
	return r.db.Create(log).Error
}

// Portfolio Snapshots

func (r *Repository) RecordSnapshot(agentID string, status models.PortfolioStatus) error {
	positionsJSON, _ := json.Marshal(status.LivePositionsDetails)
	return r.db.Create(&PortfolioSnapshot{
		AgentID:        agentID,
		Cash:           status.Cash,
		TotalValue:     status.TotalValue,
		PnL:            status.PnL,
		SharpeRatio:    status.SharpeRatio,
		PositionsCount: len(status.LivePositionsDetails),
		Positions:      datatypes.JSON(positionsJSON),
	}).Error
}

func (r *Repository) GetLatestSnapshot(agentID string) (*PortfolioSnapshot, error) {
	var snapshot PortfolioSnapshot
	err := r.db.Where("agent_id = ?", agentID).Order("created_at DESC").First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
