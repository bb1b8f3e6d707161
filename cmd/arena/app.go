package main

import (
	"context"
	"fmt"

	"github.com/camuig/llm-arena/internal/agent"
	"github.com/camuig/llm-arena/internal/broker"
	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/engine"
	"github.com/camuig/llm-arena/internal/llm"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/market"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/portfolio"
	"github.com/camuig/llm-arena/internal/storage"
	"github.com/camuig/llm-arena/internal/telegram"
)

// app holds the wired process: one portfolio and provider per agent over a
// shared market service, journal and (for Tinkoff) broker connection.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	notifier *telegram.Notifier
	repo     *storage.Repository
	tinkoff  *broker.TinkoffConnector
	market   *market.Service
	agents   []*agent.Agent
	engine   *engine.Engine
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging.Level)

	a := &app{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		notifier: telegram.NewNotifier(cfg.Telegram, log),
	}

	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.repo = storage.NewRepository(db)

	if cfg.Broker.Kind == config.BrokerTinkoff || cfg.Market.Source == config.MarketTinkoff {
		a.tinkoff, err = broker.NewTinkoffConnector(ctx, cfg.Tinkoff, log)
		if err != nil {
			return nil, fmt.Errorf("tinkoff: %w", err)
		}
		log.Info("tinkoff connected", "account_id", a.tinkoff.AccountID(), "sandbox", cfg.IsSandbox())
	}

	a.market = a.newMarketService()

	calendar, err := engine.CalendarFromConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	audit := logger.NewAuditLog(cfg.LLM.AuditLogPath, log)
	runners := make([]engine.Runner, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		ag, err := a.newAgent(ac, audit)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("agent %s: %w", ac.ID, err)
		}
		a.agents = append(a.agents, ag)
		runners = append(runners, ag)
	}

	a.engine = engine.New(runners, calendar, cfg.TradingInterval(), log,
		engine.WithNotifier(a.notifier),
		engine.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) newMarketService() *market.Service {
	synthetic := market.NewSyntheticSource()
	window := a.cfg.Trading.SeriesWindow
	switch a.cfg.Market.Source {
	case config.MarketYahoo:
		return market.NewService(market.NewYahooSource(), synthetic, window, a.log)
	case config.MarketTinkoff:
		return market.NewService(market.NewTinkoffSource(a.tinkoff), synthetic, window, a.log)
	case config.MarketMOEX:
		return market.NewService(market.NewMOEXSource(""), synthetic, window, a.log)
	default:
		return market.NewService(synthetic, nil, window, a.log)
	}
}

func (a *app) newAgent(ac config.AgentConfig, audit *logger.AuditLog) (*agent.Agent, error) {
	provider, err := llm.New(ac, a.cfg, audit, a.log)
	if err != nil {
		return nil, err
	}

	cash := ac.InitialCash
	if cash <= 0 {
		cash = a.cfg.Trading.InitialCash
	}

	var conn broker.Connector
	if a.cfg.Broker.Kind == config.BrokerTinkoff {
		conn = a.tinkoff
	} else {
		conn = broker.NewPaperConnector(cash, a.log)
	}

	store, err := storage.NewExitPlanStore(a.cfg.ExitPlanPath(ac.ID))
	if err != nil {
		return nil, fmt.Errorf("exit plan store: %w", err)
	}

	pf := portfolio.New(ac.ID, cash, conn, a.market, store, a.log,
		portfolio.WithJournal(a.repo),
		portfolio.WithNotifier(a.notifier),
		portfolio.WithMetrics(a.metrics),
	)

	name := ac.Name
	if name == "" {
		name = ac.ID
	}
	return agent.New(agent.Config{
		ID:                   ac.ID,
		Name:                 name,
		Symbols:              a.cfg.Trading.Symbols,
		Images:               a.cfg.LLM.Images,
		MechanicalExitChecks: a.cfg.Trading.MechanicalExitChecks,
	}, provider, a.market, pf, a.log,
		agent.WithJournal(a.repo),
		agent.WithMetrics(a.metrics),
	), nil
}

func (a *app) close() {
	if a.tinkoff != nil {
		if err := a.tinkoff.Stop(); err != nil {
			a.log.Error("tinkoff stop", "error", err)
		}
	}
}
