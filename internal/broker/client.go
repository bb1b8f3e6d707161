package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"

	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/logger"
)

const (
	sandboxEndpoint = "sandbox-invest-public-api.tinkoff.ru:443"
	liveEndpoint    = "invest-public-api.tinkoff.ru:443"
)

// TinkoffConnector routes orders to T-Invest (live or sandbox). Quantities
// crossing the Connector interface are shares, like prices; orders are
// rounded down to whole lots of the instrument.
type TinkoffConnector struct {
	client  *investgo.Client
	sandbox bool
	logger  *logger.Logger

	mu          sync.RWMutex
	uidToTicker map[string]string
	tickerToUID map[string]string
	lotSizes    map[string]int32
}

func NewTinkoffConnector(ctx context.Context, cfg config.TinkoffConfig, log *logger.Logger) (*TinkoffConnector, error) {
	endpoint := liveEndpoint
	if cfg.Sandbox {
		endpoint = sandboxEndpoint
	}

	investCfg := investgo.Config{
		EndPoint:  endpoint,
		Token:     cfg.Token,
		AccountId: cfg.AccountID,
		AppName:   "llm-arena",
	}

	client, err := investgo.NewClient(ctx, investCfg, log)
	if err != nil {
		return nil, fmt.Errorf("create investgo client: %w", err)
	}

	tc := &TinkoffConnector{
		client:      client,
		sandbox:     cfg.Sandbox,
		logger:      log,
		uidToTicker: make(map[string]string),
		tickerToUID: make(map[string]string),
		lotSizes:    make(map[string]int32),
	}

	if cfg.Sandbox && cfg.AccountID == "" {
		if err := tc.setupSandbox(); err != nil {
			return nil, fmt.Errorf("setup sandbox: %w", err)
		}
	}

	return tc, nil
}

func (tc *TinkoffConnector) setupSandbox() error {
	sandbox := tc.client.NewSandboxServiceClient()

	// Top up sandbox account with 1,000,000 RUB
	_, err := sandbox.SandboxPayIn(&investgo.SandboxPayInRequest{
		AccountId: tc.client.Config.AccountId,
		Currency:  "RUB",
		Unit:      1000000,
		Nano:      0,
	})
	if err != nil {
		return fmt.Errorf("sandbox pay in: %w", err)
	}

	tc.logger.Info("sandbox account funded", "account_id", tc.client.Config.AccountId)
	return nil
}

func (tc *TinkoffConnector) AccountID() string {
	return tc.client.Config.AccountId
}

func (tc *TinkoffConnector) Stop() error {
	return tc.client.Stop()
}
