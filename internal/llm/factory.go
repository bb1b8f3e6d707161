package llm

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/camuig/llm-arena/internal/config"
	"github.com/camuig/llm-arena/internal/logger"
)

// New builds the provider configured for one agent.
func New(agent config.AgentConfig, cfg *config.Config, audit *logger.AuditLog, log *logger.Logger) (Provider, error) {
	switch agent.Provider {
	case config.ProviderMock:
		seed := cfg.LLM.MockSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(agent.ID))
		return NewMockProvider(agent.ID, cfg.Trading.Symbols, seed^int64(h.Sum64())), nil
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.LLM.OllamaURL, agent.Model, cfg.LLMTimeout(), audit, log), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, agent.Model, cfg.LLMTimeout(), audit, log), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", agent.Provider)
	}
}
