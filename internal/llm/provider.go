package llm

import (
	"context"
	"strings"

	"github.com/camuig/llm-arena/internal/models"
)

// Provider turns a prompt (and optional chart images) into trade decisions.
// Implementations never fail: any error collapses into Fallback.
type Provider interface {
	Name() string
	GetTradeDecision(ctx context.Context, prompt string, images []string) models.DecisionList
}

const (
	FallbackSymbol        = "N/A"
	fallbackJustification = "Fell back to default 'hold' due to an error in the LLM provider."
)

// Fallback is the single neutral decision returned when a provider cannot
// produce a usable answer.
func Fallback(reason string) models.DecisionList {
	justification := fallbackJustification
	if reason != "" {
		justification += " Cause: " + reason
	}
	return models.DecisionList{Decisions: []models.TradeDecision{{
		Symbol:        FallbackSymbol,
		Signal:        models.SignalHold,
		Confidence:    0,
		Justification: justification,
	}}}
}

func IsFallback(list models.DecisionList) bool {
	return len(list.Decisions) == 1 &&
		list.Decisions[0].Symbol == FallbackSymbol &&
		strings.HasPrefix(list.Decisions[0].Justification, fallbackJustification)
}
