package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

// OpenAIProvider talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI, DeepSeek, vLLM, LM Studio).
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	audit   *logger.AuditLog
	logger  *logger.Logger
}

func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration, audit *logger.AuditLog, log *logger.Logger) *OpenAIProvider {
	ocfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		ocfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(ocfg),
		model:   model,
		timeout: timeout,
		audit:   audit,
		logger:  log,
	}
}

func (o *OpenAIProvider) Name() string {
	return "openai:" + o.model
}

func (o *OpenAIProvider) GetTradeDecision(ctx context.Context, prompt string, images []string) models.DecisionList {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	o.audit.Write(o.Name(), "PROMPT", prompt)

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	encoded, err := encodeImages(images)
	if err != nil {
		o.logger.Warn("images dropped from request", "model", o.model, "error", err)
	} else if len(encoded) > 0 {
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
		for _, img := range encoded {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: "data:image/png;base64," + img},
			})
		}
		user = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			user,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		o.logger.Error("chat completion failed", "model", o.model, "error", err)
		return Fallback(fmt.Sprintf("chat completion: %v", err))
	}
	if len(resp.Choices) == 0 {
		o.logger.Error("chat completion returned no choices", "model", o.model)
		return Fallback("no choices returned")
	}

	content, thinking := SplitThinking(resp.Choices[0].Message.Content)
	if thinking != "" {
		o.audit.Write(o.Name(), "THINKING", thinking)
	}
	o.audit.Write(o.Name(), "RESPONSE", content)
	o.logger.Debug("AI raw response", "model", o.model, "length", len(content))

	list, err := ParseDecisions(content)
	if err != nil {
		o.logger.Error("parse chat completion", "model", o.model, "error", err)
		return Fallback(err.Error())
	}
	return list
}
