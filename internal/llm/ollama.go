package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	Error string `json:"error"`
}

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Format string   `json:"format"`
	Stream bool     `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Thinking string `json:"thinking"`
	Error    string `json:"error"`
}

// ollamaResult is one endpoint answer. endpointUnavailable marks a 404 from
// the chat endpoint, which older servers do not expose.
type ollamaResult struct {
	content             string
	thinking            string
	endpointUnavailable bool
}

type OllamaProvider struct {
	client *resty.Client
	model  string
	audit  *logger.AuditLog
	logger *logger.Logger
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration, audit *logger.AuditLog, log *logger.Logger) *OllamaProvider {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	return &OllamaProvider{
		client: client,
		model:  model,
		audit:  audit,
		logger: log,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama:" + p.model
}

func (p *OllamaProvider) GetTradeDecision(ctx context.Context, prompt string, images []string) models.DecisionList {
	p.audit.Write(p.Name(), "PROMPT", prompt)

	encoded, err := encodeImages(images)
	if err != nil {
		p.logger.Warn("images dropped from request", "model", p.model, "error", err)
		encoded = nil
	}

	res, err := p.chat(ctx, prompt, encoded)
	if err == nil && res.endpointUnavailable {
		p.logger.Info("chat endpoint unavailable, using generate", "model", p.model)
		res, err = p.generate(ctx, prompt, encoded)
	}
	if err != nil {
		p.logger.Error("ollama request failed", "model", p.model, "error", err)
		return Fallback(err.Error())
	}

	content, inlineThinking := SplitThinking(res.content)
	thinking := res.thinking
	if thinking == "" {
		thinking = inlineThinking
	}
	if thinking != "" {
		p.audit.Write(p.Name(), "THINKING", thinking)
	}
	p.audit.Write(p.Name(), "RESPONSE", content)

	list, err := ParseDecisions(content)
	if err != nil {
		p.logger.Error("parse ollama response", "model", p.model, "error", err)
		return Fallback(err.Error())
	}
	p.logger.Info("ollama decisions received", "model", p.model, "count", len(list.Decisions))
	return list
}

func (p *OllamaProvider) chat(ctx context.Context, prompt string, images []string) (ollamaResult, error) {
	body := ollamaChatRequest{
		Model: p.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt, Images: images},
		},
		Format: "json",
		Stream: false,
	}

	resp, err := p.client.R().SetContext(ctx).SetBody(body).Post("/api/chat")
	if err != nil {
		return ollamaResult{}, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ollamaResult{endpointUnavailable: true}, nil
	}
	if resp.IsError() {
		return ollamaResult{}, fmt.Errorf("chat endpoint returned status %d: %.200s", resp.StatusCode(), resp.String())
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return ollamaResult{}, fmt.Errorf("decode chat response: %w", err)
	}
	if out.Error != "" {
		return ollamaResult{}, fmt.Errorf("chat error: %s", out.Error)
	}
	return ollamaResult{content: out.Message.Content, thinking: out.Message.Thinking}, nil
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string, images []string) (ollamaResult, error) {
	body := ollamaGenerateRequest{
		Model:  p.model,
		Prompt: systemPrompt + "\n\n" + prompt,
		Images: images,
		Format: "json",
		Stream: false,
	}

	resp, err := p.client.R().SetContext(ctx).SetBody(body).Post("/api/generate")
	if err != nil {
		return ollamaResult{}, fmt.Errorf("generate request: %w", err)
	}
	if resp.IsError() {
		return ollamaResult{}, fmt.Errorf("generate endpoint returned status %d: %.200s", resp.StatusCode(), resp.String())
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return ollamaResult{}, fmt.Errorf("decode generate response: %w", err)
	}
	if out.Error != "" {
		return ollamaResult{}, fmt.Errorf("generate error: %s", out.Error)
	}
	return ollamaResult{content: out.Response, thinking: out.Thinking}, nil
}
