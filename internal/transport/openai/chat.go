package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
)

// Chat is a chat-completion client for OpenAI-compatible APIs.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// Compile-time check: Chat implements domain.ChatClient.
var _ domain.ChatClient = (*Chat)(nil)

// NewChat creates an OpenAI-compatible chat client.
func NewChat(cfg *Config, temperature float32) *Chat {
	return &Chat{
		client:      newClient(cfg),
		model:       cfg.Model,
		temperature: temperature,
		logger:      cfg.logger(),
	}
}

// Name implements domain.ChatClient.
func (c *Chat) Name() string { return "openai" }

// Complete implements domain.ChatClient.
func (c *Chat) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return domain.ChatResponse{}, parseAPIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("chat response has no choices: %w", domain.ErrProviderResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return domain.ChatResponse{}, fmt.Errorf("chat response is empty: %w", domain.ErrProviderResponse)
	}

	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return domain.ChatResponse{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Chat) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return parseAPIError("list models", err)
	}
	return nil
}
