package ollama

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
)

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float32 `json:"temperature"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Chat is a chat-completion client for Ollama.
type Chat struct {
	client      *client
	model       string
	temperature float32
}

// Compile-time check: Chat implements domain.ChatClient.
var _ domain.ChatClient = (*Chat)(nil)

// NewChat creates an Ollama chat client.
func NewChat(cfg *Config) *Chat {
	return &Chat{client: newClient(cfg), model: cfg.Model, temperature: cfg.Temperature}
}

// Name implements domain.ChatClient.
func (c *Chat) Name() string { return "ollama" }

// Complete implements domain.ChatClient.
func (c *Chat) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, len(req.Messages)),
		Stream:   false,
		Options:  &options{NumPredict: req.MaxTokens, Temperature: c.temperature},
	}
	for i, m := range req.Messages {
		body.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if req.JSON {
		body.Format = "json"
	}

	var resp chatResponse
	if err := c.client.postJSON(ctx, "/api/chat", body, &resp); err != nil {
		return domain.ChatResponse{}, err
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return domain.ChatResponse{}, fmt.Errorf("ollama chat response is empty: %w", domain.ErrProviderResponse)
	}

	c.client.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.PromptEvalCount),
		zap.Int("completion_tokens", resp.EvalCount),
	)

	return domain.ChatResponse{
		Content:          content,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

// HealthCheck verifies the server is reachable.
func (c *Chat) HealthCheck(ctx context.Context) error {
	return c.client.ping(ctx)
}
