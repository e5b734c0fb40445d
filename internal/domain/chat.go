package domain

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest is a provider-agnostic chat completion request.
// JSON asks the provider to constrain output to a JSON object.
type ChatRequest struct {
	Messages  []ChatMessage
	JSON      bool
	MaxTokens int
}

// ChatResponse carries the completion text and token usage.
type ChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ChatClient is the shared language-model contract implemented by provider transports.
// Errors wrap ErrProviderUnavailable, ErrProviderTimeout or ErrProviderResponse.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Name() string
}
