package agent

import (
	"context"
	"fmt"
)

// Stop reasons a provider may report. StopReasonError marks a completion
// the provider itself considers failed.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
	StopReasonError   = "error"
)

// ToolDefinition describes a tool offered to the model
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// CompletionRequest contains the parameters for a single completion call
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
	MaxTokens    int
}

// CompletionResponse contains the provider's reply
type CompletionResponse struct {
	Content      []ContentBlock
	StopReason   string
	Usage        *TokenUsage
	ErrorMessage string
}

// CompletionProvider is an interface for LLM API providers. It is
// capability-generic: callers needing an isolated one-off completion
// (such as the compactor's summarizer) supply their own system prompt
// and message list.
type CompletionProvider interface {
	// Complete makes a single completion call
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Provider returns the provider name
	Provider() string
}

// NewProvider creates a provider by name
func NewProvider(name, apiKey string) (CompletionProvider, error) {
	switch name {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
