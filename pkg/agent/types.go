package agent

import (
	"time"
)

// Message kinds
const (
	MessageUser       = "user"
	MessageAssistant  = "assistant"
	MessageToolResult = "tool_result"
)

// Content block kinds
const (
	BlockText     = "text"
	BlockToolCall = "tool_call"
	BlockThinking = "thinking"
)

// ContentBlock is one piece of an assistant message. Kind selects which
// fields are meaningful: Text for text, ID/Name/Arguments for tool_call,
// Thinking for thinking.
type ContentBlock struct {
	Kind      string                 `json:"kind"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
}

// Message is a single conversation entry. User and tool-result messages
// carry Text; assistant messages carry Blocks.
type Message struct {
	Kind       string         `json:"kind"`
	Text       string         `json:"text,omitempty"`
	Blocks     []ContentBlock `json:"blocks,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
	Timestamp  time.Time      `json:"timestamp,omitempty"`
}

// NewUserMessage creates a user message
func NewUserMessage(text string) Message {
	return Message{Kind: MessageUser, Text: text}
}

// NewAssistantMessage creates an assistant message from content blocks
func NewAssistantMessage(blocks []ContentBlock) Message {
	return Message{Kind: MessageAssistant, Blocks: blocks}
}

// NewToolResultMessage creates a tool result message
func NewToolResultMessage(toolCallID, toolName, text string, isError bool) Message {
	return Message{
		Kind:       MessageToolResult,
		Text:       text,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		IsError:    isError,
		Timestamp:  time.Now(),
	}
}

// ToolCalls returns the tool call blocks of an assistant message, in order
func (m Message) ToolCalls() []ContentBlock {
	var calls []ContentBlock
	for _, block := range m.Blocks {
		if block.Kind == BlockToolCall {
			calls = append(calls, block)
		}
	}
	return calls
}

// TextContent concatenates the text blocks of an assistant message
func (m Message) TextContent() string {
	text := ""
	for _, block := range m.Blocks {
		if block.Kind == BlockText {
			text += block.Text
		}
	}
	return text
}

// Conversation holds the system prompt and the ordered message sequence.
// It is owned by the active turn; only the runner and the compactor
// mutate it.
type Conversation struct {
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
}

// NewConversation creates a conversation seeded with the initial
// instruction as its first message. The first message is never removed
// by compaction.
func NewConversation(systemPrompt, instruction string) *Conversation {
	return &Conversation{
		SystemPrompt: systemPrompt,
		Messages:     []Message{NewUserMessage(instruction)},
	}
}

// CompactionState carries the running summary across turns. It outlives
// any single turn and is mutated in place by the compactor.
type CompactionState struct {
	Summary string `json:"summary"`
}

// TokenUsage tracks token consumption reported by a provider
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// EstimateTokens gives a rough token count for a piece of text.
// 1 token ≈ 4 characters, rounded up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// MessageTokens estimates the cost of a message as the sum over its
// text, argument, and thinking fragments.
func MessageTokens(m Message) int {
	total := EstimateTokens(m.Text)
	for _, block := range m.Blocks {
		switch block.Kind {
		case BlockText:
			total += EstimateTokens(block.Text)
		case BlockThinking:
			total += EstimateTokens(block.Thinking)
		case BlockToolCall:
			total += EstimateTokens(block.Name)
			for key, value := range block.Arguments {
				total += EstimateTokens(key)
				total += EstimateTokens(stringifyArgument(value))
			}
		}
	}
	return total
}

// ConversationTokens estimates the total cost of the message sequence
func ConversationTokens(convo *Conversation) int {
	total := 0
	for _, msg := range convo.Messages {
		total += MessageTokens(msg)
	}
	return total
}
