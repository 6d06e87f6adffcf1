package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// MinRecentMessages is the floor on the verbatim tail; compaction
	// never eats into the last 10 messages.
	MinRecentMessages = 10

	// budgetRatio of the context window triggers compaction;
	// recentRatio of that budget is reserved for the verbatim tail.
	budgetRatio = 0.55
	recentRatio = 0.6

	defaultSummaryTimeout = 30 * time.Second
	summaryMaxTokens      = 1024
	toolResultLineLimit   = 500

	summaryHeading = "## Summary of earlier conversation"

	summarizerPrompt = "You are a concise summarizer. Summarize the game transcript you are given, " +
		"preserving goals, key decisions, resource state, and pending work. Output only the summary."
)

// Compactor keeps a conversation within its token budget by replacing
// older messages with an LLM-generated summary.
type Compactor struct {
	provider       CompletionProvider
	model          string
	contextWindow  int
	summaryTimeout time.Duration
	logger         zerolog.Logger
}

// CompactorOption configures a Compactor
type CompactorOption func(*Compactor)

// WithSummaryTimeout overrides the summarization timeout
func WithSummaryTimeout(d time.Duration) CompactorOption {
	return func(c *Compactor) { c.summaryTimeout = d }
}

// NewCompactor creates a compactor for the given context window size
func NewCompactor(provider CompletionProvider, model string, contextWindow int, logger zerolog.Logger, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		provider:       provider,
		model:          model,
		contextWindow:  contextWindow,
		summaryTimeout: defaultSummaryTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// budget returns the token threshold that triggers compaction
func (c *Compactor) budget() int {
	return int(float64(c.contextWindow) * budgetRatio)
}

// recentBudget returns the token target for the verbatim tail
func (c *Compactor) recentBudget() int {
	return int(float64(c.contextWindow) * budgetRatio * recentRatio)
}

// MaybeCompact replaces older messages with a summary when the estimated
// token usage is over budget. Returns true if the conversation changed.
// Summarization failure is non-fatal: a degraded fallback summary is
// substituted and compaction still proceeds.
func (c *Compactor) MaybeCompact(ctx context.Context, convo *Conversation, state *CompactionState) bool {
	total := ConversationTokens(convo)
	if total < c.budget() {
		return false
	}

	split := c.splitIndex(convo.Messages)
	if split <= 1 {
		return false
	}

	old := convo.Messages[1:split]
	recent := convo.Messages[split:]

	c.logger.Info().
		Int("total_tokens", total).
		Int("budget", c.budget()).
		Int("old_messages", len(old)).
		Int("recent_messages", len(recent)).
		Msg("Compacting context")

	summary, err := c.summarize(ctx, old, state.Summary)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Summarization failed, using fallback summary")
		summary = fallbackSummary(state.Summary)
		metrics.RecordCompaction("fallback")
	} else {
		metrics.RecordCompaction("ok")
	}

	summaryMsg := NewUserMessage(fmt.Sprintf(
		"%s\n\n%s\n\nContinue the task from this point; the messages above the summary were removed to save space.",
		summaryHeading, summary))

	rebuilt := make([]Message, 0, len(recent)+2)
	rebuilt = append(rebuilt, convo.Messages[0], summaryMsg)
	rebuilt = append(rebuilt, recent...)
	convo.Messages = rebuilt

	state.Summary = summary
	return true
}

// splitIndex walks from the newest message backward, accumulating the
// verbatim tail until it would exceed the recent budget, then snaps the
// split to a user-message boundary. Index 0 is never a candidate.
func (c *Compactor) splitIndex(msgs []Message) int {
	target := c.recentBudget()
	split := len(msgs)
	tokens := 0

	for i := len(msgs) - 1; i >= 1; i-- {
		cost := MessageTokens(msgs[i])
		if tokens+cost > target && len(msgs)-i > MinRecentMessages {
			break
		}
		tokens += cost
		split = i
	}

	return snapToUserBoundary(msgs, split)
}

// snapToUserBoundary moves the split forward to the next user message if
// one exists at or after it, else backward to the nearest preceding one.
// Splitting immediately before a user message keeps an assistant message
// together with its tool results.
func snapToUserBoundary(msgs []Message, split int) int {
	for i := split; i < len(msgs); i++ {
		if msgs[i].Kind == MessageUser {
			return i
		}
	}
	for i := split - 1; i >= 1; i-- {
		if msgs[i].Kind == MessageUser {
			return i
		}
	}
	return 1
}

// summarize requests an isolated single-turn completion over the plain
// transcript of the old messages, feeding in the previous running
// summary so information accumulates across repeated compactions.
func (c *Compactor) summarize(ctx context.Context, old []Message, prevSummary string) (string, error) {
	summaryCtx, cancel := context.WithTimeout(ctx, c.summaryTimeout)
	defer cancel()

	var input strings.Builder
	if prevSummary != "" {
		input.WriteString("Previous summary:\n")
		input.WriteString(prevSummary)
		input.WriteString("\n\n")
	}
	input.WriteString("Transcript:\n")
	input.WriteString(renderTranscript(old))

	resp, err := c.provider.Complete(summaryCtx, CompletionRequest{
		Model:        c.model,
		SystemPrompt: summarizerPrompt,
		Messages:     []Message{NewUserMessage(input.String())},
		MaxTokens:    summaryMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.StopReason == StopReasonError {
		return "", fmt.Errorf("summarizer stopped with error: %s", resp.ErrorMessage)
	}

	summary := ""
	for _, block := range resp.Content {
		if block.Kind == BlockText {
			summary += block.Text
		}
	}
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("summarizer returned no text")
	}
	return summary, nil
}

// fallbackSummary degrades gracefully when summarization fails
func fallbackSummary(prev string) string {
	if prev == "" {
		return "(Earlier context was lost and could not be summarized.)"
	}
	return prev + "\n\n(Additional context was lost and could not be summarized.)"
}

// renderTranscript flattens old messages into a plain text transcript
// for the summarizer.
func renderTranscript(msgs []Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		switch msg.Kind {
		case MessageUser:
			b.WriteString("User: ")
			b.WriteString(msg.Text)
			b.WriteString("\n")
		case MessageAssistant:
			for _, block := range msg.Blocks {
				switch block.Kind {
				case BlockText:
					b.WriteString("Assistant: ")
					b.WriteString(block.Text)
					b.WriteString("\n")
				case BlockToolCall:
					b.WriteString("Tool call: ")
					b.WriteString(renderToolCall(block))
					b.WriteString("\n")
				}
			}
		case MessageToolResult:
			b.WriteString("Tool result")
			if msg.IsError {
				b.WriteString(" [error]")
			}
			b.WriteString(": ")
			b.WriteString(truncate(msg.Text, toolResultLineLimit))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderToolCall formats a call as name(key=value, …) with keys sorted
// for stable output.
func renderToolCall(block ContentBlock) string {
	keys := make([]string, 0, len(block.Arguments))
	for key := range block.Arguments {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, stringifyArgument(block.Arguments[key])))
	}
	return fmt.Sprintf("%s(%s)", block.Name, strings.Join(parts, ", "))
}

func stringifyArgument(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// truncate cuts s to at most limit bytes without splitting a rune
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
