package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/rs/zerolog"
)

// MaxRounds caps the completion/tool-execution rounds within one turn
const MaxRounds = 30

const (
	reasoningFragmentMin = 10
	reasoningFragments   = 3
)

// ToolDispatcher executes a named tool call and returns its result as
// text. A leading literal "Error" denotes failure. The reason hint is a
// best-effort log annotation with no semantic weight.
type ToolDispatcher interface {
	ExecuteTool(ctx context.Context, name string, args map[string]interface{}, reasonHint string) string

	// Definitions lists the tools offered to the model
	Definitions() []ToolDefinition
}

// Runner drives a turn: repeatedly compact, complete, and dispatch tool
// calls until the model stops calling tools or MaxRounds is reached.
type Runner struct {
	completions *CompletionClient
	compactor   *Compactor
	dispatcher  ToolDispatcher
	logger      zerolog.Logger
}

// RunnerConfig holds runner dependencies
type RunnerConfig struct {
	Completions *CompletionClient
	Compactor   *Compactor
	Dispatcher  ToolDispatcher
	Logger      zerolog.Logger
}

// NewRunner creates a turn runner
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Completions == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if cfg.Compactor == nil {
		return nil, fmt.Errorf("compactor is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	return &Runner{
		completions: cfg.Completions,
		compactor:   cfg.Compactor,
		dispatcher:  cfg.Dispatcher,
		logger:      cfg.Logger,
	}, nil
}

// RunTurn executes one turn of up to MaxRounds rounds. Tool calls within
// a round run strictly sequentially, in the order produced: later calls
// may depend on state changes made by earlier ones. Cancellation is
// checked before each round and before each individual tool call.
func (r *Runner) RunTurn(ctx context.Context, model string, convo *Conversation, state *CompactionState) error {
	tools := r.dispatcher.Definitions()

	for round := 0; round < MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			r.logger.Info().Int("round", round).Msg("Turn cancelled")
			return err
		}

		r.compactor.MaybeCompact(ctx, convo, state)

		assistant, err := r.completions.CompleteWithRetry(ctx, model, convo, tools)
		if err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		convo.Messages = append(convo.Messages, *assistant)
		metrics.RecordRound()

		calls := assistant.ToolCalls()
		if len(calls) == 0 {
			if text := strings.TrimSpace(assistant.TextContent()); text != "" {
				r.logger.Info().Str("response", text).Msg("Turn complete")
			}
			return nil
		}

		reason := reasoningText(*assistant)
		for i, call := range calls {
			if err := ctx.Err(); err != nil {
				r.logger.Info().
					Int("round", round).
					Str("tool", call.Name).
					Msg("Turn cancelled before tool call")
				return err
			}

			hint := ""
			if i == 0 {
				hint = reason
			}
			output := r.dispatcher.ExecuteTool(ctx, call.Name, call.Arguments, hint)
			isError := strings.HasPrefix(output, "Error")
			convo.Messages = append(convo.Messages, NewToolResultMessage(call.ID, call.Name, output, isError))
		}
	}

	r.logger.Warn().Int("max_rounds", MaxRounds).Msg("Turn stopped at round limit")
	return nil
}

// reasoningText extracts a short explanation for logging: concatenated
// text blocks when present, otherwise the last few sentence fragments of
// the thinking blocks. Best-effort only; never load-bearing.
func reasoningText(assistant Message) string {
	if text := strings.TrimSpace(assistant.TextContent()); text != "" {
		return text
	}

	thinking := ""
	for _, block := range assistant.Blocks {
		if block.Kind == BlockThinking {
			thinking += block.Thinking
		}
	}
	if thinking == "" {
		return ""
	}

	fragments := strings.FieldsFunc(thinking, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	kept := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		frag = strings.TrimSpace(frag)
		if len(frag) >= reasoningFragmentMin {
			kept = append(kept, frag)
		}
	}
	if len(kept) > reasoningFragments {
		kept = kept[len(kept)-reasoningFragments:]
	}
	return strings.Join(kept, ". ")
}
