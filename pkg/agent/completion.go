package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// MaxRetries is the number of completion attempts before giving up
	MaxRetries = 3

	defaultCompletionTimeout = 120 * time.Second
	defaultBackoffBase       = 5 * time.Second
)

// CompletionError wraps the last failure after all retries are exhausted
type CompletionError struct {
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// CompletionClient wraps a provider with a per-attempt timeout and
// exponential backoff retry.
type CompletionClient struct {
	provider    CompletionProvider
	logger      zerolog.Logger
	maxTokens   int
	timeout     time.Duration
	backoffBase time.Duration
}

// CompletionOption configures a CompletionClient
type CompletionOption func(*CompletionClient)

// WithCompletionTimeout overrides the per-attempt timeout
func WithCompletionTimeout(d time.Duration) CompletionOption {
	return func(c *CompletionClient) { c.timeout = d }
}

// WithBackoffBase overrides the base backoff delay
func WithBackoffBase(d time.Duration) CompletionOption {
	return func(c *CompletionClient) { c.backoffBase = d }
}

// WithMaxTokens sets the output token cap for completions
func WithMaxTokens(n int) CompletionOption {
	return func(c *CompletionClient) { c.maxTokens = n }
}

// NewCompletionClient creates a completion client
func NewCompletionClient(provider CompletionProvider, logger zerolog.Logger, opts ...CompletionOption) *CompletionClient {
	c := &CompletionClient{
		provider:    provider,
		logger:      logger,
		maxTokens:   4096,
		timeout:     defaultCompletionTimeout,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompleteWithRetry makes up to MaxRetries completion attempts, backing
// off exponentially between failures. Caller cancellation stops retrying
// immediately and propagates as the terminal error.
func (c *CompletionClient) CompleteWithRetry(ctx context.Context, model string, convo *Conversation, tools []ToolDefinition) (*Message, error) {
	var lastErr error

	for attempt := 0; attempt < MaxRetries; attempt++ {
		msg, err := c.complete(ctx, model, convo, tools)
		if err == nil {
			return msg, nil
		}

		// Caller cancellation is terminal, not retried
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		metrics.RecordCompletionRetry(c.provider.Provider())

		if attempt == MaxRetries-1 {
			break
		}

		// Backoff: 5s, 10s, 20s
		delay := c.backoffBase * (1 << attempt)
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Completion failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &CompletionError{Attempts: MaxRetries, Err: lastErr}
}

// complete performs a single attempt with its own timeout composed with
// the caller's cancellation, first-to-fire-wins.
func (c *CompletionClient) complete(ctx context.Context, model string, convo *Conversation, tools []ToolDefinition) (*Message, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(attemptCtx, CompletionRequest{
		Model:        model,
		SystemPrompt: convo.SystemPrompt,
		Messages:     convo.Messages,
		Tools:        tools,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		// Distinguish our timeout from the caller's own cancellation
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("completion timed out after %s: %w", c.timeout, err)
		}
		return nil, err
	}

	if resp.StopReason == StopReasonError {
		return nil, fmt.Errorf("completion stopped with error: %s", resp.ErrorMessage)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("completion returned empty response")
	}

	msg := NewAssistantMessage(resp.Content)
	return &msg, nil
}
