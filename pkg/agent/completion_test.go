package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider delegates to a function so each test scripts its own behavior
type fakeProvider struct {
	name string
	fn   func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	calls []CompletionRequest
}

func (p *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	p.calls = append(p.calls, req)
	return p.fn(ctx, req)
}

func (p *fakeProvider) Provider() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func textResponse(text string) *CompletionResponse {
	return &CompletionResponse{
		Content:    []ContentBlock{{Kind: BlockText, Text: text}},
		StopReason: StopReasonEndTurn,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestCompleteWithRetry(t *testing.T) {
	t.Run("should return the assistant message on first success", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return textResponse("hello"), nil
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(time.Millisecond))

		msg, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.NoError(t, err)
		assert.Equal(t, MessageAssistant, msg.Kind)
		assert.Equal(t, "hello", msg.TextContent())
		assert.Len(t, provider.calls, 1)
	})

	t.Run("should attempt exactly MaxRetries times when every attempt fails", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, fmt.Errorf("boom")
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(time.Millisecond))

		_, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.Error(t, err)
		assert.Len(t, provider.calls, MaxRetries)

		var ce *CompletionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, MaxRetries, ce.Attempts)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("should double the backoff between attempts", func(t *testing.T) {
		var stamps []time.Time
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			stamps = append(stamps, time.Now())
			return nil, fmt.Errorf("boom")
		}}
		base := 40 * time.Millisecond
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(base))

		_, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.Error(t, err)
		require.Len(t, stamps, 3)

		first := stamps[1].Sub(stamps[0])
		second := stamps[2].Sub(stamps[1])
		assert.GreaterOrEqual(t, first, base)
		assert.GreaterOrEqual(t, second, 2*base)
	})

	t.Run("should stop immediately when cancelled during a backoff wait", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return nil, fmt.Errorf("boom")
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(5*time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		_, err := client.CompleteWithRetry(ctx, "m", NewConversation("s", "i"), nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
		assert.Len(t, provider.calls, 1)
	})

	t.Run("should identify a per-attempt timeout in the error", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		client := NewCompletionClient(provider, testLogger(),
			WithCompletionTimeout(20*time.Millisecond),
			WithBackoffBase(time.Millisecond))

		_, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("should treat an error stop reason as a failed attempt", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Content:      []ContentBlock{{Kind: BlockText, Text: "partial"}},
				StopReason:   StopReasonError,
				ErrorMessage: "overloaded",
			}, nil
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(time.Millisecond))

		_, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overloaded")
		assert.Len(t, provider.calls, MaxRetries)
	})

	t.Run("should treat an empty response as a failed attempt", func(t *testing.T) {
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{StopReason: StopReasonEndTurn}, nil
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(time.Millisecond))

		_, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty response")
	})

	t.Run("should recover when a later attempt succeeds", func(t *testing.T) {
		attempt := 0
		provider := &fakeProvider{fn: func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
			attempt++
			if attempt < 3 {
				return nil, fmt.Errorf("transient")
			}
			return textResponse("finally"), nil
		}}
		client := NewCompletionClient(provider, testLogger(), WithBackoffBase(time.Millisecond))

		msg, err := client.CompleteWithRetry(context.Background(), "m", NewConversation("s", "i"), nil)
		require.NoError(t, err)
		assert.Equal(t, "finally", msg.TextContent())
		assert.Equal(t, 3, attempt)
	})
}
