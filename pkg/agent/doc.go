// Package agent drives bounded turns of LLM completions and sequential
// tool execution, keeping the conversation within its token budget.
//
// Invariants:
// - Tool calls within a round execute strictly in order, never concurrently.
// - The first conversation message is immutable and survives compaction.
// - Compaction keeps at least the last 10 messages verbatim and only
//   splits immediately before a user message.
// - One cancellation signal threads through every suspension point.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.RunnerConfig{...})
//	convo := agent.NewConversation(systemPrompt, "Begin operating.")
//	state := &agent.CompactionState{}
//	err := runner.RunTurn(ctx, model, convo, state)
//	_ = err
package agent
