// Package tools routes named tool calls either to local handlers or to
// the remote game server, validating arguments against each tool's JSON
// schema and normalizing every outcome to text.
//
// Invariants:
// - Local tools never touch the network.
// - A result beginning with "Error" denotes failure; nothing else does.
// - Failures are fed back to the model as text, never raised.
//
// Usage:
//
//	d := tools.NewDispatcher(client, logger)
//	_ = d.Register(tools.Definition{Name: "mine", Description: "Mine the current deposit"})
//	out := d.ExecuteTool(ctx, "mine", nil, "")
//	_ = out
package tools
