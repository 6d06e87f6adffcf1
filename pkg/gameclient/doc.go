// Package gameclient keeps a remote game session valid against a
// fallible, rate-limited server.
//
// Invariants:
// - Every command is issued against a session with at least 60s of
//   remaining lifetime; renewal happens before dispatch.
// - A session reported invalid mid-flight is recreated and the command
//   retried exactly once, transparently to the caller.
// - Rate-limited responses are waited out and resubmitted unchanged,
//   for as long as the server keeps reporting them.
// - Game-rule failures are data, not errors; only transport failures
//   are returned as Go errors.
//
// Usage:
//
//	client := gameclient.New("https://play.example.com/v1", logger,
//		gameclient.WithCredentials(store))
//	res, err := client.Execute(ctx, "mine", map[string]interface{}{"deposit": "iron"})
//	_ = res
//	_ = err
package gameclient
