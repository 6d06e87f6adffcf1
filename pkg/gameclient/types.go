package gameclient

import (
	"encoding/json"
	"time"
)

// CommandError is a structured game-level failure. Expected rule
// violations (insufficient fuel, invalid target, …) arrive here, never
// as Go errors.
type CommandError struct {
	Code        string  `json:"code"`
	Message     string  `json:"message"`
	WaitSeconds float64 `json:"wait_seconds,omitempty"`
}

// CommandResult is the server's reply to a command. Exactly one of
// Result or Error is populated.
type CommandResult struct {
	Result        json.RawMessage `json:"result,omitempty"`
	Notifications []string        `json:"notifications,omitempty"`
	Error         *CommandError   `json:"error,omitempty"`
}

// RemoteSession is the server-side authorization handle. It is recreated
// wholesale on expiry or invalidation, never partially patched.
type RemoteSession struct {
	ID            string    `json:"id"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Authenticated bool      `json:"-"`
}

// Remaining returns the session's remaining lifetime
func (s *RemoteSession) Remaining() time.Duration {
	return time.Until(s.ExpiresAt)
}

// Error codes the client reacts to
const (
	CodeRateLimited    = "rate_limited"
	CodeSessionExpired = "session_expired"
	CodeSessionInvalid = "session_invalid"
)

func (e *CommandError) isSessionGone() bool {
	return e.Code == CodeSessionExpired || e.Code == CodeSessionInvalid
}
