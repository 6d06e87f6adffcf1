package gameclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashkelon/starhelm/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	defaultRenewalThreshold = 60 * time.Second
	sessionHeader           = "X-Session-Id"

	// rateLimitWarnEvery paces the escalating warning while the server
	// keeps reporting rate limits. Retries themselves are unbounded:
	// the protocol guarantees eventual unblocking.
	rateLimitWarnEvery = 10
)

// CredentialSource provides the stored agent token, if any. Tokens are
// opaque strings; their persistence format is owned elsewhere.
type CredentialSource interface {
	Token() (string, bool)
}

// Client owns the remote session handle and guarantees every command is
// issued against a valid session, recovering transparently from expiry
// and rate limiting.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	creds            CredentialSource
	logger           zerolog.Logger
	renewalThreshold time.Duration
	sleep            func(ctx context.Context, d time.Duration) error

	// Owned by the active turn; no locking needed (single-threaded core)
	session *RemoteSession
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentials sets the credential source for opportunistic login
func WithCredentials(creds CredentialSource) Option {
	return func(c *Client) { c.creds = creds }
}

// WithRenewalThreshold overrides the proactive renewal threshold
func WithRenewalThreshold(d time.Duration) Option {
	return func(c *Client) { c.renewalThreshold = d }
}

// WithSleeper overrides the rate-limit sleep function
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New creates a game client for the given server base URL
func New(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:          baseURL,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		logger:           logger,
		renewalThreshold: defaultRenewalThreshold,
		sleep:            sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session handle, or nil before bootstrap
func (c *Client) Session() *RemoteSession {
	return c.session
}

// Execute issues a command against a valid session. Rate-limited
// responses are waited out and resubmitted; a session reported invalid
// mid-flight is recreated and the command retried exactly once. Expected
// game failures come back as structured data in the result; only
// transport failures are returned as errors.
func (c *Client) Execute(ctx context.Context, command string, args map[string]interface{}) (*CommandResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}

	recovered := false
	rateLimitCycles := 0

	for {
		if err := c.ensureSession(ctx); err != nil {
			return nil, err
		}

		res, err := c.post(ctx, command, args)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", command, err)
		}
		if res.Error == nil {
			return res, nil
		}

		switch {
		case res.Error.Code == CodeRateLimited:
			rateLimitCycles++
			wait := time.Duration(res.Error.WaitSeconds * float64(time.Second))
			event := c.logger.Debug()
			if rateLimitCycles%rateLimitWarnEvery == 0 {
				event = c.logger.Warn()
			}
			event.
				Str("command", command).
				Float64("wait_seconds", res.Error.WaitSeconds).
				Int("cycles", rateLimitCycles).
				Msg("Rate limited, waiting before resubmit")
			metrics.RecordRateLimitWait(res.Error.WaitSeconds)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case res.Error.isSessionGone():
			if recovered {
				return nil, fmt.Errorf("command %q: session still invalid after recovery: %s", command, res.Error.Message)
			}
			recovered = true
			c.logger.Info().
				Str("command", command).
				Str("code", res.Error.Code).
				Msg("Session invalidated mid-flight, recreating")
			c.session = nil
			metrics.SetSessionActive(false)

		default:
			// Expected game-rule failure, surfaced as data
			return res, nil
		}
	}
}

// ensureSession creates a session if none exists or the active one is
// close to expiry.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.session != nil && c.session.Remaining() >= c.renewalThreshold {
		return nil
	}

	cause := "bootstrap"
	if c.session != nil {
		cause = "expiring"
		c.logger.Info().
			Dur("remaining", c.session.Remaining()).
			Msg("Session close to expiry, renewing proactively")
	}

	if err := c.createSession(ctx); err != nil {
		return err
	}
	metrics.RecordSessionRenewal(cause)
	return nil
}

// createSession bootstraps a fresh session and authenticates
// opportunistically when credentials are present. Missing credentials
// are not an error; unauthenticated commands stay dispatchable.
func (c *Client) createSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session bootstrap: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("session bootstrap: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("session bootstrap: unexpected status %d", resp.StatusCode)
	}

	var session RemoteSession
	if err := json.Unmarshal(body, &session); err != nil {
		return fmt.Errorf("session bootstrap: malformed response: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("session bootstrap: empty session id")
	}

	c.session = &session
	metrics.SetSessionActive(true)
	c.logger.Info().
		Str("session_id", session.ID).
		Time("expires_at", session.ExpiresAt).
		Msg("Session created")

	return c.authenticate(ctx)
}

// authenticate logs the session in with the stored token, if any. A
// login rejected by the server leaves the session usable but
// unauthenticated.
func (c *Client) authenticate(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	token, ok := c.creds.Token()
	if !ok {
		c.logger.Debug().Msg("No stored credentials, continuing unauthenticated")
		return nil
	}

	res, err := c.post(ctx, "login", map[string]interface{}{"token": token})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if res.Error != nil {
		c.logger.Warn().
			Str("code", res.Error.Code).
			Str("message", res.Error.Message).
			Msg("Login rejected, continuing unauthenticated")
		return nil
	}

	c.session.Authenticated = true
	c.logger.Info().Msg("Session authenticated")
	return nil
}

// post submits one command and decodes the response envelope
func (c *Client) post(ctx context.Context, command string, args map[string]interface{}) (*CommandResult, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/commands/"+command, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.session != nil {
		req.Header.Set(sessionHeader, c.session.ID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result CommandResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("malformed response (status %d): %w", resp.StatusCode, err)
	}
	return &result, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
