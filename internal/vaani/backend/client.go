// Package backend talks to the banking service that actually fulfils
// intents.  The assistant never answers banking questions itself; it
// forwards the classified intent plus conversation context and speaks
// whatever the backend decides.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bdobrica/vaani/common/retry"
	"github.com/bdobrica/vaani/internal/vaani/outcome"
	"github.com/bdobrica/vaani/internal/vaani/store"
)

const (
	defaultIntentEndpoint = "/api/intent"
	defaultBackendTimeout = 15 * time.Second
)

// unavailableMessage is spoken when the backend cannot be reached at all.
const unavailableMessage = "Backend unavailable. Please try again later."

// Config configures the backend client.
type Config struct {
	// BaseURL is the banking service root, e.g. http://localhost:8000.
	BaseURL string

	// IntentEndpoint overrides the intent path.  Defaults to /api/intent.
	IntentEndpoint string

	// Timeout is the per-request HTTP timeout.  Defaults to 15 s.
	Timeout time.Duration

	// Retry bounds retries on transient failures.
	Retry retry.Config
}

// UserData is the per-user record the backend exposes, shape-agnostic so
// backend schema changes do not require client releases.
type UserData map[string]any

// IntentPayload is the request body for one intent dispatch.
type IntentPayload struct {
	UserID              string                 `json:"user_id"`
	Intent              string                 `json:"intent"`
	Language            string                 `json:"language"`
	Details             map[string]any         `json:"details"`
	ConversationContext []store.ContextMessage `json:"conversation_context"`
	UserData            UserData               `json:"user_data,omitempty"`
}

// Decision is the backend's answer to an intent.  Message is what the
// assistant speaks; Raw preserves the full response body for auditing.
type Decision struct {
	Message string
	Raw     map[string]any
	Status  outcome.Status
}

// Client dispatches intents to the banking backend over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
}

// New returns a backend Client.  Zero-value retry config falls back to
// retry.DefaultConfig.
func New(cfg Config) *Client {
	if cfg.IntentEndpoint == "" {
		cfg.IntentEndpoint = defaultIntentEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultBackendTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchUserData loads the backend's record for userID.  A missing record
// or unreachable backend degrades to nil data; intent dispatch proceeds
// without enrichment.
func (c *Client) FetchUserData(ctx context.Context, userID string) (UserData, outcome.Status) {
	endpoint := c.cfg.BaseURL + "/api/users/" + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		slog.Warn("backend: create user data request", "err", err)
		return nil, outcome.Unavailable
	}

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("backend: fetch user data", "err", err, "user_id", userID)
		return nil, outcome.Unavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, outcome.Degraded
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		slog.Warn("backend: user data request failed", "status", resp.StatusCode, "user_id", userID)
		return nil, outcome.Unavailable
	}

	var data UserData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		slog.Warn("backend: decode user data", "err", err)
		return nil, outcome.Degraded
	}
	return data, outcome.OK
}

// SendIntent dispatches payload and returns the backend's decision.  The
// returned Decision always carries a speakable Message: on total failure
// it is a generic unavailability notice with an Unavailable status.
func (c *Client) SendIntent(ctx context.Context, payload IntentPayload) Decision {
	if payload.Details == nil {
		payload.Details = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("backend: marshal intent payload", "err", err)
		return Decision{Message: unavailableMessage, Status: outcome.Unavailable}
	}

	var raw map[string]any
	err = retry.Do(ctx, c.cfg.Retry, func() error {
		return c.postIntent(ctx, body, &raw)
	})
	if err != nil {
		slog.Warn("backend: intent dispatch failed", "err", err, "intent", payload.Intent)
		return Decision{Message: unavailableMessage, Status: outcome.Unavailable}
	}

	decision := Decision{Raw: raw, Status: outcome.OK}
	decision.Message = extractMessage(raw)
	if status, _ := raw["status"].(string); status == "error" {
		decision.Status = outcome.Degraded
	}
	return decision
}

func (c *Client) postIntent(ctx context.Context, body []byte, out *map[string]any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+c.cfg.IntentEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: intent request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read intent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: intent endpoint returned HTTP %d: %.200s",
			resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("backend: decode intent response: %w", err)
	}
	return nil
}

// extractMessage pulls the speakable reply out of a backend response.
// Different backend versions have used "message", "response", and
// "reply"; accept all of them.
func extractMessage(raw map[string]any) string {
	for _, key := range []string{"message", "response", "reply"} {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
