package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vibeshell/internal/logging"
	"vibeshell/internal/types"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	Logger   logging.Logger
	// Transport overrides the HTTP transport for all requests. Tests use it
	// to point at httptest servers.
	Transport http.RoundTripper
}

// Client is a thin wrapper over the OpenCode HTTP API. It holds no session
// state; callers pass session ids explicitly.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	// sendClient has no timeout: a message POST returns only when the
	// agent turn finishes.
	sendClient   *http.Client
	streamClient *http.Client
	logger       logging.Logger
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("server base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %s", baseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL:      strings.TrimRight(parsed.String(), "/"),
		username:     username,
		password:     strings.TrimSpace(cfg.Password),
		httpClient:   &http.Client{Timeout: timeout, Transport: cfg.Transport},
		sendClient:   &http.Client{Transport: cfg.Transport},
		streamClient: &http.Client{Transport: cfg.Transport},
		logger:       logger.With(logging.Component("opencode")),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the server answers its health probe with
// healthy=true.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var payload struct {
		Healthy bool `json:"healthy"`
	}
	if err := c.doJSON(ctx, c.httpClient, http.MethodGet, "/global/health", nil, &payload); err != nil {
		return false, err
	}
	return payload.Healthy, nil
}

// WaitForServer polls Health up to attempts times, interval apart.
func (c *Client) WaitForServer(ctx context.Context, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		healthy, err := c.Health(ctx)
		if err == nil && healthy {
			c.logger.Info("server ready", logging.F("attempt", i+1))
			return nil
		}
		lastErr = err
		c.logger.Debug("waiting for server", logging.F("attempt", i+1), logging.F("of", attempts), logging.Err(err))
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if lastErr != nil {
		return fmt.Errorf("server not ready after %d attempts: %w", attempts, lastErr)
	}
	return fmt.Errorf("server not ready after %d attempts", attempts)
}

func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var sessions []types.Session
	if err := c.doJSON(ctx, c.httpClient, http.MethodGet, "/session", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) CreateSession(ctx context.Context, title string) (*types.Session, error) {
	payload := map[string]any{}
	if title = strings.TrimSpace(title); title != "" {
		payload["title"] = title
	}
	var session types.Session
	if err := c.doJSON(ctx, c.httpClient, http.MethodPost, "/session", payload, &session); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, errors.New("session id missing from server response")
	}
	return &session, nil
}

// DeleteSession removes a session. A 404 means someone else already removed
// it and counts as success.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	path, err := sessionPath(sessionID, "")
	if err != nil {
		return err
	}
	err = c.doJSON(ctx, c.httpClient, http.MethodDelete, path, nil, nil)
	if IsNotFound(err) {
		c.logger.Debug("session already deleted", logging.F("session_id", sessionID))
		return nil
	}
	return err
}

// SendMessage submits a text prompt. When messageID is non-empty it is sent
// so the server echoes it back on the created user message.
func (c *Client) SendMessage(ctx context.Context, sessionID, text, messageID string) (json.RawMessage, error) {
	path, err := sessionPath(sessionID, "/message")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	body := map[string]any{
		"parts": []map[string]any{
			{"type": "text", "text": text},
		},
	}
	if messageID = strings.TrimSpace(messageID); messageID != "" {
		body["messageID"] = messageID
	}
	var result json.RawMessage
	if err := c.doJSON(ctx, c.sendClient, http.MethodPost, path, body, &result); err != nil {
		if errors.Is(err, io.EOF) {
			// Some server builds acknowledge with 2xx and an empty body.
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]types.Message, error) {
	path, err := sessionPath(sessionID, "/message")
	if err != nil {
		return nil, err
	}
	var messages []types.Message
	if err := c.doJSON(ctx, c.httpClient, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	path, err := sessionPath(sessionID, "/abort")
	if err != nil {
		return err
	}
	return c.doJSON(ctx, c.httpClient, http.MethodPost, path, map[string]any{}, nil)
}

func sessionPath(sessionID, suffix string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	return "/session/" + url.PathEscape(sessionID) + suffix, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, httpClient *http.Client, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", logging.F("method", method), logging.F("path", path), logging.Err(err))
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("request", logging.F("method", method), logging.F("path", path), logging.F("status", resp.StatusCode), logging.F("dur", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
