package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AuthMode represents the authentication strategy used against the upstream
type AuthMode int

const (
	// AuthModeAPIKey sends a static X-API-KEY header on every request
	AuthModeAPIKey AuthMode = iota
	// AuthModeSession sends an X-Metabase-Session token obtained by
	// posting credentials to the login endpoint
	AuthModeSession
)

// String returns a human-readable auth mode name
func (m AuthMode) String() string {
	switch m {
	case AuthModeAPIKey:
		return "api_key"
	case AuthModeSession:
		return "session"
	default:
		return "unknown"
	}
}

type sessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

// applyAuth sets the authentication headers for a request. Under session
// auth the token is fetched lazily on first use.
func (c *Client) applyAuth(ctx context.Context, req *http.Request) error {
	switch c.authMode {
	case AuthModeAPIKey:
		req.Header.Set("X-API-KEY", c.apiKey)
	case AuthModeSession:
		token, err := c.sessionToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("X-Metabase-Session", token)
	}
	return nil
}

// sessionToken returns the cached session token, logging in on first use.
// Concurrent first uses collapse to a single login request; late arrivals
// reuse the value it cached.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.session
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	v, err, _ := c.loginGroup.Do("session", func() (interface{}, error) {
		c.mu.RLock()
		cached := c.session
		c.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		fetched, err := c.login(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.session = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// login posts credentials to the session endpoint and returns the token
func (c *Client) login(ctx context.Context) (string, error) {
	if c.username == "" || c.password == "" {
		return "", &Error{
			Kind:    ErrKindAuth,
			Message: "email and password required for session authentication",
		}
	}

	fullURL := c.baseURL + "/api/session"

	payload, err := json.Marshal(sessionRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := c.classifyTransportError(err, fullURL)
		c.logger.Error("Session login failed", "error", gwErr.Message)
		return "", gwErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classifyTransportError(err, fullURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{
			Kind:       ErrKindAuth,
			Message:    fmt.Sprintf("authentication failed: %d - %s", resp.StatusCode, string(body)),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		c.logger.Error("Session login rejected", "status", resp.StatusCode)
		return "", gwErr
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("failed to parse session response: %w", err)
	}
	if session.ID == "" {
		return "", &Error{
			Kind:    ErrKindAuth,
			Message: "session response missing id",
		}
	}

	c.logger.Info("Successfully obtained session token")

	return session.ID, nil
}
