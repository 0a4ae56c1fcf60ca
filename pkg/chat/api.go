package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ferre795/chatrelay/pkg/sse"
)

// TurnStream is the framed event stream of one chat turn. Next returns
// io.EOF when the server closes the stream.
type TurnStream interface {
	Next() (sse.Event, error)
	Close() error
}

// API is the client's view of the relay server.
type API interface {
	// NewSession asks the server for a fresh session identifier.
	NewSession(ctx context.Context) (string, error)

	// ChatTurn submits a message for a session and returns the reply
	// stream. A non-success status fails before any streaming starts.
	ChatTurn(ctx context.Context, sessionID, message string) (TurnStream, error)
}

// HTTPClient talks to the relay server over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates an API client for the server at baseURL. The
// underlying client carries no timeout; chat turns are unbounded
// streams governed by the caller's context.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// NewSession requests a new session identifier.
func (c *HTTPClient) NewSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/new-session", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("new-session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode new-session response: %w", err)
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("server returned an empty session id")
	}

	return payload.SessionID, nil
}

// ChatTurn posts a chat turn and returns its event stream.
func (c *HTTPClient) ChatTurn(ctx context.Context, sessionID, message string) (TurnStream, error) {
	body, err := json.Marshal(map[string]string{
		"sessionId": sessionID,
		"message":   message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server streaming error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	return &httpTurn{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
	}, nil
}

type httpTurn struct {
	body   io.ReadCloser
	reader *sse.Reader
}

func (t *httpTurn) Next() (sse.Event, error) {
	return t.reader.Next()
}

func (t *httpTurn) Close() error {
	return t.body.Close()
}
