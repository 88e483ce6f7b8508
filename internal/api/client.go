// Package api is the REST client for the race server.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/wire"
)

const (
	// DefaultBaseURL is used when no api-url is configured.
	DefaultBaseURL = "http://localhost:8080/api"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client calls the session, words, results and room endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		headers: map[string]string{
			"Accept": "application/json",
		},
	}
}

// SetHeader adds a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.client.Timeout = timeout
	}
}

// do sends a JSON request and decodes a JSON response into out. Non-2xx
// responses become a FetchError carrying the server's message.
func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := wire.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &model.FetchError{Op: op, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close for a fully consumed response.
			_ = cerr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return &model.FetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", text)}
	}
	if out == nil {
		return nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.FetchError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if err := wire.Unmarshal(payload, out); err != nil {
		return &model.FetchError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// NewSession requests a session id and its initial text.
func (c *Client) NewSession(ctx context.Context, wordCount int, flags model.ContentFlags) (wire.SessionResponse, error) {
	var resp wire.SessionResponse
	err := c.do(ctx, "create session", http.MethodPost, "/session", wire.SessionRequest{
		Punctuation: flags.Punctuation,
		Numbers:     flags.Numbers,
		WordCount:   wordCount,
	}, &resp)
	return resp, err
}

// NextWords implements words.Supplier over the next-words endpoint.
func (c *Client) NextWords(ctx context.Context, count int, flags model.ContentFlags) ([]string, error) {
	var resp wire.NextWordsResponse
	err := c.do(ctx, "next words", http.MethodPost, "/next-words", wire.NextWordsRequest{
		WordCount:   count,
		Punctuation: flags.Punctuation,
		Numbers:     flags.Numbers,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return wire.SplitWords(resp.Text), nil
}

// SubmitResult posts a finished session.
func (c *Client) SubmitResult(ctx context.Context, r model.SessionResult) error {
	return c.do(ctx, "submit result", http.MethodPost, "/game/result", wire.NewResult(r), nil)
}

// CreateRoom creates a room owned by playerName.
func (c *Client) CreateRoom(ctx context.Context, playerName string) (model.Room, error) {
	var r wire.Room
	if err := c.do(ctx, "create room", http.MethodPost, "/room/create", wire.CreateRoomRequest{PlayerName: playerName}, &r); err != nil {
		return model.Room{}, err
	}
	return r.Model(), nil
}

// JoinRoom adds playerName to roomID.
func (c *Client) JoinRoom(ctx context.Context, roomID, playerName string) (model.Room, error) {
	var r wire.Room
	req := wire.JoinRoomRequest{RoomID: strings.ToUpper(roomID), PlayerName: playerName}
	if err := c.do(ctx, "join room", http.MethodPost, "/room/join", req, &r); err != nil {
		return model.Room{}, err
	}
	return r.Model(), nil
}

// GetRoom fetches the current room snapshot.
func (c *Client) GetRoom(ctx context.Context, roomID string) (model.Room, error) {
	var r wire.Room
	endpoint := "/room/" + url.PathEscape(strings.ToUpper(roomID))
	if err := c.do(ctx, "get room", http.MethodGet, endpoint, nil, &r); err != nil {
		return model.Room{}, err
	}
	return r.Model(), nil
}
