// Package rest talks to the chat server's HTTP API: rooms, message history
// and file uploads.
package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

// Client provides REST API access to the chat server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     livechat.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger logs breaker transitions.
func WithLogger(l livechat.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreaker overrides the circuit breaker: it opens after failures
// consecutive server or transport failures and probes again after timeout.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(c *Client) { c.breaker = c.newBreaker(failures, timeout) }
}

// NewClient creates a new REST API client.
// baseURL should be the base URL of the API, e.g., "http://localhost:3001/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: livechat.NopLogger(),
	}
	c.breaker = c.newBreaker(5, 30*time.Second)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newBreaker(failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "livechat-rest",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors say nothing about server health.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", map[string]any{
				"breaker": name, "from": from.String(), "to": to.String(),
			})
		},
	})
}

// SetToken sets the JWT token for authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Room management endpoints

// ListRooms returns all accessible rooms for the authenticated user.
func (c *Client) ListRooms(ctx context.Context) ([]livechat.Room, error) {
	var resp []livechat.Room
	if err := c.doJSON(ctx, http.MethodGet, "/rooms", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateRoom creates a new room.
func (c *Client) CreateRoom(ctx context.Context, name string, typ livechat.RoomType, participants []string) (*livechat.Room, error) {
	var resp livechat.Room
	req := CreateRoomRequest{Name: name, Type: typ, Participants: participants}
	if err := c.doJSON(ctx, http.MethodPost, "/rooms", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateRoom renames a room.
func (c *Client) UpdateRoom(ctx context.Context, roomID, name string) (*livechat.Room, error) {
	var resp livechat.Room
	if err := c.doJSON(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(roomID), UpdateRoomRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteRoom deletes a room.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/rooms/"+url.PathEscape(roomID), nil, nil)
}

// Message history endpoints

// GetMessages retrieves message history for a room with cursor-based pagination.
// limit: maximum number of messages to return (server default when <= 0).
// before: if non-empty, returns messages older than this message ID.
func (c *Client) GetMessages(ctx context.Context, roomID string, limit int, before string) (*livechat.MessagePage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		q.Set("before", before)
	}
	path := "/rooms/" + url.PathEscape(roomID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp livechat.MessagePage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Messages {
		if resp.Messages[i].RoomID == "" {
			resp.Messages[i].RoomID = roomID
		}
	}
	return &resp, nil
}

// Upload endpoints

// Upload sends r as a multipart file and returns where it was stored. It
// satisfies livechat.Uploader.
func (c *Client) Upload(ctx context.Context, name, contentType string, r io.Reader) (*livechat.UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	data, err := c.execute(ctx, http.MethodPost, "/uploads", body.Bytes(), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var resp livechat.UploadResult
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// Helper methods

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = data
		contentType = "application/json"
	}

	data, err := c.execute(ctx, method, path, payload, contentType)
	if err != nil {
		return err
	}
	if dest != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// execute runs one request through the circuit breaker and returns the
// response body of a 2xx reply.
func (c *Client) execute(ctx context.Context, method, path string, payload []byte, contentType string) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return c.do(req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return data, err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}
