package remote

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

	"github.com/comigor/chatsync-go/internal/history"
)

// UserIDHeader carries the caller's id on message requests.
const UserIDHeader = "X-User-ID"

// TransportError is a network-level failure, including timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline being hit.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ServerError is a non-success status or an unusable response body.
type ServerError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Client talks to the conversation service.
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		now:     time.Now,
	}
}

// History fetches the stored conversation for userID. Records are
// normalized: they are attributed to userID and missing timestamps are
// set to the time of the fetch.
func (c *Client) History(ctx context.Context, userID string) ([]history.Message, error) {
	const op = "fetch history"
	u := fmt.Sprintf("%s/api/chat/history?userId=%s", c.baseURL, url.QueryEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var msgs []history.Message
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, &ServerError{Op: op, StatusCode: http.StatusOK, Detail: "malformed body: " + err.Error()}
		}
	}

	now := c.now()
	out := make([]history.Message, 0, len(msgs))
	for _, m := range history.DropEmpty(msgs) {
		m.UserID = userID
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		out = append(out, m)
	}
	return out, nil
}

type sendRequest struct {
	Content string `json:"content"`
	UserID  string `json:"userId"`
}

type sendResponse struct {
	Response *string `json:"response"`
}

// Send posts a user message and returns the assistant's reply.
func (c *Client) Send(ctx context.Context, content, userID string) (string, error) {
	const op = "send message"

	payload, err := json.Marshal(sendRequest{Content: content, UserID: userID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/message", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, userID)

	body, err := c.do(op, req)
	if err != nil {
		return "", err
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ServerError{Op: op, StatusCode: http.StatusOK, Detail: "malformed body: " + err.Error()}
	}
	if out.Response == nil {
		return "", &ServerError{Op: op, StatusCode: http.StatusOK, Detail: "response field missing"}
	}
	return *out.Response, nil
}

func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return body, nil
}
