package callclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"telehealth-calls/internal/calls"
)

// APIError is a non-2xx response from the call API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("call api: %d %s", e.StatusCode, e.Message)
}

// Status is the call-status endpoint's answer.
type Status struct {
	Active bool
	Call   *calls.Call
}

// Client calls the call API on behalf of one Session.
type Client struct {
	baseURL string
	session Session
	http    *http.Client
}

func NewClient(baseURL string, session Session, hc *http.Client) (*Client, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), session: session, http: hc}, nil
}

func (c *Client) Session() Session { return c.session }

type envelope struct {
	Message string       `json:"message"`
	Status  string       `json:"status"`
	Call    *calls.Call  `json:"call"`
	Calls   []calls.Call `json:"calls"`
}

// CreateRoom starts a call. When one is already ongoing the server answers 409
// with that call, which is returned alongside the *APIError.
func (c *Client) CreateRoom(ctx context.Context, appointmentID int64) (calls.Call, error) {
	return c.callOp(ctx, http.MethodPost, fmt.Sprintf("/api/appointments/%d/create-room", appointmentID))
}

func (c *Client) Join(ctx context.Context, callID int64) (calls.Call, error) {
	return c.callOp(ctx, http.MethodPost, fmt.Sprintf("/api/calls/%d/join", callID))
}

func (c *Client) End(ctx context.Context, callID int64) (calls.Call, error) {
	return c.callOp(ctx, http.MethodPost, fmt.Sprintf("/api/calls/%d/end", callID))
}

func (c *Client) CallStatus(ctx context.Context, appointmentID int64) (Status, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/appointments/%d/call-status", appointmentID), &env); err != nil {
		return Status{}, err
	}
	if env.Status == "active" && env.Call != nil {
		return Status{Active: true, Call: env.Call}, nil
	}
	return Status{}, nil
}

func (c *Client) History(ctx context.Context, appointmentID int64) ([]calls.Call, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/appointments/%d/calls", appointmentID), &env); err != nil {
		return nil, err
	}
	return env.Calls, nil
}

func (c *Client) callOp(ctx context.Context, method, path string) (calls.Call, error) {
	var env envelope
	if err := c.do(ctx, method, path, &env); err != nil {
		if env.Call != nil {
			return *env.Call, err
		}
		return calls.Call{}, err
	}
	if env.Call == nil {
		return calls.Call{}, fmt.Errorf("call api: response has no call")
	}
	return *env.Call, nil
}

func (c *Client) do(ctx context.Context, method, path string, out *envelope) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, out) == nil && out.Message != "" {
			apiErr.Message = out.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	return json.Unmarshal(raw, out)
}
