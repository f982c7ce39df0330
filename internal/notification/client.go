package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendRequest is one outbound message.
type SendRequest struct {
	To       string `json:"to"`
	Body     string `json:"message"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Sender delivers a message and returns the gateway message id.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// APIError holds an error response returned by the messaging gateway
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("messaging gateway %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("messaging gateway %d: %s", e.Status, e.Message)
}

// Rejected reports whether the gateway refused this particular message.
// Such errors say nothing about gateway health.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests &&
		e.Status != http.StatusUnauthorized && e.Status != http.StatusForbidden
}

// IsRejected reports whether err is a per-message rejection.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejected()
}

// Client talks to a WhatsApp-style HTTP gateway: POST JSON, bearer token,
// {"id": "..."} on success.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a gateway client. A nil httpClient gets a 15s timeout.
func NewClient(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{endpoint: endpoint, token: token, httpClient: httpClient}
}

type sendResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// Send posts the message.
func (c *Client) Send(ctx context.Context, req SendRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return "", apiErr
	}

	var out sendResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
	}
	if out.ID == "" {
		out.ID = out.MessageID
	}
	return out.ID, nil
}
