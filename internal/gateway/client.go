// Package gateway is the REST client for the automation gateway. It owns no
// state beyond connection settings; every call is a plain request/response
// against the remote work API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client talks to the automation gateway.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a gateway client. baseURL is the gateway root without a
// trailing slash, e.g. "http://gateway.local:8420".
func New(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// do issues a request with a JSON body (nil for none) and decodes the JSON
// response into out (nil to discard). Every request carries a correlation
// ID so gateway logs can be matched to client actions.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, err := c.raw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// raw issues a request and returns the response body bytes.
func (c *Client) raw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("gateway request failed")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

// decodeList normalizes a collection response. The gateway is inconsistent
// about list shapes: some endpoints return a bare JSON array, others wrap
// it as {"<resource>": [...]}. Every collection boundary goes through this
// one helper.
func decodeList(data []byte, resource string, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return fmt.Errorf("unexpected %s list shape: %w", resource, err)
	}
	raw, ok := wrapper[resource]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// list fetches a collection endpoint and unwraps either list shape.
func (c *Client) list(ctx context.Context, path, resource string, out any) error {
	data, err := c.raw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeList(data, resource, out)
}

// Progress is the uniform shape of the gateway's long-running operation
// status endpoints. Output is the full accumulated buffer, not a delta.
type Progress struct {
	Status  string          `json:"status"`
	Output  string          `json:"output,omitempty"`
	Plan    json.RawMessage `json:"plan,omitempty"`
	Error   string          `json:"error,omitempty"`
	Summary string          `json:"summary,omitempty"`
}
