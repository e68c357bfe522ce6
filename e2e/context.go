package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	Stream           *websocket.Conn
	Envelopes        []map[string]interface{}
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return &TestContext{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Reset clears per-scenario state while keeping the target configuration.
func (tc *TestContext) Reset() {
	tc.CloseStream()
	tc.LastResponse = nil
	tc.LastResponseBody = nil
	tc.Envelopes = nil
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", tc.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequestWithContext(context.Background(), "GET", tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}

	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}

	return false
}

// StreamURL converts the HTTP base into the WebSocket endpoint, with the
// wallet token on the query string when one is given.
func (tc *TestContext) StreamURL(token string) string {
	url := strings.Replace(tc.BaseURL, "http", "ws", 1) + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

// OpenStream dials the event stream and keeps the connection for later steps.
func (tc *TestContext) OpenStream(token string) error {
	conn, resp, err := websocket.DefaultDialer.Dial(tc.StreamURL(token), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	tc.Stream = conn
	return nil
}

// SendControl writes one control frame to the open stream.
func (tc *TestContext) SendControl(frame map[string]interface{}) error {
	if tc.Stream == nil {
		return fmt.Errorf("no open event stream")
	}
	return tc.Stream.WriteJSON(frame)
}

// NextEnvelope reads one envelope off the stream, remembering it.
func (tc *TestContext) NextEnvelope(timeout time.Duration) (map[string]interface{}, error) {
	if tc.Stream == nil {
		return nil, fmt.Errorf("no open event stream")
	}
	if err := tc.Stream.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	var envelope map[string]interface{}
	if err := tc.Stream.ReadJSON(&envelope); err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	tc.Envelopes = append(tc.Envelopes, envelope)
	return envelope, nil
}

// CloseStream drops the WebSocket connection if one is open.
func (tc *TestContext) CloseStream() {
	if tc.Stream != nil {
		tc.Stream.Close()
		tc.Stream = nil
	}
}
