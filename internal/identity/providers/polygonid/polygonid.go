// Package polygonid integrates the Polygon ID verifier API: Initiate opens an
// authorization request rendered as a QR challenge, CompleteCallback forwards
// the wallet's proof payload for verification.
package polygonid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"emblem/internal/identity/providers"
	id "emblem/pkg/domain"
)

const Name = "polygonid"

// Adapter calls an external Polygon ID verifier service.
type Adapter struct {
	baseURL    string
	apiKey     string
	httpClient providers.HTTPDoer
}

var _ providers.Adapter = (*Adapter)(nil)

// New constructs the adapter with a default HTTP client.
func New(baseURL, apiKey string, timeout time.Duration) *Adapter {
	return NewWithClient(baseURL, apiKey, &http.Client{Timeout: timeout})
}

// NewWithClient constructs the adapter with an injected HTTP client for tests.
func NewWithClient(baseURL, apiKey string, client providers.HTTPDoer) *Adapter {
	return &Adapter{baseURL: baseURL, apiKey: apiKey, httpClient: client}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsAvailable() bool {
	return a.baseURL != "" && a.apiKey != ""
}

type initiateRequest struct {
	Wallet      string `json:"wallet"`
	CallbackURL string `json:"callback_url"`
}

type initiateResponse struct {
	SessionID string `json:"session_id"`
	QRPayload string `json:"qr_payload"`
	ExpiresAt string `json:"expires_at"`
}

func (a *Adapter) Initiate(ctx context.Context, wallet id.WalletAddress, callbackTarget string) (*providers.Challenge, error) {
	if !a.IsAvailable() {
		return nil, providers.NewAdapterError(providers.ErrorUnavailable, Name, "verifier URL or API key not configured", nil)
	}

	body, err := json.Marshal(initiateRequest{Wallet: string(wallet), CallbackURL: callbackTarget})
	if err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to marshal request", err)
	}

	status, respBody, err := a.post(ctx, a.baseURL+"/v2/authentication/requests", body)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status, respBody); err != nil {
		return nil, err
	}

	var resp initiateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to parse initiate response", err)
	}
	if resp.SessionID == "" {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "initiate response missing session id", nil)
	}

	expiresAt, _ := time.Parse(time.RFC3339, resp.ExpiresAt)
	return &providers.Challenge{
		ProviderSessionID: resp.SessionID,
		QRCodePayload:     resp.QRPayload,
		ExpiresAt:         expiresAt,
	}, nil
}

type callbackResponse struct {
	Verified bool           `json:"verified"`
	DID      string         `json:"did"`
	Metadata map[string]any `json:"metadata"`
}

// CompleteCallback forwards the wallet's zero-knowledge proof payload to the
// verifier, which validates it against the session's authorization request.
func (a *Adapter) CompleteCallback(ctx context.Context, payload json.RawMessage, providerSessionID string) (*providers.CallbackResult, error) {
	if !a.IsAvailable() {
		return nil, providers.NewAdapterError(providers.ErrorUnavailable, Name, "verifier URL or API key not configured", nil)
	}
	if len(payload) == 0 {
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "empty callback payload", nil)
	}

	url := fmt.Sprintf("%s/v2/authentication/callback?sessionID=%s", a.baseURL, providerSessionID)
	status, respBody, err := a.post(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "provider does not know this session", nil)
	}
	if err := classifyStatus(status, respBody); err != nil {
		return nil, err
	}

	var resp callbackResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to parse callback response", err)
	}
	if !resp.Verified || resp.DID == "" {
		return nil, providers.NewAdapterError(providers.ErrorRejected, Name, "proof did not verify", nil)
	}

	return &providers.CallbackResult{DID: resp.DID, Metadata: resp.Metadata}, nil
}

func (a *Adapter) post(ctx context.Context, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, providers.NewAdapterError(providers.ErrorTimeout, Name, "request timeout", err)
		}
		return 0, nil, providers.NewAdapterError(providers.ErrorOutage, Name, "failed to reach verifier", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to read response body", err)
	}
	return resp.StatusCode, respBody, nil
}

type errorResponse struct {
	Message string `json:"message"`
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return providers.NewAdapterError(providers.ErrorUnavailable, Name, "verifier rejected credentials", nil)
	case status == http.StatusUnprocessableEntity:
		return providers.NewAdapterError(providers.ErrorRejected, Name, providerMessage(body, "proof rejected"), nil)
	case status == http.StatusBadRequest:
		return providers.NewAdapterError(providers.ErrorBadPayload, Name, providerMessage(body, "bad request"), nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return providers.NewAdapterError(providers.ErrorOutage, Name, fmt.Sprintf("verifier unavailable (status %d)", status), nil)
	default:
		return providers.NewAdapterError(providers.ErrorInternal, Name, fmt.Sprintf("unexpected status code %d", status), nil)
	}
}

func providerMessage(body []byte, fallback string) string {
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Message != "" {
		return er.Message
	}
	return fallback
}
