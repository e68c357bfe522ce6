// Package idos integrates the idOS verification API. Unlike the Polygon ID
// flow, the callback payload here carries no proof; the adapter re-queries
// the provider for the authoritative session outcome.
package idos

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

const Name = "idos"

// Adapter calls the idOS verification API with a bearer token.
type Adapter struct {
	baseURL    string
	token      string
	httpClient providers.HTTPDoer
}

var _ providers.Adapter = (*Adapter)(nil)

func New(baseURL, token string, timeout time.Duration) *Adapter {
	return NewWithClient(baseURL, token, &http.Client{Timeout: timeout})
}

func NewWithClient(baseURL, token string, client providers.HTTPDoer) *Adapter {
	return &Adapter{baseURL: baseURL, token: token, httpClient: client}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsAvailable() bool {
	return a.baseURL != "" && a.token != ""
}

type sessionRequest struct {
	WalletAddress string `json:"wallet_address"`
	RedirectURI   string `json:"redirect_uri"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	DID       string `json:"did"`
	ExpiresAt string `json:"expires_at"`
	Reason    string `json:"reason"`
}

func (a *Adapter) Initiate(ctx context.Context, wallet id.WalletAddress, callbackTarget string) (*providers.Challenge, error) {
	if !a.IsAvailable() {
		return nil, providers.NewAdapterError(providers.ErrorUnavailable, Name, "API URL or token not configured", nil)
	}

	body, err := json.Marshal(sessionRequest{WalletAddress: string(wallet), RedirectURI: callbackTarget})
	if err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to marshal request", err)
	}

	resp, err := a.call(ctx, http.MethodPost, a.baseURL+"/v1/verification-sessions", body)
	if err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.URL == "" {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "session response missing id or url", nil)
	}

	expiresAt, _ := time.Parse(time.RFC3339, resp.ExpiresAt)
	return &providers.Challenge{
		ProviderSessionID: resp.ID,
		VerificationURL:   resp.URL,
		ExpiresAt:         expiresAt,
	}, nil
}

// CompleteCallback ignores the webhook body beyond its existence and asks the
// provider for the session's current state, so a spoofed callback can never
// complete a verification.
func (a *Adapter) CompleteCallback(ctx context.Context, _ json.RawMessage, providerSessionID string) (*providers.CallbackResult, error) {
	if !a.IsAvailable() {
		return nil, providers.NewAdapterError(providers.ErrorUnavailable, Name, "API URL or token not configured", nil)
	}
	if providerSessionID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "callback carries no session id", nil)
	}

	resp, err := a.call(ctx, http.MethodGet, a.baseURL+"/v1/verification-sessions/"+providerSessionID, nil)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case "approved":
		if resp.DID == "" {
			return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "approved session missing did", nil)
		}
		return &providers.CallbackResult{
			DID:      resp.DID,
			Metadata: map[string]any{"session_url": resp.URL},
		}, nil
	case "rejected":
		msg := resp.Reason
		if msg == "" {
			msg = "identity claims rejected"
		}
		return nil, providers.NewAdapterError(providers.ErrorRejected, Name, msg, nil)
	case "pending":
		return nil, providers.NewAdapterError(providers.ErrorOutage, Name, "verification still pending at provider", nil)
	default:
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, fmt.Sprintf("unknown session status %q", resp.Status), nil)
	}
}

func (a *Adapter) call(ctx context.Context, method, url string, body []byte) (*sessionResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, providers.NewAdapterError(providers.ErrorTimeout, Name, "request timeout", err)
		}
		return nil, providers.NewAdapterError(providers.ErrorOutage, Name, "failed to reach idOS", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to read response body", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK || httpResp.StatusCode == http.StatusCreated:
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, providers.NewAdapterError(providers.ErrorUnavailable, Name, "idOS rejected credentials", nil)
	case httpResp.StatusCode == http.StatusNotFound:
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "provider does not know this session", nil)
	case httpResp.StatusCode == http.StatusBadRequest:
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "bad request", nil)
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, providers.NewAdapterError(providers.ErrorOutage, Name, fmt.Sprintf("idOS unavailable (status %d)", httpResp.StatusCode), nil)
	default:
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, fmt.Sprintf("unexpected status code %d", httpResp.StatusCode), nil)
	}

	var resp sessionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorInternal, Name, "failed to parse response", err)
	}
	return &resp, nil
}
