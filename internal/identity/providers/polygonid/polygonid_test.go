package polygonid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emblem/internal/identity/providers"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

const wallet = "0x8ba1f109551bd432803012645ac136ddd64dba72"

func TestIsAvailableRequiresConfig(t *testing.T) {
	assert.False(t, New("", "", time.Second).IsAvailable())
	assert.False(t, New("http://verifier.test", "", time.Second).IsAvailable())
	assert.True(t, New("http://verifier.test", "key", time.Second).IsAvailable())
}

func TestInitiate(t *testing.T) {
	var captured *http.Request
	var capturedBody []byte
	adapter := NewWithClient("http://verifier.test", "secret-key", doerFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		capturedBody, _ = io.ReadAll(req.Body)
		return jsonResponse(http.StatusCreated, `{
			"session_id": "auth-req-77",
			"qr_payload": "iden3comm://?request_uri=...",
			"expires_at": "2025-06-01T12:30:00Z"
		}`), nil
	}))

	challenge, err := adapter.Initiate(context.Background(), wallet, "https://emblem.example/callbacks/polygonid")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "http://verifier.test/v2/authentication/requests", captured.URL.String())
	assert.Equal(t, "secret-key", captured.Header.Get("X-API-Key"))
	var sent map[string]string
	require.NoError(t, json.Unmarshal(capturedBody, &sent))
	assert.Equal(t, wallet, sent["wallet"])
	assert.Equal(t, "https://emblem.example/callbacks/polygonid", sent["callback_url"])

	assert.Equal(t, "auth-req-77", challenge.ProviderSessionID)
	assert.Equal(t, "iden3comm://?request_uri=...", challenge.QRCodePayload)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), challenge.ExpiresAt)
}

func TestInitiateErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		category providers.ErrorCategory
	}{
		{"bad credentials", http.StatusUnauthorized, `{}`, providers.ErrorUnavailable},
		{"bad request", http.StatusBadRequest, `{"message":"wallet malformed"}`, providers.ErrorBadPayload},
		{"rate limited", http.StatusTooManyRequests, `{}`, providers.ErrorOutage},
		{"server error", http.StatusInternalServerError, `{}`, providers.ErrorOutage},
		{"teapot", http.StatusTeapot, `{}`, providers.ErrorInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			}))
			_, err := adapter.Initiate(context.Background(), wallet, "cb")
			require.Error(t, err)
			assert.Equal(t, tc.category, providers.CategoryOf(err))
		})
	}
}

func TestInitiateNetworkFailure(t *testing.T) {
	adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))
	_, err := adapter.Initiate(context.Background(), wallet, "cb")
	require.Error(t, err)
	assert.Equal(t, providers.ErrorOutage, providers.CategoryOf(err))
	assert.True(t, providers.IsRetryable(err))
}

func TestCompleteCallback(t *testing.T) {
	proofPayload := json.RawMessage(`{"jwz":"eyJhbGciOiJncm90aDE2In0..."}`)
	adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "sessionID=auth-req-77", req.URL.RawQuery)
		body, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, string(proofPayload), string(body))
		return jsonResponse(http.StatusOK, `{
			"verified": true,
			"did": "did:polygonid:polygon:main:2q5Ab...",
			"metadata": {"circuit": "credentialAtomicQuerySigV2"}
		}`), nil
	}))

	result, err := adapter.CompleteCallback(context.Background(), proofPayload, "auth-req-77")
	require.NoError(t, err)
	assert.Equal(t, "did:polygonid:polygon:main:2q5Ab...", result.DID)
	assert.Equal(t, "credentialAtomicQuerySigV2", result.Metadata["circuit"])
}

func TestCompleteCallbackFailures(t *testing.T) {
	payload := json.RawMessage(`{"jwz":"x"}`)

	t.Run("empty payload", func(t *testing.T) {
		adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("no request expected")
			return nil, nil
		}))
		_, err := adapter.CompleteCallback(context.Background(), nil, "s")
		assert.Equal(t, providers.ErrorBadPayload, providers.CategoryOf(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusNotFound, `{}`), nil
		}))
		_, err := adapter.CompleteCallback(context.Background(), payload, "gone")
		assert.Equal(t, providers.ErrorBadPayload, providers.CategoryOf(err))
	})

	t.Run("proof rejected", func(t *testing.T) {
		adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"verified": false}`), nil
		}))
		_, err := adapter.CompleteCallback(context.Background(), payload, "s")
		assert.Equal(t, providers.ErrorRejected, providers.CategoryOf(err))
		assert.False(t, providers.IsRetryable(err))
	})

	t.Run("rejected with provider message", func(t *testing.T) {
		adapter := NewWithClient("http://verifier.test", "k", doerFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnprocessableEntity, `{"message":"proof expired"}`), nil
		}))
		_, err := adapter.CompleteCallback(context.Background(), payload, "s")
		require.Error(t, err)
		assert.Equal(t, providers.ErrorRejected, providers.CategoryOf(err))
		assert.Contains(t, err.Error(), "proof expired")
	})
}
