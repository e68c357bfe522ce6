package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgercontracts "emblem/contracts/ledger"
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

func TestMintSubmitsAndParsesReceipt(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "node-key", doerFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "http://ledger.test/v1/mints", req.URL.String())
		assert.Equal(t, "Bearer node-key", req.Header.Get("Authorization"))

		var mintReq ledgercontracts.MintRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&mintReq))
		assert.Equal(t, wallet, mintReq.WalletAddress)
		assert.Equal(t, int64(7), mintReq.BadgeTypeID)

		return jsonResponse(http.StatusCreated, `{
			"token_id": 42,
			"transaction_hash": "0xabc123",
			"block_number": 1000123,
			"contract_address": "0x0000000000000000000000000000000000b4d9e5",
			"gas_used": 80042
		}`), nil
	}))

	result, err := client.Mint(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.TokenID)
	assert.Equal(t, "0xabc123", result.TxHash)
	assert.Equal(t, int64(1000123), result.BlockNumber)
	assert.Equal(t, "0x0000000000000000000000000000000000b4d9e5", result.ContractAddress)
	assert.Equal(t, int64(80042), result.GasUsed)
}

func TestMintClassifiesErrorReplies(t *testing.T) {
	cases := []struct {
		code      string
		kind      FailureKind
		retryable bool
	}{
		{"insufficient_funds", FailureInsufficientFunds, false},
		{"reverted", FailureReverted, false},
		{"network_unreachable", FailureNetwork, true},
		{"nonce_conflict", FailureNonceConflict, true},
		{"solar_flare", FailureUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnprocessableEntity,
					`{"code":"`+tc.code+`","message":"mint rejected","transaction_hash":"0xdead"}`), nil
			}))

			_, err := client.Mint(context.Background(), wallet, 7)
			require.Error(t, err)

			var le *LedgerError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tc.kind, le.Kind)
			assert.Equal(t, "mint rejected", le.Message)
			assert.Equal(t, "0xdead", le.TxHash)
			assert.Equal(t, tc.retryable, IsRetryable(err))
			assert.Equal(t, "0xdead", TxHashOf(err))
		})
	}
}

func TestMintTransportFailureIsNetworkKind(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := client.Mint(context.Background(), wallet, 7)
	require.Error(t, err)
	assert.Equal(t, FailureNetwork, KindOf(err))
	assert.True(t, IsRetryable(err))
}

func TestMintServerErrorWithoutReplyIsNetworkKind(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "upstream node crashed"), nil
	}))

	_, err := client.Mint(context.Background(), wallet, 7)
	require.Error(t, err)
	assert.Equal(t, FailureNetwork, KindOf(err))
}

func TestMintReceiptWithoutHashRejected(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"token_id": 9}`), nil
	}))

	_, err := client.Mint(context.Background(), wallet, 7)
	require.Error(t, err)
	assert.Equal(t, FailureUnknown, KindOf(err))
}

func TestTokenOfQueriesByWalletAndBadge(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/v1/tokens", req.URL.Path)
		assert.Equal(t, wallet, req.URL.Query().Get("wallet_address"))
		assert.Equal(t, "7", req.URL.Query().Get("badge_type_id"))
		return jsonResponse(http.StatusOK, `{"found": true, "token_id": 42}`), nil
	}))

	tokenID, ok, err := client.TokenOf(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), tokenID)
}

func TestTokenOfReportsAbsence(t *testing.T) {
	client := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"found": false}`), nil
	}))

	_, ok, err := client.TokenOf(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealthReflectsNodeState(t *testing.T) {
	healthy := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/healthz", req.URL.Path)
		return jsonResponse(http.StatusOK, `{"status":"ok"}`), nil
	}))
	require.NoError(t, healthy.Health(context.Background()))

	down := NewClientWithHTTP("http://ledger.test", "", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))
	err := down.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, FailureNetwork, KindOf(err))
}
