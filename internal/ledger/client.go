package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	ledgercontracts "emblem/contracts/ledger"
	id "emblem/pkg/domain"
)

// HTTPDoer lets tests inject transport behavior into the client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client speaks to the ledger node sidecar over its HTTP API, translating
// wire receipts and error replies into the adapter contract.
type Client struct {
	baseURL    string
	token      string
	httpClient HTTPDoer
}

var _ Adapter = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, token, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL, token string, client HTTPDoer) *Client {
	return &Client{baseURL: baseURL, token: token, httpClient: client}
}

func (c *Client) Mint(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (*MintResult, error) {
	body, err := json.Marshal(ledgercontracts.MintRequest{
		WalletAddress: string(wallet),
		BadgeTypeID:   badgeTypeID,
	})
	if err != nil {
		return nil, NewLedgerError(FailureUnknown, "failed to marshal mint request", err)
	}

	respBody, err := c.call(ctx, http.MethodPost, c.baseURL+"/v1/mints", body)
	if err != nil {
		return nil, err
	}

	var receipt ledgercontracts.MintReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, NewLedgerError(FailureUnknown, "failed to parse mint receipt", err)
	}
	if receipt.TransactionHash == "" {
		return nil, NewLedgerError(FailureUnknown, "mint receipt missing transaction hash", nil)
	}
	return &MintResult{
		TokenID:         receipt.TokenID,
		TxHash:          receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
		ContractAddress: receipt.ContractAddress,
		GasUsed:         receipt.GasUsed,
	}, nil
}

func (c *Client) TokenOf(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (int64, bool, error) {
	query := url.Values{
		"wallet_address": []string{string(wallet)},
		"badge_type_id":  []string{strconv.FormatInt(badgeTypeID, 10)},
	}
	respBody, err := c.call(ctx, http.MethodGet, c.baseURL+"/v1/tokens?"+query.Encode(), nil)
	if err != nil {
		return 0, false, err
	}

	var answer ledgercontracts.TokenAnswer
	if err := json.Unmarshal(respBody, &answer); err != nil {
		return 0, false, NewLedgerError(FailureUnknown, "failed to parse token answer", err)
	}
	return answer.TokenID, answer.Found, nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	return err
}

// call performs one request against the node. Non-2xx answers carrying a
// classified ErrorReply become LedgerErrors of that kind; everything else is
// classified by reachability.
func (c *Client) call(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, NewLedgerError(FailureUnknown, "failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewLedgerError(FailureNetwork, "failed to reach ledger node", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewLedgerError(FailureNetwork, "failed to read ledger response", err)
	}

	if httpResp.StatusCode == http.StatusOK || httpResp.StatusCode == http.StatusCreated {
		return respBody, nil
	}

	var reply ledgercontracts.ErrorReply
	if err := json.Unmarshal(respBody, &reply); err == nil && reply.Code != "" {
		le := NewLedgerError(KindFromCode(reply.Code), reply.Message, nil)
		le.TxHash = reply.TransactionHash
		return nil, le
	}
	if httpResp.StatusCode >= 500 {
		return nil, NewLedgerError(FailureNetwork, fmt.Sprintf("ledger node unavailable (status %d)", httpResp.StatusCode), nil)
	}
	return nil, NewLedgerError(FailureUnknown, fmt.Sprintf("unexpected status %d", httpResp.StatusCode), nil)
}
