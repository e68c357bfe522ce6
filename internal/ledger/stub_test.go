package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubMintsSequentialTokens(t *testing.T) {
	stub := NewStub(StubConfig{})

	first, err := stub.Mint(context.Background(), wallet, 7)
	require.NoError(t, err)
	second, err := stub.Mint(context.Background(), "0x52908400098527886e0f7030069857d2e4169ee7", 7)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.TokenID)
	assert.Equal(t, int64(2), second.TokenID)
	assert.Greater(t, second.BlockNumber, first.BlockNumber)
	assert.Equal(t, stubContractAddress, first.ContractAddress)
	assert.Len(t, first.TxHash, 2+64)
	assert.NotEqual(t, first.TxHash, second.TxHash)
}

func TestStubTxHashIsDeterministic(t *testing.T) {
	a := NewStub(StubConfig{})
	b := NewStub(StubConfig{})

	first, err := a.Mint(context.Background(), wallet, 7)
	require.NoError(t, err)
	second, err := b.Mint(context.Background(), wallet, 7)
	require.NoError(t, err)

	assert.Equal(t, first.TxHash, second.TxHash)
}

func TestStubTokenOfRecallsMints(t *testing.T) {
	stub := NewStub(StubConfig{})

	_, ok, err := stub.TokenOf(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	minted, err := stub.Mint(context.Background(), wallet, 7)
	require.NoError(t, err)

	tokenID, ok, err := stub.TokenOf(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, minted.TokenID, tokenID)

	// A different badge type is a different token line.
	_, ok, err = stub.TokenOf(context.Background(), wallet, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStubForcedFailure(t *testing.T) {
	stub := NewStub(StubConfig{FailKind: FailureInsufficientFunds})

	_, err := stub.Mint(context.Background(), wallet, 7)
	require.Error(t, err)
	assert.Equal(t, FailureInsufficientFunds, KindOf(err))
	assert.False(t, IsRetryable(err))

	// Failed submissions never reach the event log.
	_, ok, err := stub.TokenOf(context.Background(), wallet, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStubLatencyHonorsContext(t *testing.T) {
	stub := NewStub(StubConfig{Latency: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := stub.Mint(ctx, wallet, 7)
	require.Error(t, err)
	assert.Equal(t, FailureNetwork, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
