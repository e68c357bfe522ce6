package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "emblem/pkg/domain"
)

type fakeAdapter struct {
	name      string
	available bool
}

func (f *fakeAdapter) Name() string      { return f.name }
func (f *fakeAdapter) IsAvailable() bool { return f.available }
func (f *fakeAdapter) Initiate(context.Context, id.WalletAddress, string) (*Challenge, error) {
	return &Challenge{ProviderSessionID: f.name + "-session"}, nil
}
func (f *fakeAdapter) CompleteCallback(context.Context, json.RawMessage, string) (*CallbackResult, error) {
	return &CallbackResult{DID: "did:fake:" + f.name}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeAdapter{name: "polygonid", available: true}))
	require.NoError(t, registry.Register(&fakeAdapter{name: "idos", available: false}))

	err := registry.Register(&fakeAdapter{name: "polygonid"})
	require.Error(t, err, "duplicate registration must be rejected")

	adapter, ok := registry.Get("polygonid")
	require.True(t, ok)
	assert.Equal(t, "polygonid", adapter.Name())

	_, ok = registry.Get("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"idos", "polygonid"}, registry.Names())
	assert.Equal(t, []string{"polygonid"}, registry.Available())
}

func TestAdapterErrorRetryClassification(t *testing.T) {
	cases := []struct {
		category  ErrorCategory
		retryable bool
	}{
		{ErrorTimeout, true},
		{ErrorOutage, true},
		{ErrorUnavailable, false},
		{ErrorRejected, false},
		{ErrorBadPayload, false},
		{ErrorInternal, false},
	}
	for _, tc := range cases {
		err := NewAdapterError(tc.category, "idos", "boom", nil)
		assert.Equal(t, tc.retryable, err.Retryable, "category %s", tc.category)
		assert.Equal(t, tc.retryable, IsRetryable(err), "category %s", tc.category)
	}
}

func TestAdapterErrorWrapping(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewAdapterError(ErrorOutage, "polygonid", "initiate failed", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "polygonid")
	assert.Contains(t, err.Error(), "outage")

	wrapped := fmt.Errorf("session handling: %w", err)
	assert.Equal(t, ErrorOutage, CategoryOf(wrapped))
	assert.True(t, IsRetryable(wrapped))

	assert.Equal(t, ErrorInternal, CategoryOf(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
