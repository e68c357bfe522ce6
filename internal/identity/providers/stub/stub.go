// Package stub provides a simulated identity provider for development and
// tests: configurable latency, configurable approval rate, deterministic when
// seeded.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"emblem/internal/identity/providers"
	id "emblem/pkg/domain"
)

const Name = "stub"

// Config tunes the simulation.
type Config struct {
	// Latency is slept on every call, honoring context cancellation.
	Latency time.Duration
	// SuccessRate in [0,1] is the probability a callback resolves a DID when
	// the payload does not force an outcome.
	SuccessRate float64
}

// Adapter simulates a verification provider.
type Adapter struct {
	cfg Config

	// rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rng *rand.Rand
}

// New constructs a stub adapter around an injected random source so tests
// control the outcome sequence.
func New(cfg Config, rng *rand.Rand) *Adapter {
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	return &Adapter{cfg: cfg, rng: rng}
}

// NewSeeded constructs a stub adapter from a plain seed.
func NewSeeded(cfg Config, seed int64) *Adapter {
	return New(cfg, rand.New(rand.NewSource(seed)))
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsAvailable() bool { return true }

func (a *Adapter) Initiate(ctx context.Context, wallet id.WalletAddress, callbackTarget string) (*providers.Challenge, error) {
	if err := a.simulateLatency(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	sessionID := MockSessionID(a.rng)
	a.mu.Unlock()

	return &providers.Challenge{
		ProviderSessionID: sessionID,
		VerificationURL:   fmt.Sprintf("https://verify.stub.invalid/session/%s?wallet=%s", sessionID, wallet),
		QRCodePayload:     fmt.Sprintf("emblem-stub:%s:%s", sessionID, callbackTarget),
	}, nil
}

// stubCallback is the payload shape the stub understands. Outcome forces a
// result ("approved"/"rejected") so tests stay deterministic without seed
// bookkeeping; DID overrides the generated identifier.
type stubCallback struct {
	Outcome string `json:"outcome"`
	DID     string `json:"did"`
}

func (a *Adapter) CompleteCallback(ctx context.Context, payload json.RawMessage, providerSessionID string) (*providers.CallbackResult, error) {
	if err := a.simulateLatency(ctx); err != nil {
		return nil, err
	}

	var cb stubCallback
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &cb); err != nil {
			return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, "callback payload is not valid JSON", err)
		}
	}

	switch cb.Outcome {
	case "rejected":
		return nil, providers.NewAdapterError(providers.ErrorRejected, Name, "identity claims rejected", nil)
	case "approved", "":
		// fall through to the draw unless forced approved
	default:
		return nil, providers.NewAdapterError(providers.ErrorBadPayload, Name, fmt.Sprintf("unknown outcome %q", cb.Outcome), nil)
	}

	a.mu.Lock()
	approved := cb.Outcome == "approved" || a.rng.Float64() < a.cfg.SuccessRate
	did := cb.DID
	if did == "" {
		did = MockDID(a.rng)
	}
	a.mu.Unlock()

	if !approved {
		return nil, providers.NewAdapterError(providers.ErrorRejected, Name, "identity claims rejected", nil)
	}

	return &providers.CallbackResult{
		DID: did,
		Metadata: map[string]any{
			"provider_session_id": providerSessionID,
			"simulated":           true,
		},
	}, nil
}

func (a *Adapter) simulateLatency(ctx context.Context) error {
	if a.cfg.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(a.cfg.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return providers.NewAdapterError(providers.ErrorTimeout, Name, "canceled while simulating provider latency", ctx.Err())
	}
}

// MockDID generates a plausible decentralized identifier from the given
// source. Free function so callers can mint identifiers without an Adapter.
func MockDID(rng *rand.Rand) string {
	return fmt.Sprintf("did:stub:main:%016x", rng.Uint64())
}

// MockSessionID generates a provider-session identifier from the given source.
func MockSessionID(rng *rand.Rand) string {
	return fmt.Sprintf("stub-%012x", rng.Uint64()&0xffffffffffff)
}
