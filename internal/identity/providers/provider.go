// Package providers defines the uniform contract every identity-verification
// provider implements, plus the registry the verification session manager
// resolves adapters from. Adapters hold no session state of their own; the
// lifecycle lives in the verification module.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	id "emblem/pkg/domain"
)

// Challenge describes what the user must do to complete verification:
// follow a URL, scan a code, or both. ProviderSessionID correlates the later
// callback with the session we opened.
type Challenge struct {
	ProviderSessionID string
	VerificationURL   string
	QRCodePayload     string
	// ExpiresAt is the provider's own expiry hint; zero when the provider
	// gives none and the session manager applies its default window.
	ExpiresAt time.Time
}

// CallbackResult is the resolved outcome of a verification: the decentralized
// identifier the provider attests to, plus free-form provider metadata kept
// on the session for audit.
type CallbackResult struct {
	DID      string
	Metadata map[string]any
}

// Adapter is the capability every identity provider integration implements.
//
// Initiate opens a verification with the provider and returns the challenge
// the wallet owner must complete. CompleteCallback consumes the provider's
// callback payload and resolves it to an identifier, returning an
// *AdapterError with a normalized category on failure.
type Adapter interface {
	// Name is the stable registry key ("stub", "polygonid", "idos"). Badge
	// rules reference providers by this name.
	Name() string

	// IsAvailable reports whether the adapter has the credentials and
	// configuration it needs. Unavailable adapters stay registered so badge
	// rules referencing them fail with a provider error rather than a
	// config lookup miss.
	IsAvailable() bool

	Initiate(ctx context.Context, wallet id.WalletAddress, callbackTarget string) (*Challenge, error)

	CompleteCallback(ctx context.Context, payload json.RawMessage, providerSessionID string) (*CallbackResult, error)
}

// HTTPDoer lets tests inject transport behavior into HTTP-backed adapters.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry holds all configured adapters keyed by name. It is populated once
// during startup and read-only afterwards; it is not safe for concurrent
// registration.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, rejecting duplicate names.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("identity provider %q already registered", name)
	}
	r.adapters[name] = a
	return nil
}

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered adapter names sorted for stable logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns the names of adapters currently able to take traffic.
func (r *Registry) Available() []string {
	var names []string
	for name, a := range r.adapters {
		if a.IsAvailable() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
