package wallet

import (
	"context"
	"sync"
	"time"

	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// InMemoryStore keeps wallet users in memory for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	wallets map[id.WalletAddress]*User
}

// NewInMemoryStore constructs an empty in-memory wallet store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{wallets: make(map[id.WalletAddress]*User)}
}

func (s *InMemoryStore) EnsureExists(_ context.Context, address id.WalletAddress, seenAt time.Time, userAgent string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.wallets[address]
	if !ok {
		user = &User{Address: address, FirstSeenAt: seenAt, LastSeenAt: seenAt, UserAgent: userAgent}
		s.wallets[address] = user
		copyUser := *user
		return &copyUser, nil
	}
	user.LastSeenAt = seenAt
	if userAgent != "" {
		user.UserAgent = userAgent
	}
	copyUser := *user
	return &copyUser, nil
}

func (s *InMemoryStore) Get(_ context.Context, address id.WalletAddress) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.wallets[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyUser := *user
	return &copyUser, nil
}

func (s *InMemoryStore) SetDID(_ context.Context, address id.WalletAddress, did, provider string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.wallets[address]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.DID = did
	user.DIDProvider = provider
	user.LastSeenAt = at
	return nil
}
