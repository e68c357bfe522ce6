package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"emblem/internal/verification/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map. Used in tests and when running
// without a database. All reads return deep copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func New() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *InMemoryStore) GetByProviderRef(_ context.Context, provider, ref string) (*models.Session, error) {
	if ref == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *models.Session
	for _, session := range s.sessions {
		if session.Provider != provider || session.ProviderRef != ref {
			continue
		}
		if match == nil || session.CreatedAt.After(match.CreatedAt) {
			match = session
		}
	}
	if match == nil {
		return nil, sentinel.ErrNotFound
	}
	return match.Clone(), nil
}

func (s *InMemoryStore) ListByWallet(_ context.Context, wallet id.WalletAddress, filter *models.SessionFilter) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Session
	for _, session := range s.sessions {
		if session.Wallet != wallet {
			continue
		}
		if filter != nil {
			if filter.Provider != nil && session.Provider != *filter.Provider {
				continue
			}
			if filter.Status != nil && session.Status != *filter.Status {
				continue
			}
		}
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) FindUsable(_ context.Context, wallet id.WalletAddress, provider string, now time.Time) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Session
	for _, session := range s.sessions {
		if session.Wallet != wallet || session.Provider != provider {
			continue
		}
		if !session.IsUsable(now) {
			continue
		}
		if best == nil || completedAfter(session, best) {
			best = session
		}
	}
	if best == nil {
		return nil, sentinel.ErrNotFound
	}
	return best.Clone(), nil
}

func completedAfter(a, b *models.Session) bool {
	if a.CompletedAt == nil || b.CompletedAt == nil {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.CompletedAt.After(*b.CompletedAt)
}

func (s *InMemoryStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemoryStore) ExpireDue(_ context.Context, now time.Time, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Session
	for _, session := range s.sessions {
		if session.IsExpiredPending(now) {
			due = append(due, session)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*models.Session, 0, len(due))
	for _, session := range due {
		if err := session.Expire(now); err != nil {
			return out, err
		}
		out = append(out, session.Clone())
	}
	return out, nil
}
