package store

import (
	"context"
	"sort"
	"sync"

	"emblem/internal/badge/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// Error Contract:
// - GetByID / GetByKey return sentinel.ErrNotFound when no badge type exists
// - Create returns sentinel.ErrConflict on a duplicate key or ledger id
// - Update returns sentinel.ErrNotFound when the row is gone
// - Infrastructure failures come back wrapped with context

// InMemoryStore keeps badge types in memory for tests and single-node runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.BadgeTypeID]*models.BadgeType
	byKey map[string]id.BadgeTypeID
}

// New constructs an empty in-memory badge type store.
func New() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.BadgeTypeID]*models.BadgeType),
		byKey: make(map[string]id.BadgeTypeID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, badge *models.BadgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[badge.Key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[badge.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.LedgerID == badge.LedgerID {
			return sentinel.ErrConflict
		}
	}
	s.byID[badge.ID] = badge.Clone()
	s.byKey[badge.Key] = badge.ID
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	badge, ok := s.byID[badgeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return badge.Clone(), nil
}

func (s *InMemoryStore) GetByKey(_ context.Context, key string) (*models.BadgeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	badgeID, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[badgeID].Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, filter *models.BadgeTypeFilter) ([]*models.BadgeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var badges []*models.BadgeType
	for _, badge := range s.byID {
		if filter != nil {
			if filter.ActiveOnly && !badge.IsActive {
				continue
			}
			if filter.IssuerID != nil && badge.IssuerID != *filter.IssuerID {
				continue
			}
		}
		badges = append(badges, badge.Clone())
	}
	// Map iteration order is random; keep listings stable for callers.
	sort.Slice(badges, func(i, j int) bool { return badges[i].Key < badges[j].Key })
	return badges, nil
}

func (s *InMemoryStore) Update(_ context.Context, badge *models.BadgeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[badge.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Key and ledger id are immutable; keep the index honest regardless.
	badge.Key = existing.Key
	badge.LedgerID = existing.LedgerID
	s.byID[badge.ID] = badge.Clone()
	return nil
}
