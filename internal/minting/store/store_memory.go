package store

import (
	"context"
	"sort"
	"sync"

	"emblem/internal/minting/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// InMemoryStore keeps mint records in a map. Used in tests and when running
// without a database. All reads return deep copies.
//
// Create enforces the same uniqueness predicate as the partial index in
// PostgreSQL: at most one live record per (wallet, badge type) pair.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.MintID]*models.MintRecord
}

func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.MintID]*models.MintRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.MintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return sentinel.ErrConflict
	}
	if record.Live() {
		for _, existing := range s.records {
			if existing.Wallet == record.Wallet && existing.BadgeTypeID == record.BadgeTypeID && existing.Live() {
				return sentinel.ErrConflict
			}
		}
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, mintID id.MintID) (*models.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[mintID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) FindLive(_ context.Context, wallet id.WalletAddress, badgeTypeID id.BadgeTypeID) (*models.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.Wallet == wallet && record.BadgeTypeID == badgeTypeID && record.Live() {
			return record.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByWallet(_ context.Context, wallet id.WalletAddress, filter *models.RecordFilter) ([]*models.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.MintRecord
	for _, record := range s.records {
		if record.Wallet != wallet {
			continue
		}
		if filter != nil {
			if filter.Status != nil && record.Status != *filter.Status {
				continue
			}
			if filter.Revoked != nil && record.IsRevoked != *filter.Revoked {
				continue
			}
		}
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.MintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.ID] = record.Clone()
	return nil
}
