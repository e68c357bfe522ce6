package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"emblem/pkg/platform/sentinel"
)

// InMemoryStore keeps outbox records in insertion order. Used in tests and
// when running without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.clone())
	return nil
}

func (s *InMemoryStore) FetchUnprocessed(_ context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if !r.IsPending() {
			continue
		}
		out = append(out, r.clone())
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID != id {
			continue
		}
		if !r.IsPending() {
			return sentinel.ErrNotFound
		}
		t := processedAt
		r.ProcessedAt = &t
		return nil
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if r.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*Record
	var deleted int64
	for _, r := range s.records {
		if r.ProcessedAt != nil && r.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}
