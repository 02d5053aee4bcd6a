package idempotency

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory for the memory store backend and tests.
// Keys are not shared across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) lookup(id string) *Record {
	if record, ok := s.records[id]; ok {
		return &record
	}
	return nil
}

func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, write, err := reserve(s.lookup(id), key, fingerprint, now.UTC(), effectiveTTL(ttl))
	if err != nil {
		return Reservation{}, err
	}
	if write {
		s.records[id] = res.Record
	}
	return res, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := complete(s.lookup(id), key, fingerprint, resp, now.UTC(), effectiveTTL(ttl))
	if err != nil {
		return err
	}
	s.records[id] = record
	return nil
}

// Release drops the reservation when it still belongs to fingerprint.
func (s *MemoryStore) Release(_ context.Context, key, fingerprint string) error {
	id := documentID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[id]; ok && record.Fingerprint == fingerprint {
		delete(s.records, id)
	}
	return nil
}

// CleanupExpired removes up to limit expired records, oldest expiry first.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, record := range s.records {
		if record.Expired(now) {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return s.records[expired[i]].ExpiresAt.Before(s.records[expired[j]].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, id := range expired {
		delete(s.records, id)
	}
	return len(expired), nil
}
