package server

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory. It is the default store and
// loses everything on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []HistoryRecord // oldest first
	maxRecords int
}

// NewMemoryStore creates a MemoryStore holding at most maxRecords records;
// maxRecords <= 0 means unbounded.
func NewMemoryStore(maxRecords int) *MemoryStore {
	return &MemoryStore{maxRecords: maxRecords}
}

func (s *MemoryStore) Append(_ context.Context, rec HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == rec.ID {
			return ErrRecordExists
		}
	}
	s.records = append(s.records, rec)
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		s.records = append([]HistoryRecord(nil), s.records[len(s.records)-s.maxRecords:]...)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (HistoryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return HistoryRecord{}, false, nil
}

func (s *MemoryStore) Prune(_ context.Context, olderThan time.Time, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	kept := s.records[:0]
	for _, rec := range s.records {
		if !olderThan.IsZero() && rec.CreatedAt.Before(olderThan) {
			continue
		}
		kept = append(kept, rec)
	}
	if keep > 0 && len(kept) > keep {
		kept = kept[len(kept)-keep:]
	}
	s.records = append([]HistoryRecord(nil), kept...)
	return before - len(s.records), nil
}

func (s *MemoryStore) Close() error { return nil }
