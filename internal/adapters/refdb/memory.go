package refdb

import (
	"context"
	"sync"

	"github.com/halverson/dockeval/internal/domain/model"
)

// MemoryStore keeps the reference collection in process memory with a
// shared-then-exclusive lock discipline: concurrent readers, serialized
// writers, and copy-on-read snapshots so an in-progress append can never
// leak into a comparison matrix under construction.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.MetricRecord
	index   map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

var _ Store = (*MemoryStore)(nil)

// Append adds or supersedes a record, keyed by flight ID.
func (s *MemoryStore) Append(_ context.Context, rec model.MetricRecord) error {
	if rec.FlightID == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := rec.Clone()
	if i, ok := s.index[rec.FlightID]; ok {
		s.records[i] = clone
		return nil
	}
	s.index[rec.FlightID] = len(s.records)
	s.records = append(s.records, clone)
	return nil
}

// All returns a deep-copied snapshot in append order.
func (s *MemoryStore) All(_ context.Context) ([]model.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MetricRecord, len(s.records))
	for i := range s.records {
		out[i] = s.records[i].Clone()
	}
	return out, nil
}

// Get returns the record for a flight ID.
func (s *MemoryStore) Get(_ context.Context, flightID string) (model.MetricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[flightID]
	if !ok {
		return model.MetricRecord{}, ErrNotFound
	}
	return s.records[i].Clone(), nil
}

// Count reports the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// ReplaceAll swaps the whole collection atomically.
func (s *MemoryStore) ReplaceAll(_ context.Context, recs []model.MetricRecord) error {
	records := make([]model.MetricRecord, 0, len(recs))
	index := make(map[string]int, len(recs))
	for _, rec := range recs {
		if rec.FlightID == "" {
			return ErrMissingID
		}
		if i, ok := index[rec.FlightID]; ok {
			records[i] = rec.Clone()
			continue
		}
		index[rec.FlightID] = len(records)
		records = append(records, rec.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.index = index
	return nil
}
