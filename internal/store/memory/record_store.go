// Package memory provides an in-memory record store for development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/siteroast/siteroast/internal/roast"
)

// RecordStore keeps roast records in memory.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]roast.Record
}

var _ roast.RecordStore = (*RecordStore)(nil)

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]roast.Record),
	}
}

// Insert stores a new record. Records are append-only; duplicate IDs fail.
func (s *RecordStore) Insert(_ context.Context, record roast.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return errors.New("record already exists")
	}
	s.records[record.ID] = record
	return nil
}

// Get fetches a record by ID.
func (s *RecordStore) Get(_ context.Context, id string) (roast.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return roast.Record{}, roast.ErrRecordNotFound
	}
	return record, nil
}

// ListRecent returns up to limit records, newest first.
func (s *RecordStore) ListRecent(_ context.Context, limit int) ([]roast.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sortedDesc(func(roast.Record) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListByVisitor returns records for one visitor, newest first.
func (s *RecordStore) ListByVisitor(_ context.Context, visitorID string) ([]roast.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedDesc(func(r roast.Record) bool { return r.VisitorID == visitorID }), nil
}

// Len reports the number of stored records, for test assertions.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// sortedDesc copies matching records sorted by creation time, newest first.
// Caller holds at least a read lock.
func (s *RecordStore) sortedDesc(match func(roast.Record) bool) []roast.Record {
	var out []roast.Record
	for _, record := range s.records {
		if match(record) {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
