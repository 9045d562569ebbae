package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Save stores a copy of record, replacing any record with the same ID.
func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	if err := validateRecord("session memory", record); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[record.ID] = *record
	s.mu.Unlock()
	return nil
}

// Load returns a copy of the record with id. Expired records are evicted.
func (s *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if record.Expired(s.now()) {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return &record, nil
}

// Len returns the number of records held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
