package store

import (
	"context"
	"sync"

	"github.com/fleetvolt/battsched/core/model"
)

// MemoryStore is an in-memory Store. It is used in tests and for ephemeral
// agent runs where durability across restarts is not needed.
type MemoryStore struct {
	mu      sync.RWMutex
	active  map[string]model.Schedule
	history map[string][]model.ExecutionRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:  make(map[string]model.Schedule),
		history: make(map[string][]model.ExecutionRecord),
	}
}

// PutActive replaces the active schedule for the device under one lock
// acquisition, so readers observe either the old or the new schedule.
func (s *MemoryStore) PutActive(_ context.Context, sched model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched.Status = model.StatusActive
	s.active[sched.DeviceID] = sched
	return nil
}

// GetActive returns the active schedule for the device.
func (s *MemoryStore) GetActive(_ context.Context, deviceID string) (model.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.active[deviceID]
	if !ok {
		return model.Schedule{}, ErrNotFound
	}
	return sched, nil
}

// RecordExecution appends the record to the device history.
func (s *MemoryStore) RecordExecution(_ context.Context, deviceID string, rec model.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[deviceID] = append(s.history[deviceID], rec)
	return nil
}

// History returns execution records, most recent first.
func (s *MemoryStore) History(_ context.Context, deviceID string, limit int) ([]model.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.history[deviceID]
	out := make([]model.ExecutionRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, recs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
