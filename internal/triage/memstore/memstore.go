// Package memstore provides an in-memory implementation of triage.Store.
// It is not durable across restarts and is meant for dev and testing.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/linnemanlabs/outpost/internal/triage"
)

// Store holds assessments in memory behind a mutex. Records are copied in
// and out so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Assessment
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{records: make(map[string]*triage.Assessment)}
}

// Upsert inserts or fully replaces the record by ID.
func (s *Store) Upsert(_ context.Context, a *triage.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyAssessment(a)
	s.records[a.ID] = cp
	return nil
}

// GetByID retrieves one assessment by ID.
func (s *Store) GetByID(_ context.Context, id string) (*triage.Assessment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return copyAssessment(a), true, nil
}

// List returns all assessments, newest first.
func (s *Store) List(_ context.Context) ([]*triage.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*triage.Assessment, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, copyAssessment(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID // ULIDs are time-ordered; keep ties stable
	})
	return out, nil
}

// ListPending returns undelivered records (PENDING or FAILED), oldest first.
func (s *Store) ListPending(_ context.Context) ([]*triage.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*triage.Assessment
	for _, a := range s.records {
		if a.SyncStatus != triage.SyncSynced {
			out = append(out, copyAssessment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateSyncStatus changes only the sync status of one record.
func (s *Store) UpdateSyncStatus(_ context.Context, id string, status triage.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: no assessment %q", id)
	}
	a.SyncStatus = status
	return nil
}

func copyAssessment(a *triage.Assessment) *triage.Assessment {
	cp := *a
	if a.Suggestions != nil {
		cp.Suggestions = append([]string(nil), a.Suggestions...)
	}
	if a.DetectedVitals != nil {
		cp.DetectedVitals = make(map[string]string, len(a.DetectedVitals))
		for k, v := range a.DetectedVitals {
			cp.DetectedVitals[k] = v
		}
	}
	if a.ImageRef != nil {
		ref := *a.ImageRef
		cp.ImageRef = &ref
	}
	return &cp
}
