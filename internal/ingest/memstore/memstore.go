// Package memstore is the in-memory ingest.Store, used in tests and for
// running the central service without Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/outpost/internal/ingest"
)

// Store keeps records in a mutex-guarded map.
type Store struct {
	mu      sync.Mutex
	records map[string]*ingest.StoredRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*ingest.StoredRecord)}
}

func (s *Store) InsertIfAbsent(ctx context.Context, rec *ingest.StoredRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return false, nil
	}
	s.records[rec.ID] = copyRecord(rec)
	return true, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*ingest.StoredRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return copyRecord(rec), true, nil
}

func (s *Store) List(ctx context.Context) ([]*ingest.StoredRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ingest.StoredRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func copyRecord(rec *ingest.StoredRecord) *ingest.StoredRecord {
	cp := *rec
	if rec.Suggestions != nil {
		cp.Suggestions = append([]string(nil), rec.Suggestions...)
	}
	if rec.ImageURI != nil {
		uri := *rec.ImageURI
		cp.ImageURI = &uri
	}
	return &cp
}
