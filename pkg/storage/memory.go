package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Intended for tests and one-shot
// CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	history map[string][]HistoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		history: make(map[string][]HistoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Replace implements Store.
func (s *MemoryStore) Replace(ctx context.Context, rec *Record) error {
	if rec == nil || rec.DossierID == "" {
		return NewStorageError("memory", "replace", fmt.Errorf("record requires a dossier id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[rec.DossierID]; ok && cur.InputVersion > rec.InputVersion {
		return fmt.Errorf("%w: dossier %s has version %d, got %d",
			ErrStaleVersion, rec.DossierID, cur.InputVersion, rec.InputVersion)
	}

	c := copyRecord(rec)
	if c.StoredAt.IsZero() {
		c.StoredAt = s.now()
	}
	s.records[c.DossierID] = c
	s.history[c.DossierID] = append(s.history[c.DossierID], historyEntry(c))
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, dossierID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[dossierID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, dossierID)
	}
	return copyRecord(rec), nil
}

// History implements Store.
func (s *MemoryStore) History(ctx context.Context, dossierID string, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[dossierID]
	out := make([]HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Dossiers implements Store.
func (s *MemoryStore) Dossiers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for id := range s.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entries := range s.history {
		kept := entries[:0]
		for _, h := range entries {
			if h.StoredAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			delete(s.history, id)
			continue
		}
		s.history[id] = kept
	}
	return deleted, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func copyRecord(rec *Record) *Record {
	c := *rec
	c.Results = append(c.Results[:0:0], rec.Results...)
	return &c
}
