package records

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore is a Store backed by a map. Tests and local development
// use it in place of the external record store.
type InMemoryStore struct {
	mu       sync.Mutex
	items    map[string]CanonicalRecord
	order    []string
	upstream string

	now func() time.Time
}

// NewInMemoryStore returns an empty store whose PendingRecords matches
// against the given upstream actor.
func NewInMemoryStore(upstream string) *InMemoryStore {
	return &InMemoryStore{
		items:    make(map[string]CanonicalRecord),
		upstream: upstream,
		now:      time.Now,
	}
}

// Put inserts or replaces a record.
func (s *InMemoryStore) Put(rec CanonicalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.items[rec.ID] = rec
}

// Get returns a record by id.
func (s *InMemoryStore) Get(id string) (CanonicalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	return rec, ok
}

func (s *InMemoryStore) PendingRecords(_ context.Context) ([]CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CanonicalRecord
	for _, id := range s.order {
		rec := s.items[id]
		if rec.Status == StatusCleaned && rec.LastActor == s.upstream {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateRecord(_ context.Context, id string, update Update) error {
	if update.LastActor == "" {
		return ErrMissingActor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.items[id]
	if !ok {
		return fmt.Errorf("records: no record %q", id)
	}
	if update.Status != "" {
		rec.Status = update.Status
	}
	if update.Verdict != "" {
		rec.Verdict = update.Verdict
	}
	rec.NextAction = update.NextAction
	rec.LastActor = update.LastActor
	rec.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	s.items[id] = rec
	return nil
}
