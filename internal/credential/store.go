// Package credential tracks cooldown state for a pool of rate-limited credentials.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/loopguard/internal/core/domain"
)

// Store persists cooldown records. Update must be atomic per credential;
// distinct credentials may be updated concurrently.
type Store interface {
	// Get returns the record, or a zero record carrying id if none exists
	Get(ctx context.Context, id string) (domain.CooldownRecord, error)

	// Update applies fn to the record under a per-credential guarantee of atomicity
	Update(
		ctx context.Context,
		id string,
		fn func(rec *domain.CooldownRecord) error,
	) (domain.CooldownRecord, error)

	// Delete removes the record
	Delete(ctx context.Context, id string) error
}

// RecordRetention is how long an idle record outlives its cooldown, so the
// consecutive failure count survives short gaps between failures.
const RecordRetention = 24 * time.Hour

type memEntry struct {
	mu   sync.Mutex
	rec  domain.CooldownRecord
	gone bool
}

// MemoryStore keeps records in process with one lock per credential.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryStore) entry(id string) *memEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &memEntry{rec: domain.CooldownRecord{CredentialID: id}}
		s.entries[id] = e
	}
	return e
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.CooldownRecord, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return domain.CooldownRecord{CredentialID: id}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

func (s *MemoryStore) Update(
	ctx context.Context,
	id string,
	fn func(rec *domain.CooldownRecord) error,
) (domain.CooldownRecord, error) {
	e := s.entry(id)
	e.mu.Lock()
	for e.gone {
		e.mu.Unlock()
		e = s.entry(id)
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	rec := e.rec
	if err := fn(&rec); err != nil {
		return e.rec, err
	}
	rec.CredentialID = id
	e.rec = rec
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.mu.Lock()
		e.gone = true
		e.mu.Unlock()
		delete(s.entries, id)
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SweepIdle removes records untouched since cutoff whose cooldown has ended
// by then. It returns the number of records removed.
func (s *MemoryStore) SweepIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		e.mu.Lock()
		idle := e.rec.UpdatedAt.Before(cutoff) && !e.rec.CooldownUntil.After(cutoff)
		if idle {
			e.gone = true
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}
