// Package session holds the in-memory entity collections mutated by loop operations.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/vietddude/loopguard/internal/core/domain"
)

// Snapshot is one named collection of entities (e.g. "goals").
// Entities are unique by id; insertion order is kept for display.
type Snapshot struct {
	name     string
	entities map[string]*domain.Entity
	order    []string
	dirty    bool
	activity []domain.Activity
}

// NewSnapshot creates an empty collection.
func NewSnapshot(name string) *Snapshot {
	return &Snapshot{
		name:     name,
		entities: make(map[string]*domain.Entity),
	}
}

// Name returns the collection name.
func (s *Snapshot) Name() string { return s.name }

// Len returns the number of entities.
func (s *Snapshot) Len() int { return len(s.entities) }

// Get returns a copy of the entity with the given id.
func (s *Snapshot) Get(id string) (domain.Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return domain.Entity{}, false
	}
	return *e, true
}

// IDs returns entity ids in insertion order.
func (s *Snapshot) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entities returns copies of all entities in insertion order.
func (s *Snapshot) Entities() []domain.Entity {
	out := make([]domain.Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entities[id])
	}
	return out
}

// Dirty reports whether the collection changed since the last MarkClean.
// The persistence collaborator reads it to decide what to flush.
func (s *Snapshot) Dirty() bool { return s.dirty }

// MarkClean clears the dirty flag after a flush.
func (s *Snapshot) MarkClean() { s.dirty = false }

// Activity returns a copy of the audit trail.
func (s *Snapshot) Activity() []domain.Activity {
	out := make([]domain.Activity, len(s.activity))
	copy(out, s.activity)
	return out
}

func (s *Snapshot) put(e *domain.Entity) {
	if _, exists := s.entities[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = e
}

func (s *Snapshot) remove(id string) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

type snapshotJSON struct {
	Name     string            `json:"name"`
	Entities []domain.Entity   `json:"entities"`
	Activity []domain.Activity `json:"activity,omitempty"`
}

// MarshalJSON encodes the collection with entities in insertion order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Name:     s.name,
		Entities: s.Entities(),
		Activity: s.activity,
	})
}

// UnmarshalJSON decodes a collection. Duplicate ids are rejected.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fresh := NewSnapshot(raw.Name)
	for i := range raw.Entities {
		e := raw.Entities[i]
		if e.ID == "" {
			return fmt.Errorf("entity %d has no id", i)
		}
		if _, dup := fresh.entities[e.ID]; dup {
			return fmt.Errorf("duplicate entity id %q", e.ID)
		}
		fresh.put(&e)
	}
	fresh.activity = raw.Activity

	*s = *fresh
	return nil
}
