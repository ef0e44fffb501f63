// Package dedup maps extracted candidates onto existing entities and keeps the
// per-run entity bookkeeping.
package dedup

import (
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
)

type typeKey struct {
	typ models.EntityType
	key string
}

// EntitySet is the live entity map of one processing run. Iteration order is
// the insertion order within each type, so fuzzy tie-breaks are deterministic.
type EntitySet struct {
	byID  map[string]*models.Entity
	order map[models.EntityType][]string
	exact map[typeKey]string
}

// NewEntitySet returns an empty set.
func NewEntitySet() *EntitySet {
	return &EntitySet{
		byID:  make(map[string]*models.Entity),
		order: make(map[models.EntityType][]string),
		exact: make(map[typeKey]string),
	}
}

// Add inserts e, replacing an entity with the same id in place.
func (s *EntitySet) Add(e *models.Entity) {
	if _, ok := s.byID[e.ID]; !ok {
		s.order[e.Type] = append(s.order[e.Type], e.ID)
	}
	s.byID[e.ID] = e
	tk := typeKey{e.Type, e.NormalizedKey}
	if _, ok := s.exact[tk]; !ok {
		s.exact[tk] = e.ID
	}
}

// Get returns the entity with id.
func (s *EntitySet) Get(id string) (*models.Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Len returns the number of entities.
func (s *EntitySet) Len() int {
	return len(s.byID)
}

// OfType returns the entities of typ in insertion order.
func (s *EntitySet) OfType(typ models.EntityType) []*models.Entity {
	ids := s.order[typ]
	out := make([]*models.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

// All returns every entity grouped by type in models.EntityTypes order.
func (s *EntitySet) All() []*models.Entity {
	out := make([]*models.Entity, 0, len(s.byID))
	for _, t := range models.EntityTypes {
		out = append(out, s.OfType(t)...)
	}
	return out
}

func (s *EntitySet) lookupExact(typ models.EntityType, key string) (string, bool) {
	id, ok := s.exact[typeKey{typ, key}]
	return id, ok
}

// Touch records one extraction event for id: occurrences grow by one, the
// seen range widens to include ts, and convID joins the conversation list.
func (s *EntitySet) Touch(id, convID string, ts time.Time) bool {
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	e.Occurrences++
	if ts.After(e.LastSeen) {
		e.LastSeen = ts
	}
	if ts.Before(e.FirstSeen) {
		e.FirstSeen = ts
	}
	if convID != "" {
		e.AddConversation(convID)
	}
	return true
}

// Link adds a symmetric link between a and b. Returns false when either is
// missing or a == b.
func (s *EntitySet) Link(a, b string) bool {
	if a == b {
		return false
	}
	ea, okA := s.byID[a]
	eb, okB := s.byID[b]
	if !okA || !okB {
		return false
	}
	ea.AddLink(b)
	eb.AddLink(a)
	return true
}

// RemoveWhere deletes every entity matching pred, strips the removed ids from
// the links of the survivors, and returns the removed ids.
func (s *EntitySet) RemoveWhere(pred func(*models.Entity) bool) map[string]struct{} {
	removed := make(map[string]struct{})
	for id, e := range s.byID {
		if pred(e) {
			removed[id] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return removed
	}

	for id := range removed {
		delete(s.byID, id)
	}
	for typ, ids := range s.order {
		s.order[typ] = FilterIDs(ids, removed)
	}
	s.exact = make(map[typeKey]string, len(s.byID))
	for _, typ := range models.EntityTypes {
		for _, id := range s.order[typ] {
			e := s.byID[id]
			tk := typeKey{e.Type, e.NormalizedKey}
			if _, ok := s.exact[tk]; !ok {
				s.exact[tk] = id
			}
		}
	}
	for _, e := range s.byID {
		e.Links = FilterIDs(e.Links, removed)
	}
	return removed
}

// FilterIDs returns ids without the members of drop, reusing the backing array.
func FilterIDs(ids []string, drop map[string]struct{}) []string {
	kept := ids[:0]
	for _, id := range ids {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	return kept
}
