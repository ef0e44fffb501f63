// Package models defines core data structures for entities, conversations, and search.
package models

import (
	"fmt"
	"time"
)

// EntityType is the closed set of entity kinds.
type EntityType string

const (
	TypePerson    EntityType = "person"
	TypeProject   EntityType = "project"
	TypeKnowledge EntityType = "knowledge"
	TypeQuestion  EntityType = "question"
	TypeThought   EntityType = "thought"
	// TypePattern is reserved; single-conversation extraction never produces it.
	TypePattern EntityType = "pattern"
)

// EntityTypes lists every valid type in display order.
var EntityTypes = []EntityType{TypePerson, TypeProject, TypeKnowledge, TypeQuestion, TypeThought, TypePattern}

// ParseEntityType returns the EntityType named by s.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range EntityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type: %q", s)
}

// Entity is a deduplicated named thing extracted from conversation text.
type Entity struct {
	ID            string     `json:"id"`
	Type          EntityType `json:"type"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	NormalizedKey string     `json:"normalized_key"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	Occurrences   int        `json:"occurrences"`
	Conversations []string   `json:"conversations"`
	Links         []string   `json:"links"`
}

// HasLink reports whether id is in e.Links.
func (e *Entity) HasLink(id string) bool {
	return contains(e.Links, id)
}

// AddLink appends id to e.Links if absent. Returns true when added.
func (e *Entity) AddLink(id string) bool {
	if id == e.ID || contains(e.Links, id) {
		return false
	}
	e.Links = append(e.Links, id)
	return true
}

// AddConversation appends convID to e.Conversations if absent.
func (e *Entity) AddConversation(convID string) {
	if !contains(e.Conversations, convID) {
		e.Conversations = append(e.Conversations, convID)
	}
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Conversations = append([]string(nil), e.Conversations...)
	c.Links = append([]string(nil), e.Links...)
	return &c
}

// Candidate is an extractor result before deduplication.
type Candidate struct {
	Type        EntityType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Context     string     `json:"context"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
