// Package views builds read-only projections of the stored graph for the
// timeline and entity-detail panels.
package views

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/storage"
)

// Reader is the subset of storage.Store the views read from.
type Reader interface {
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	GetAllEntities(ctx context.Context) ([]*models.Entity, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetTimeline(ctx context.Context) ([]*models.TimelineEntry, error)
	TimelineBetween(ctx context.Context, fromDate, toDate string) ([]*models.TimelineEntry, error)
}

// Lane groups one day's entities of a single type.
type Lane struct {
	Type     models.EntityType `json:"type"`
	Style    models.Style      `json:"style"`
	Entities []*models.Entity  `json:"entities"`
}

// Day is one timeline row.
type Day struct {
	Date          string   `json:"date"`
	Conversations []string `json:"conversations"`
	Lanes         []Lane   `json:"lanes"`
}

// Timeline returns the days in [from, to] with their entities grouped into
// lanes in style-table order. Empty bounds are open.
func Timeline(ctx context.Context, r Reader, from, to string) ([]*Day, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", d, err)
		}
	}
	var entries []*models.TimelineEntry
	var err error
	if from == "" && to == "" {
		entries, err = r.GetTimeline(ctx)
	} else {
		if to == "" {
			to = "9999-12-31"
		}
		entries, err = r.TimelineBetween(ctx, from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	all, err := r.GetAllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	byID := make(map[string]*models.Entity, len(all))
	for _, e := range all {
		byID[e.ID] = e
	}

	days := make([]*Day, 0, len(entries))
	for _, entry := range entries {
		day := &Day{Date: entry.Date, Conversations: entry.Conversations}
		lanes := map[models.EntityType][]*models.Entity{}
		for _, id := range entry.Entities {
			if e, ok := byID[id]; ok {
				lanes[e.Type] = append(lanes[e.Type], e)
			}
		}
		types := make([]models.EntityType, 0, len(lanes))
		for t := range lanes {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			return models.StyleFor(types[i]).Lane < models.StyleFor(types[j]).Lane
		})
		for _, t := range types {
			day.Lanes = append(day.Lanes, Lane{Type: t, Style: models.StyleFor(t), Entities: lanes[t]})
		}
		days = append(days, day)
	}
	return days, nil
}

// EntityDetail is the detail panel content for one entity.
type EntityDetail struct {
	Entity        *models.Entity         `json:"entity"`
	Style         models.Style           `json:"style"`
	Conversations []*models.Conversation `json:"conversations"`
	// Related lists linked entities, most frequent first.
	Related []*models.Entity `json:"related"`
}

// Detail loads id with its conversations and linked entities. References to
// records that no longer exist are skipped.
func Detail(ctx context.Context, r Reader, id string) (*EntityDetail, error) {
	e, err := r.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", id, err)
	}
	d := &EntityDetail{Entity: e, Style: models.StyleFor(e.Type)}
	for _, cid := range e.Conversations {
		c, err := r.GetConversation(ctx, cid)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		d.Conversations = append(d.Conversations, c)
	}
	sort.SliceStable(d.Conversations, func(i, j int) bool {
		return d.Conversations[i].Timestamp.After(d.Conversations[j].Timestamp)
	})
	for _, lid := range e.Links {
		linked, err := r.GetEntity(ctx, lid)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		d.Related = append(d.Related, linked)
	}
	sort.SliceStable(d.Related, func(i, j int) bool {
		return d.Related[i].Occurrences > d.Related[j].Occurrences
	})
	return d, nil
}
