// Package storage defines the persistence interface for the knowledge graph.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// Metadata keys.
const (
	KeyCheckpoint = "checkpoint"
	KeySettings   = "settings"
)

// Snapshot is the full state written by one processing run.
type Snapshot struct {
	Entities      []*models.Entity
	Conversations []*models.Conversation
	Timeline      []*models.TimelineEntry
	// SearchIndex maps a token to the ids of the entities containing it.
	SearchIndex map[string][]string
	// Checkpoint replaces the stored checkpoint when non-nil.
	Checkpoint *models.Checkpoint
	// Settings replaces the stored run settings when non-nil.
	Settings *models.Settings
	// History is appended to the processing log when non-nil.
	History *models.HistoryRecord
}

// Stats summarizes the stored collections.
type Stats struct {
	Entities      int64 `json:"entities"`
	Conversations int64 `json:"conversations"`
	TimelineDays  int64 `json:"timeline_days"`
	Tokens        int64 `json:"tokens"`
	DiskBytes     int64 `json:"disk_bytes"`
}

// Store defines per-collection persistence for entities, conversations,
// timeline entries, the inverted search index, and metadata.
type Store interface {
	// Entity operations
	PutEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	GetAllEntities(ctx context.Context) ([]*models.Entity, error)
	EntitiesByType(ctx context.Context, typ models.EntityType) ([]*models.Entity, error)
	EntitiesByName(ctx context.Context, name string) ([]*models.Entity, error)
	// EntitiesSeenBetween returns entities whose last_seen lies in [from, to].
	EntitiesSeenBetween(ctx context.Context, from, to time.Time) ([]*models.Entity, error)
	// RecentEntities returns up to limit entities ordered by last_seen descending.
	RecentEntities(ctx context.Context, limit int) ([]*models.Entity, error)
	ClearEntities(ctx context.Context) error

	// Conversation operations
	PutConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetAllConversations(ctx context.Context) ([]*models.Conversation, error)
	ConversationsByDate(ctx context.Context, date string) ([]*models.Conversation, error)
	ConversationsBetween(ctx context.Context, from, to time.Time) ([]*models.Conversation, error)
	ConversationIDs(ctx context.Context) (map[string]struct{}, error)
	ClearConversations(ctx context.Context) error

	// Timeline operations
	PutTimelineEntry(ctx context.Context, t *models.TimelineEntry) error
	GetTimelineEntry(ctx context.Context, date string) (*models.TimelineEntry, error)
	// GetTimeline returns entries ordered by date.
	GetTimeline(ctx context.Context) ([]*models.TimelineEntry, error)
	// TimelineBetween returns entries with fromDate <= date <= toDate.
	TimelineBetween(ctx context.Context, fromDate, toDate string) ([]*models.TimelineEntry, error)
	ClearTimeline(ctx context.Context) error

	// Search index operations
	PutToken(ctx context.Context, token string, ids []string) error
	LookupToken(ctx context.Context, token string) ([]string, error)
	ClearSearchIndex(ctx context.Context) error

	// Metadata operations. Values are JSON encoded.
	GetMetadata(ctx context.Context, key string, v any) error
	PutMetadata(ctx context.Context, key string, v any) error
	// UpdateMetadata runs fn on the current raw value (nil when absent) and stores
	// its result in the same transaction.
	UpdateMetadata(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error
	Checkpoint(ctx context.Context) (models.Checkpoint, error)
	// Settings returns the stored run settings, or nil before the first run.
	Settings(ctx context.Context) (*models.Settings, error)
	History(ctx context.Context) ([]models.HistoryRecord, error)

	// Commit replaces every collection with snap in a single transaction.
	Commit(ctx context.Context, snap *Snapshot) error

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
