// Package processor turns archive conversations into the persisted entity graph,
// incrementally or over explicit index ranges.
package processor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/dedup"
	"github.com/hyperjump/chatgraph/internal/extract"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/storage"
)

// DefaultBatchSize is used when the configured batch size is not positive.
const DefaultBatchSize = 200

// EntityExtractor produces candidate entities from one conversation.
type EntityExtractor interface {
	Extract(text string, messages []models.Message) ([]models.Candidate, error)
}

// Processor runs extraction, deduplication, linking and persistence.
type Processor struct {
	store          storage.Store
	extractor      EntityExtractor
	resolver       *dedup.Resolver
	convIndex      keyword.ConversationIndex // optional
	batchSize      int
	minOccurrences int
	now            func() time.Time
	logger         *zap.Logger // optional; when set, logs run events
	running        atomic.Bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a logger for run events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithExtractor replaces the pattern extractor.
func WithExtractor(e EntityExtractor) Option {
	return func(p *Processor) { p.extractor = e }
}

// WithResolver replaces the default resolver.
func WithResolver(r *dedup.Resolver) Option {
	return func(p *Processor) { p.resolver = r }
}

// WithConversationIndex indexes processed conversation text for full-text search.
func WithConversationIndex(idx keyword.ConversationIndex) Option {
	return func(p *Processor) { p.convIndex = idx }
}

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor writing to store.
func NewProcessor(store storage.Store, cfg *config.ProcessingConfig, opts ...Option) *Processor {
	p := &Processor{
		store:          store,
		extractor:      extract.NewExtractor(),
		batchSize:      cfg.BatchSize,
		minOccurrences: cfg.MinOccurrences,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultBatchSize
	}
	if p.minOccurrences < 1 {
		p.minOccurrences = 1
	}
	if p.resolver == nil {
		p.resolver = dedup.NewResolver(dedup.WithLogger(p.logger))
	}
	return p
}

// Result is the state after a run.
type Result struct {
	Entities      []*models.Entity
	Conversations []*models.Conversation
	Timeline      []*models.TimelineEntry
	Checkpoint    models.Checkpoint
	// Processed is the number of input conversations handled by the run.
	Processed int
	// Created counts entities created by the run, including ones later filtered.
	Created int
	// Removed counts entities dropped by the sparse filter.
	Removed         int
	AlreadyComplete bool
}

// Running reports whether a run is in progress.
func (p *Processor) Running() bool {
	return p.running.Load()
}

// Process runs synchronously and returns the resulting state.
func (p *Processor) Process(ctx context.Context, convs []archive.Conversation, mode Mode) (*Result, error) {
	return p.run(ctx, convs, mode, func(models.Progress) {})
}
