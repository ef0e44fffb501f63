package dedup

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
)

const (
	// MaxFuzzyDistance is the largest edit distance that still merges two keys.
	MaxFuzzyDistance = 2
	// MinFuzzyKeyLen is the key length a candidate must exceed before fuzzy matching applies.
	MinFuzzyKeyLen = 5
)

// ErrEmptyKey is returned for candidates whose name normalizes to nothing.
var ErrEmptyKey = errors.New("candidate name has no word characters")

// IDFunc generates the id of a newly created entity.
type IDFunc func(typ models.EntityType, key string) string

// Resolver maps candidates to entity ids.
type Resolver struct {
	newID  IDFunc
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIDFunc overrides entity id generation.
func WithIDFunc(fn IDFunc) Option {
	return func(r *Resolver) { r.newID = fn }
}

// WithLogger sets the logger used for merge decisions.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{newID: defaultID}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// defaultID joins the type, a slug of the key, and a random nonce.
func defaultID(typ models.EntityType, key string) string {
	return fmt.Sprintf("%s_%s_%s", typ, keyword.Slug(key), uuid.NewString()[:8])
}

// Resolve returns the id of the entity c refers to, creating it in set when no
// exact or fuzzy match exists. created reports whether a new entity was made.
// New entities start with zero occurrences; callers follow up with Touch.
func (r *Resolver) Resolve(c models.Candidate, convID string, ts time.Time, set *EntitySet) (id string, created bool, err error) {
	key := keyword.NormalizeKey(c.Name)
	if key == "" {
		return "", false, fmt.Errorf("resolve %q: %w", c.Name, ErrEmptyKey)
	}

	if existing, ok := set.lookupExact(c.Type, key); ok {
		return existing, false, nil
	}

	if utf8.RuneCountInString(key) > MinFuzzyKeyLen {
		for _, e := range set.OfType(c.Type) {
			if keyword.WithinDistance(key, e.NormalizedKey, MaxFuzzyDistance) {
				if r.logger != nil {
					r.logger.Debug("fuzzy merge",
						zap.String("candidate", key),
						zap.String("entity", e.NormalizedKey),
						zap.String("id", e.ID))
				}
				return e.ID, false, nil
			}
		}
	}

	desc := c.Description
	if desc == "" {
		desc = c.Context
	}
	e := &models.Entity{
		ID:            r.newID(c.Type, key),
		Type:          c.Type,
		Name:          c.Name,
		Description:   desc,
		NormalizedKey: key,
		FirstSeen:     ts,
		LastSeen:      ts,
		Conversations: []string{},
		Links:         []string{},
	}
	set.Add(e)
	return e.ID, true, nil
}
