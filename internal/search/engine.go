// Package search ranks entities for a query using the inverted token index,
// a fuzzy scan over all entities, and popularity and recency terms.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/storage"
)

// Match types reported in SearchResult.MatchType.
const (
	MatchExact  = "exact"
	MatchFuzzy  = "fuzzy"
	MatchRecent = "recent"
)

// ErrNoConversationIndex is returned by SearchConversations when no index is configured.
var ErrNoConversationIndex = errors.New("conversation index not configured")

// Engine runs entity and conversation search.
type Engine struct {
	store     storage.Store
	convIndex keyword.ConversationIndex // optional
	config    *config.SearchConfig
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConversationIndex enables SearchConversations.
func WithConversationIndex(idx keyword.ConversationIndex) Option {
	return func(e *Engine) { e.convIndex = idx }
}

// WithClock overrides the clock used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets a logger for query events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine over store.
func NewEngine(store storage.Store, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{store: store, config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type hit struct {
	entity *models.Entity
	points float64
	exact  bool
}

// Search ranks entities for query. An empty query returns the most recently
// seen entities.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query.Query))
	tokens := keyword.QueryTokens(q)

	var hits []*hit
	var err error
	if len(tokens) == 0 {
		hits, err = e.recent(ctx, query)
	} else {
		hits, err = e.match(ctx, query, tokens)
	}
	if err != nil {
		return nil, err
	}

	now := e.now()
	type ranked struct {
		hit   *hit
		score float64
	}
	all := make([]ranked, 0, len(hits))
	for _, h := range hits {
		score := finalScore(h.entity, q, h.points, now)
		all = append(all, ranked{hit: h, score: score})
	}
	if len(tokens) > 0 {
		sort.SliceStable(all, func(i, j int) bool {
			if all[i].score != all[j].score {
				return all[i].score > all[j].score
			}
			return all[i].hit.entity.ID < all[j].hit.entity.ID
		})
	}

	total := len(all)
	if len(all) > query.MaxResults {
		all = all[:query.MaxResults]
	}
	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(all)),
		Total:   total,
		Query:   query.Query,
	}
	for i, r := range all {
		matchType := MatchFuzzy
		switch {
		case len(tokens) == 0:
			matchType = MatchRecent
		case r.hit.exact:
			matchType = MatchExact
		}
		resp.Results = append(resp.Results, &models.SearchResult{
			Entity:    r.hit.entity,
			Score:     r.score,
			MatchType: matchType,
			Rank:      i + 1,
		})
	}
	resp.QueryTime = time.Since(startTime).Milliseconds()
	if e.logger != nil {
		e.logger.Debug("entity search",
			zap.String("query", query.Query), zap.Int("total", total), zap.Int64("ms", resp.QueryTime))
	}
	return resp, nil
}

// recent returns the filtered entities ordered by last seen, newest first.
func (e *Engine) recent(ctx context.Context, query *models.SearchQuery) ([]*hit, error) {
	limit := e.config.RecentLimit
	if limit <= 0 || limit > query.MaxResults {
		limit = query.MaxResults
	}
	var entities []*models.Entity
	var err error
	if len(query.Types) == 0 && query.From == nil && query.To == nil {
		entities, err = e.store.RecentEntities(ctx, limit)
	} else {
		entities, err = e.store.GetAllEntities(ctx)
		sort.SliceStable(entities, func(i, j int) bool {
			return entities[i].LastSeen.After(entities[j].LastSeen)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load recent entities: %w", err)
	}
	var hits []*hit
	for _, ent := range entities {
		if len(hits) == limit {
			break
		}
		if matchesFilters(ent, query) {
			hits = append(hits, &hit{entity: ent})
		}
	}
	return hits, nil
}

// match unions inverted-index hits with a fuzzy scan over every entity.
func (e *Engine) match(ctx context.Context, query *models.SearchQuery, tokens []string) ([]*hit, error) {
	var (
		mu       sync.Mutex
		indexed  = make(map[string]int)
		entities []*models.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := e.store.GetAllEntities(gctx)
		if err != nil {
			return fmt.Errorf("load entities: %w", err)
		}
		entities = all
		return nil
	})
	for _, tok := range tokens {
		tok := tok
		g.Go(func() error {
			ids, err := e.store.LookupToken(gctx, tok)
			if err != nil {
				return fmt.Errorf("lookup token %q: %w", tok, err)
			}
			mu.Lock()
			for _, id := range ids {
				indexed[id]++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hits []*hit
	for _, ent := range entities {
		if !matchesFilters(ent, query) {
			continue
		}
		points, fuzzy := patternPoints(ent, tokens)
		_, exact := indexed[ent.ID]
		if !exact && !fuzzy {
			continue
		}
		hits = append(hits, &hit{entity: ent, points: points, exact: exact})
	}
	return hits, nil
}

// SearchConversations runs a fuzzy full-text query over conversation titles and text.
func (e *Engine) SearchConversations(ctx context.Context, query string, limit int) ([]*models.ConversationHit, error) {
	if e.convIndex == nil {
		return nil, ErrNoConversationIndex
	}
	if strings.TrimSpace(query) == "" {
		return []*models.ConversationHit{}, nil
	}
	if limit <= 0 {
		limit = e.config.MaxResults
	}
	hits, err := e.convIndex.Search(ctx, query, limit, &keyword.SearchOptions{
		TitleBoost:   2,
		FuzzyEnabled: true,
		Fuzziness:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation search failed: %w", err)
	}
	out := make([]*models.ConversationHit, 0, len(hits))
	for _, h := range hits {
		c, err := e.store.GetConversation(ctx, h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &models.ConversationHit{Conversation: c, Score: h.Score})
	}
	return out, nil
}
