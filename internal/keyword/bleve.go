package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// BleveIndex implements ConversationIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so incremental runs only add new conversations.
// An empty path creates an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so names match as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("date", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("conversation", docMapping)
	im.DefaultType = "conversation"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a conversation by id, replacing any earlier version.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *ConversationDoc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.index.Index(id, doc)
}

// Search runs a match query and returns up to limit hits.
// When opts.TitleBoost > 1, title and text are queried separately and merged additively.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	titleBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	if titleBoost <= 1.0 {
		q := b.buildQuery(query, fuzzyEnabled, fuzziness, "")
		return b.run(q, limit)
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	titleHits, err := b.run(b.buildQuery(query, fuzzyEnabled, fuzziness, "title"), reqSize)
	if err != nil {
		return nil, err
	}
	textHits, err := b.run(b.buildQuery(query, fuzzyEnabled, fuzziness, "text"), reqSize)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(titleHits)+len(textHits))
	for _, h := range titleHits {
		scores[h.ID] += h.Score * titleBoost
	}
	for _, h := range textHits {
		scores[h.ID] += h.Score
	}
	merged := make([]*Hit, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, &Hit{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (b *BleveIndex) run(q blevequery.Query, size int) ([]*Hit, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// buildQuery creates a match query, or a disjunction of per-term fuzzy queries.
// If field is empty, all fields are searched.
func (b *BleveIndex) buildQuery(queryStr string, fuzzy bool, fuzziness int, field string) blevequery.Query {
	terms := QueryTokens(queryStr)
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a conversation from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
