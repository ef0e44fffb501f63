package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/storage"
)

var benchWords = []string{"python", "rust", "closures", "graph", "lovelace", "kubernetes", "sqlite", "parser"}

func benchEngine(b *testing.B, n int) *Engine {
	b.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(b.TempDir(), "graph.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	index := map[string][]string{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s %s %d", benchWords[i%len(benchWords)], benchWords[(i/3)%len(benchWords)], i)
		e := &models.Entity{
			ID: fmt.Sprintf("e%d", i), Type: models.EntityTypes[i%5], Name: name,
			NormalizedKey: keyword.NormalizeKey(name), Occurrences: 1 + i%7,
			FirstSeen: now.Add(-time.Duration(i) * time.Hour), LastSeen: now.Add(-time.Duration(i) * time.Minute),
		}
		if err := store.PutEntity(ctx, e); err != nil {
			b.Fatal(err)
		}
		for _, tok := range keyword.IndexTokens(name) {
			index[tok] = append(index[tok], e.ID)
		}
	}
	for tok, ids := range index {
		if err := store.PutToken(ctx, tok, ids); err != nil {
			b.Fatal(err)
		}
	}
	cfg := &config.SearchConfig{MaxResults: 20, MaxLimit: 100, RecentLimit: 20}
	return NewEngine(store, cfg, WithClock(func() time.Time { return now }))
}

func BenchmarkEngineSearch(b *testing.B) {
	e := benchEngine(b, 2000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(ctx, &models.SearchQuery{Query: "pyhton closures"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngineRecent(b *testing.B) {
	e := benchEngine(b, 2000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(ctx, &models.SearchQuery{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPatternPoints(b *testing.B) {
	e := &models.Entity{Name: "How do python decorators work with closures?", Description: "asked while porting the parser"}
	tokens := keyword.QueryTokens("decoratr closure")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = patternPoints(e, tokens)
	}
}
