package search

import (
	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/models"
)

// ProcessQuery validates and applies defaults to the search query.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	return query.Validate(cfg.MaxResults, cfg.MaxLimit)
}
