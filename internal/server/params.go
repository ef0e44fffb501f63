package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
)

// parseTypes reads a comma-separated list of entity types.
func parseTypes(raw string) ([]models.EntityType, error) {
	var out []models.EntityType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := models.ParseEntityType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseTime accepts a calendar date or an RFC 3339 timestamp. Dates used as
// an upper bound cover the whole day.
func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

// ParseSearchQuery builds a query from q, types, from, to and limit values.
func ParseSearchQuery(v url.Values) (*models.SearchQuery, error) {
	types, err := parseTypes(v.Get("types"))
	if err != nil {
		return nil, err
	}
	from, err := parseTime(v.Get("from"), false)
	if err != nil {
		return nil, err
	}
	to, err := parseTime(v.Get("to"), true)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(v.Get("limit"))
	if err != nil {
		return nil, err
	}
	return &models.SearchQuery{Query: v.Get("q"), Types: types, From: from, To: to, MaxResults: limit}, nil
}

func searchQueryFromURL(r *http.Request) (*models.SearchQuery, error) {
	return ParseSearchQuery(r.URL.Query())
}
