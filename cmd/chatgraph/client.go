package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/chatgraph/internal/cli"
	"github.com/hyperjump/chatgraph/internal/models"
)

// errServerUnavailable means no server answered; callers fall back to direct storage.
var errServerUnavailable = errors.New("server unavailable")

// apiClient talks to a running chatgraph server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// searchValues encodes search flags as /api/v1/search query parameters.
func searchValues(query, types, from, to string, limit int) url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("q", query)
	set("types", types)
	set("from", from)
	set("to", to)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}

// get decodes the JSON response of GET path?values into out.
func (c *apiClient) get(path string, values url.Values, out any) error {
	if c.baseURL == "" {
		return errServerUnavailable
	}
	u := c.baseURL + path
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) search(values url.Values) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.get("/api/v1/search", values, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) searchConversations(values url.Values) ([]*models.ConversationHit, error) {
	var resp struct {
		Results []*models.ConversationHit `json:"results"`
	}
	if err := c.get("/api/v1/conversations/search", values, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *apiClient) status() (*cli.Status, error) {
	var st cli.Status
	if err := c.get("/api/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
