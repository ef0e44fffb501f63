package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/keyword"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/search"
	"github.com/hyperjump/chatgraph/internal/storage"
)

const exportJSON = `[
  {"id": "c1", "title": "Python tips", "create_time": 1709287200, "mapping": {
    "a": {"message": {"author": {"role": "user"}, "content": {"content_type": "text",
      "parts": ["I met with Ada Lovelace today. I learned that closures capture variables by reference."]}}}}},
  {"id": "c2", "title": "More Python", "create_time": 1709373600, "mapping": {
    "a": {"message": {"author": {"role": "user"}, "content": {"content_type": "text",
      "parts": ["Ada Lovelace wrote the first program. How do python decorators work in practice?"]}}}}}
]`

type fixture struct {
	srv   *Server
	http  *httptest.Server
	store *storage.SQLiteStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "conversations.json")
	require.NoError(t, os.WriteFile(archivePath, []byte(exportJSON), 0644))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Processing.ArchivePath = archivePath
	cfg.Graph.LayoutIterations = 30

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	logger := zap.NewNop()
	proc := processor.NewProcessor(store, &cfg.Processing,
		processor.WithConversationIndex(idx), processor.WithLogger(logger))
	engine := search.NewEngine(store, &cfg.Search, search.WithConversationIndex(idx))
	srv := NewServer(engine, proc, store, cfg, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.hub.Stop)
	return &fixture{srv: srv, http: ts, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, data := f.do(t, http.MethodGet, path, "")
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(data, v), string(data))
	}
	return resp.StatusCode
}

func (f *fixture) process(t *testing.T, body string) {
	t.Helper()
	resp, data := f.do(t, http.MethodPost, "/api/v1/process", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	require.Eventually(t, func() bool { return !f.srv.Running() }, 10*time.Second, 10*time.Millisecond)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.getJSON(t, "/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProcessAndQuery(t *testing.T) {
	f := newFixture(t)
	f.process(t, "")

	var status struct {
		Stats      storage.Stats     `json:"stats"`
		Checkpoint models.Checkpoint `json:"checkpoint"`
		Runs       int               `json:"runs"`
		Settings   *models.Settings  `json:"settings"`
		Processing struct {
			Running      bool             `json:"running"`
			LastProgress *models.Progress `json:"last_progress"`
		} `json:"processing"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/status", &status))
	assert.Equal(t, 2, status.Checkpoint.ProcessedUpToIndex)
	assert.EqualValues(t, 2, status.Stats.Conversations)
	assert.GreaterOrEqual(t, status.Stats.Entities, int64(3))
	assert.Equal(t, 1, status.Runs)
	require.NotNil(t, status.Settings)
	assert.Equal(t, "incremental", status.Settings.Mode)
	assert.False(t, status.Processing.Running)
	require.NotNil(t, status.Processing.LastProgress)
	assert.Equal(t, models.PhaseDone, status.Processing.LastProgress.Phase)

	// Nothing new: the second run completes without writing.
	f.process(t, `{}`)
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/status", &status))
	assert.True(t, status.Processing.LastProgress.AlreadyComplete)
	assert.Equal(t, 1, status.Runs)

	var found models.SearchResponse
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/search?q=ada+lovelace", &found))
	require.NotEmpty(t, found.Results)
	ada := found.Results[0].Entity
	assert.Equal(t, "Ada Lovelace", ada.Name)
	assert.Equal(t, 2, ada.Occurrences)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/search", `{"query": "closures", "types": ["knowledge"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.getJSON(t, "/api/v1/search?q=x&types=robot", nil))
	assert.Equal(t, http.StatusBadRequest, f.getJSON(t, "/api/v1/search?q=x&from=yesterday", nil))

	var list struct {
		Entities []*models.Entity `json:"entities"`
		Total    int              `json:"total"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/entities?type=person", &list))
	require.Len(t, list.Entities, 1)
	assert.Equal(t, ada.ID, list.Entities[0].ID)

	var detail struct {
		Entity        *models.Entity         `json:"entity"`
		Conversations []*models.Conversation `json:"conversations"`
		Related       []*models.Entity       `json:"related"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/entities/"+ada.ID, &detail))
	assert.Len(t, detail.Conversations, 2)
	assert.NotEmpty(t, detail.Related)
	assert.Equal(t, http.StatusNotFound, f.getJSON(t, "/api/v1/entities/nope", nil))

	var timeline struct {
		Days []json.RawMessage `json:"days"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/timeline", &timeline))
	assert.Len(t, timeline.Days, 2)
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/timeline?from=2024-03-02", &timeline))
	assert.Len(t, timeline.Days, 1)

	var convs struct {
		Results []*models.ConversationHit `json:"results"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/conversations/search?q=closurs", &convs))
	require.NotEmpty(t, convs.Results)
	assert.Equal(t, "c1", convs.Results[0].Conversation.ID)
}

func TestGraphEndpoints(t *testing.T) {
	f := newFixture(t)
	f.process(t, "")

	var graph struct {
		Nodes []struct {
			ID      string `json:"id"`
			Visible bool   `json:"visible"`
		} `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/graph", &graph))
	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, stats.Entities, len(graph.Nodes))
	assert.NotEmpty(t, graph.Edges)

	require.Equal(t, http.StatusOK, f.getJSON(t, "/api/v1/graph?types=person", &graph))
	visible := 0
	for _, n := range graph.Nodes {
		if n.Visible {
			visible++
		}
	}
	assert.Equal(t, 1, visible)

	resp, data := f.do(t, http.MethodGet, "/api/v1/graph.png?q=ada", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/graph.png?focus=nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, f.getJSON(t, "/api/v1/graph?focus=nope", nil))
}

func TestHandleProcess_errors(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/process", `{"archive_path": "/does/not/exist.json"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/process", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.srv.config.Processing.ArchivePath = ""
	resp, _ = f.do(t, http.MethodPost, "/api/v1/process", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessRequest_mode(t *testing.T) {
	start, end := 1, 4
	assert.Equal(t, processor.Range{Start: 1, End: 4}, (&processRequest{Start: &start, End: &end}).mode(0))
	assert.Equal(t, processor.Range{Start: 1, End: processor.ToEnd}, (&processRequest{Start: &start}).mode(10))
	zero := 0
	assert.Equal(t, processor.Range{}, (&processRequest{Start: &zero, End: &zero}).mode(10))
	assert.Equal(t, processor.Incremental{MaxToProcess: 10}, (&processRequest{}).mode(10))
	assert.Equal(t, processor.Incremental{MaxToProcess: 3}, (&processRequest{Max: 3}).mode(10))
}

func TestProgressWebsocket(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/v1/process/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")
	require.Eventually(t, func() bool { return f.srv.hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/process", `{"start": 0, "end": 2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var phases []string
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var pr models.Progress
		require.NoError(t, json.Unmarshal(data, &pr))
		phases = append(phases, pr.Phase)
		if pr.Phase == models.PhaseDone {
			assert.Equal(t, 2, pr.Processed)
			break
		}
	}
	assert.Equal(t, models.PhaseLoading, phases[0])
	assert.Contains(t, phases, models.PhaseBatching)
	assert.Contains(t, phases, models.PhasePersisting)
}

func TestSearchQueryFromURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=go&types=person,+project&from=2024-01-01&to=2024-01-31&limit=5", nil)
	q, err := searchQueryFromURL(req)
	require.NoError(t, err)
	assert.Equal(t, "go", q.Query)
	assert.Equal(t, []models.EntityType{models.TypePerson, models.TypeProject}, q.Types)
	assert.Equal(t, 5, q.MaxResults)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.True(t, q.To.After(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search?limit=-1", nil)
	_, err = searchQueryFromURL(req)
	assert.Error(t, err)
}
