package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/storage"
	"github.com/hyperjump/chatgraph/internal/views"
)

var seen = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "python",
		QueryTime: 7,
		Total:     3,
		Results: []*models.SearchResult{
			{
				Rank:      1,
				Score:     131.4,
				MatchType: "exact",
				Entity: &models.Entity{
					ID: "project_python_1", Type: models.TypeProject, Name: "python",
					Description: "Ported the scraper to python last week",
					FirstSeen:   seen, LastSeen: seen.Add(48 * time.Hour), Occurrences: 4,
				},
			},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputJSON))

	var decoded models.SearchResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "python", decoded.Query)
	assert.Equal(t, 3, decoded.Total)
	require.Len(t, decoded.Results, 1)
	assert.Equal(t, "project_python_1", decoded.Results[0].Entity.ID)
}

func TestWriteSearchResults_text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, sampleResponse(), OutputText))
	out := buf.String()
	for _, sub := range []string{
		`Found 3 results for "python" in 7ms`,
		"1. [Project] python",
		"exact",
		"2024-05-02..2024-05-04",
		"4 occurrence(s)",
		"Ported the scraper",
		"(showing 1 of 3)",
	} {
		assert.Contains(t, out, sub)
	}
}

func TestWriteSearchResults_recent(t *testing.T) {
	resp := sampleResponse()
	resp.Query = ""
	resp.Total = 1
	var buf bytes.Buffer
	require.NoError(t, WriteSearchResults(&buf, resp, OutputText))
	assert.Contains(t, buf.String(), "1 recent entities")
	assert.NotContains(t, buf.String(), "showing")
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("json")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)

	_, err = ParseOutputFormat("compact")
	assert.Error(t, err)
}

func TestWriteConversationHits(t *testing.T) {
	hits := []*models.ConversationHit{
		{Conversation: &models.Conversation{ID: "c1", Title: "Closures in Go", Date: "2024-05-02", Entities: []string{"a", "b"}}, Score: 0.42},
		{Conversation: &models.Conversation{ID: "c2", Date: "2024-05-03"}, Score: 0.1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteConversationHits(&buf, "closure", hits, OutputText))
	out := buf.String()
	assert.Contains(t, out, `2 conversation(s) matching "closure"`)
	assert.Contains(t, out, "1. 2024-05-02  Closures in Go")
	assert.Contains(t, out, "2 entities")
	assert.Contains(t, out, "(untitled)")
}

func TestWriteStatus(t *testing.T) {
	st := &Status{
		Stats:      storage.Stats{Entities: 12, Conversations: 5, TimelineDays: 3, Tokens: 40, DiskBytes: 8192},
		Checkpoint: models.Checkpoint{ProcessedUpToIndex: 5, MinOccurrences: 1},
		Runs:       2,
		Settings:   &models.Settings{Mode: "incremental", BatchSize: 200, MinOccurrences: 1},
		LastRun:    &models.HistoryRecord{StartIndex: 3, EndIndex: 5, ConversationsProcessed: 2, EntitiesFound: 4, Timestamp: seen},
		Processing: &ProcessingStatus{Running: true, LastProgress: &models.Progress{Phase: models.PhaseBatching, Processed: 1, Total: 2, Percentage: 50}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, st, OutputText))
	out := buf.String()
	assert.Contains(t, out, "entities:         12")
	assert.Contains(t, out, "processed_up_to:  5")
	assert.Contains(t, out, "[3, 5) 2 conversations, 4 entities")
	assert.Contains(t, out, "incremental run, batch_size=200 min_occurrences=1")
	assert.Contains(t, out, "processing:       true")
	assert.Contains(t, out, "batching")

	buf.Reset()
	require.NoError(t, WriteStatus(&buf, st, OutputJSON))
	var decoded Status
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(12), decoded.Stats.Entities)
	assert.True(t, decoded.Processing.Running)
}

func TestStatus_decodesServerShape(t *testing.T) {
	body := `{"stats":{"entities":1},"checkpoint":{"processed_up_to_index":2},"runs":1,
		"processing":{"running":false,"last_error":"boom","finished_at":"2024-05-02T10:00:00Z"},
		"config":{"batch_size":200}}`
	var st Status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, 2, st.Checkpoint.ProcessedUpToIndex)
	assert.Equal(t, "boom", st.Processing.LastError)
	require.NotNil(t, st.Processing.FinishedAt)
	assert.True(t, st.Processing.FinishedAt.Equal(seen))
}

func TestProgressLine(t *testing.T) {
	line := ProgressLine(models.Progress{
		Phase: models.PhaseBatching, Processed: 50, Total: 200, Percentage: 25,
		EntitiesFound: 17, CurrentGlobalIndex: 150, TotalInFile: 300,
	})
	assert.True(t, strings.HasPrefix(line, "batching"))
	assert.Contains(t, line, "25.0% (50/200)")
	assert.Contains(t, line, "entities=17")
	assert.Contains(t, line, "at=150/300")

	done := ProgressLine(models.Progress{Phase: models.PhaseDone, Percentage: 100, AlreadyComplete: true})
	assert.Contains(t, done, "already complete")

	failed := ProgressLine(models.Progress{Phase: models.PhaseFailed, Error: "disk full"})
	assert.Contains(t, failed, "error=disk full")
}

func TestWriteRunResult(t *testing.T) {
	res := &processor.Result{
		Entities:   make([]*models.Entity, 3),
		Processed:  4,
		Created:    5,
		Removed:    2,
		Checkpoint: models.Checkpoint{ProcessedUpToIndex: 4},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRunResult(&buf, res, OutputText))
	assert.Contains(t, buf.String(), "Processed 4 conversation(s): 5 entities created, 2 dropped as sparse.")
	assert.Contains(t, buf.String(), "3 entities")

	buf.Reset()
	require.NoError(t, WriteRunResult(&buf, &processor.Result{AlreadyComplete: true, Checkpoint: models.Checkpoint{ProcessedUpToIndex: 9}}, OutputText))
	assert.Contains(t, buf.String(), "up to 9 are done")

	buf.Reset()
	require.NoError(t, WriteRunResult(&buf, res, OutputJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 3, decoded["entities"])
}

func TestWriteTimeline(t *testing.T) {
	days := []*views.Day{{
		Date:          "2024-05-02",
		Conversations: []string{"c1"},
		Lanes: []views.Lane{{
			Type:     models.TypePerson,
			Style:    models.StyleFor(models.TypePerson),
			Entities: []*models.Entity{{Name: "Ada Lovelace"}, {Name: "Grace Hopper"}},
		}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteTimeline(&buf, days, OutputText))
	assert.Contains(t, buf.String(), "2024-05-02  1 conversation(s)")
	assert.Contains(t, buf.String(), "Person:    Ada Lovelace, Grace Hopper")
}

func TestWriteDetail(t *testing.T) {
	d := &views.EntityDetail{
		Entity: &models.Entity{
			ID: "person_ada_1", Type: models.TypePerson, Name: "Ada Lovelace",
			Description: "Asked about the analytical engine", FirstSeen: seen, LastSeen: seen, Occurrences: 2,
		},
		Style:         models.StyleFor(models.TypePerson),
		Conversations: []*models.Conversation{{ID: "c1", Title: "Engines", Date: "2024-05-02"}},
		Related:       []*models.Entity{{ID: "k1", Type: models.TypeKnowledge, Name: "bernoulli numbers", Occurrences: 3}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDetail(&buf, d, OutputText))
	out := buf.String()
	assert.Contains(t, out, "[Person] Ada Lovelace")
	assert.Contains(t, out, "Conversations (1):")
	assert.Contains(t, out, "2024-05-02  Engines")
	assert.Contains(t, out, "[Knowledge] bernoulli numbers (3)")

	buf.Reset()
	require.NoError(t, WriteDetail(&buf, d, OutputJSON))
	assert.Contains(t, buf.String(), `"person_ada_1"`)
}
