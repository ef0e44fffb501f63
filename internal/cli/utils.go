// Package cli provides output helpers for the chatgraph command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/search"
	"github.com/hyperjump/chatgraph/internal/storage"
	"github.com/hyperjump/chatgraph/internal/views"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const (
	descriptionWidth = 120
	rule             = "─────────────────────────────────────────────────────────"
)

// ParseOutputFormat returns the format named by s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes entity search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if response.Query == "" {
		fmt.Fprintf(w, "\n%d recent entities (%dms)\n\n", len(response.Results), response.QueryTime)
	} else {
		fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	}
	for _, res := range response.Results {
		writeOneResult(w, res, response.Query)
	}
	if response.Total > len(response.Results) {
		fmt.Fprintf(w, "(showing %d of %d)\n", len(response.Results), response.Total)
	}
	return nil
}

func writeOneResult(w io.Writer, res *models.SearchResult, query string) {
	e := res.Entity
	style := models.StyleFor(e.Type)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d. [%s] %s  (score %.2f, %s)\n", res.Rank, style.Label, e.Name, res.Score, res.MatchType)
	fmt.Fprintf(w, "   id: %s | seen %s..%s | %d occurrence(s)\n",
		e.ID, models.DateOf(e.FirstSeen), models.DateOf(e.LastSeen), e.Occurrences)
	if e.Description != "" {
		fmt.Fprintf(w, "   %s\n", search.Highlight(e.Description, query, descriptionWidth))
	}
}

// WriteConversationHits writes full-text conversation hits to w.
func WriteConversationHits(w io.Writer, query string, hits []*models.ConversationHit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, hits)
	}
	fmt.Fprintf(w, "\n%d conversation(s) matching %q\n\n", len(hits), query)
	for i, h := range hits {
		c := h.Conversation
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%d. %s  %s  (score %.3f, %d entities)\n", i+1, c.Date, utils.Truncate(title, 80), h.Score, len(c.Entities))
	}
	return nil
}

// Status is the combined store and run state printed by the status command.
// It matches the shape served at /api/v1/status.
type Status struct {
	Stats      storage.Stats         `json:"stats"`
	Checkpoint models.Checkpoint     `json:"checkpoint"`
	Runs       int                   `json:"runs"`
	Settings   *models.Settings      `json:"settings,omitempty"`
	LastRun    *models.HistoryRecord `json:"last_run,omitempty"`
	Processing *ProcessingStatus     `json:"processing,omitempty"`
	Config     map[string]any        `json:"config,omitempty"`
}

// ProcessingStatus describes the server's background run, if any.
type ProcessingStatus struct {
	Running      bool             `json:"running"`
	LastProgress *models.Progress `json:"last_progress,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty"`
}

// WriteStatus writes st to w in the given format.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "entities:         %d\n", st.Stats.Entities)
	fmt.Fprintf(w, "conversations:    %d\n", st.Stats.Conversations)
	fmt.Fprintf(w, "timeline_days:    %d\n", st.Stats.TimelineDays)
	fmt.Fprintf(w, "index_tokens:     %d\n", st.Stats.Tokens)
	fmt.Fprintf(w, "disk_usage_bytes: %d\n", st.Stats.DiskBytes)
	fmt.Fprintf(w, "processed_up_to:  %d   # incremental checkpoint\n", st.Checkpoint.ProcessedUpToIndex)
	fmt.Fprintf(w, "min_occurrences:  %d\n", st.Checkpoint.MinOccurrences)
	fmt.Fprintf(w, "runs:             %d\n", st.Runs)
	if r := st.LastRun; r != nil {
		fmt.Fprintf(w, "last_run:         [%d, %d) %d conversations, %d entities at %s\n",
			r.StartIndex, r.EndIndex, r.ConversationsProcessed, r.EntitiesFound, r.Timestamp.Format(time.RFC3339))
	}
	if s := st.Settings; s != nil {
		fmt.Fprintf(w, "last_settings:    %s run, batch_size=%d min_occurrences=%d\n", s.Mode, s.BatchSize, s.MinOccurrences)
	}
	if p := st.Processing; p != nil {
		fmt.Fprintf(w, "processing:       %t\n", p.Running)
		if p.LastProgress != nil {
			fmt.Fprintf(w, "last_progress:    %s\n", ProgressLine(*p.LastProgress))
		}
		if p.LastError != "" {
			fmt.Fprintf(w, "last_error:       %s\n", p.LastError)
		}
	}
	return nil
}

// ProgressLine renders one progress event as a single line.
func ProgressLine(p models.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %5.1f%% (%d/%d)", p.Phase, p.Percentage, p.Processed, p.Total)
	if p.EntitiesFound > 0 {
		fmt.Fprintf(&b, " entities=%d", p.EntitiesFound)
	}
	if p.TotalInFile > 0 {
		fmt.Fprintf(&b, " at=%d/%d", p.CurrentGlobalIndex, p.TotalInFile)
	}
	if p.AlreadyComplete {
		b.WriteString(" already complete")
	}
	if p.Error != "" {
		fmt.Fprintf(&b, " error=%s", p.Error)
	}
	return b.String()
}

// WriteRunResult summarizes a finished processing run.
func WriteRunResult(w io.Writer, res *processor.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{
			"processed":        res.Processed,
			"created":          res.Created,
			"removed":          res.Removed,
			"entities":         len(res.Entities),
			"conversations":    len(res.Conversations),
			"timeline_days":    len(res.Timeline),
			"checkpoint":       res.Checkpoint,
			"already_complete": res.AlreadyComplete,
		})
	}
	if res.AlreadyComplete {
		fmt.Fprintf(w, "Nothing to process: all conversations up to %d are done.\n", res.Checkpoint.ProcessedUpToIndex)
		return nil
	}
	fmt.Fprintf(w, "Processed %d conversation(s): %d entities created, %d dropped as sparse.\n",
		res.Processed, res.Created, res.Removed)
	fmt.Fprintf(w, "Graph now holds %d entities across %d conversations and %d days (checkpoint %d).\n",
		len(res.Entities), len(res.Conversations), len(res.Timeline), res.Checkpoint.ProcessedUpToIndex)
	return nil
}

// WriteTimeline writes timeline days with their lanes to w.
func WriteTimeline(w io.Writer, days []*views.Day, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, days)
	}
	for _, d := range days {
		fmt.Fprintf(w, "%s  %d conversation(s)\n", d.Date, len(d.Conversations))
		for _, lane := range d.Lanes {
			names := make([]string, 0, len(lane.Entities))
			for _, e := range lane.Entities {
				names = append(names, utils.Truncate(e.Name, 40))
			}
			fmt.Fprintf(w, "  %-10s %s\n", lane.Style.Label+":", strings.Join(names, ", "))
		}
	}
	return nil
}

// WriteDetail writes one entity with its conversations and related entities.
func WriteDetail(w io.Writer, d *views.EntityDetail, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, d)
	}
	e := d.Entity
	fmt.Fprintf(w, "[%s] %s\n", d.Style.Label, e.Name)
	fmt.Fprintf(w, "id: %s | seen %s..%s | %d occurrence(s)\n",
		e.ID, models.DateOf(e.FirstSeen), models.DateOf(e.LastSeen), e.Occurrences)
	if e.Description != "" {
		fmt.Fprintf(w, "\n%s\n", e.Description)
	}
	if len(d.Conversations) > 0 {
		fmt.Fprintf(w, "\nConversations (%d):\n", len(d.Conversations))
		for _, c := range d.Conversations {
			fmt.Fprintf(w, "  %s  %s\n", c.Date, utils.Truncate(c.Title, 80))
		}
	}
	if len(d.Related) > 0 {
		fmt.Fprintf(w, "\nRelated (%d):\n", len(d.Related))
		for _, r := range d.Related {
			fmt.Fprintf(w, "  [%s] %s (%d)\n", models.StyleFor(r.Type).Label, r.Name, r.Occurrences)
		}
	}
	return nil
}
