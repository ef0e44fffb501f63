package models

import "time"

// Checkpoint is the persisted incremental-processing state.
type Checkpoint struct {
	ProcessedUpToIndex int `json:"processed_up_to_index"`
	MinOccurrences     int `json:"min_occurrences"`
}

// Settings are the processing parameters of the last committed run.
type Settings struct {
	Mode           string    `json:"mode"`
	BatchSize      int       `json:"batch_size"`
	MinOccurrences int       `json:"min_occurrences"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HistoryRecord is one append-only entry of the processing history log.
type HistoryRecord struct {
	StartIndex             int       `json:"start_index"`
	EndIndex               int       `json:"end_index"`
	ConversationsProcessed int       `json:"conversations_processed"`
	EntitiesFound          int       `json:"entities_found"`
	Timestamp              time.Time `json:"timestamp"`
}

// Phase names reported in Progress.Phase.
const (
	PhaseLoading    = "loading"
	PhaseFiltering  = "filtering"
	PhaseBatching   = "batching"
	PhaseSparse     = "filtering-sparse"
	PhaseRelating   = "relating"
	PhasePersisting = "persisting"
	PhaseDone       = "done"
	PhaseFailed     = "failed"
)

// Progress is emitted by the processor while a run advances.
// Only Processed, Total and Percentage are always meaningful.
type Progress struct {
	Phase              string  `json:"phase"`
	Processed          int     `json:"processed"`
	Total              int     `json:"total"`
	Percentage         float64 `json:"percentage"`
	EntitiesFound      int     `json:"entities_found,omitempty"`
	RecentBatch        int     `json:"recent_batch,omitempty"`
	StartIndex         int     `json:"start_index,omitempty"`
	EndIndex           int     `json:"end_index,omitempty"`
	CurrentGlobalIndex int     `json:"current_global_index,omitempty"`
	TotalInFile        int     `json:"total_in_file,omitempty"`
	AlreadyComplete    bool    `json:"already_complete,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// Percent returns processed/total as a percentage; 100 when total is 0.
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(processed) * 100 / float64(total)
}
