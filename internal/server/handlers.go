package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/render"
	"github.com/hyperjump/chatgraph/internal/search"
	"github.com/hyperjump/chatgraph/internal/storage"
	"github.com/hyperjump/chatgraph/internal/views"
)

type processRequest struct {
	ArchivePath string `json:"archive_path,omitempty"`
	// Start and End select an explicit range; when both are nil the run is
	// incremental. A nil End runs the range to the end of the export.
	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`
	Max   int  `json:"max,omitempty"`
}

func (req *processRequest) mode(defaultMax int) processor.Mode {
	if req.Start != nil || req.End != nil {
		r := processor.Range{End: processor.ToEnd}
		if req.Start != nil {
			r.Start = *req.Start
		}
		if req.End != nil {
			r.End = *req.End
		}
		return r
	}
	max := req.Max
	if max == 0 {
		max = defaultMax
	}
	return processor.Incremental{MaxToProcess: max}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.storage.Stats(ctx)
	if err != nil {
		s.logger.Error("status: stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cp, err := s.storage.Checkpoint(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := s.storage.History(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	settings, err := s.storage.Settings(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	processing := map[string]interface{}{"running": s.job != nil}
	if s.last != nil {
		processing["last_progress"] = s.last
	}
	if s.lastErr != "" {
		processing["last_error"] = s.lastErr
	}
	if !s.finished.IsZero() {
		processing["finished_at"] = s.finished
	}
	s.mu.Unlock()

	resp := map[string]interface{}{
		"stats":      stats,
		"checkpoint": cp,
		"runs":       len(history),
		"settings":   settings,
		"processing": processing,
		"config": map[string]interface{}{
			"archive_path":     s.config.Processing.ArchivePath,
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
			"batch_size":       s.config.Processing.BatchSize,
			"min_occurrences":  s.config.Processing.MinOccurrences,
		},
	}
	if n := len(history); n > 0 {
		resp["last_run"] = history[n-1]
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	mode := req.mode(s.config.Processing.MaxToProcess)
	s.logger.Debug("process request", zap.String("archive", req.ArchivePath), zap.Any("mode", mode))
	if _, err := s.StartRun(req.ArchivePath, mode); err != nil {
		switch {
		case errors.Is(err, processor.ErrRunInProgress):
			s.respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrNoArchive), errors.Is(err, archive.ErrLoad):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query *models.SearchQuery
	if r.Method == http.MethodPost {
		query = &models.SearchQuery{}
		if err := json.NewDecoder(r.Body).Decode(query); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		var err error
		if query, err = searchQueryFromURL(r); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.MaxResults))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	types, err := parseTypes(r.URL.Query().Get("type"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var entities []*models.Entity
	if len(types) == 0 {
		entities, err = s.storage.GetAllEntities(ctx)
	} else {
		for _, t := range types {
			var batch []*models.Entity
			if batch, err = s.storage.EntitiesByType(ctx, t); err != nil {
				break
			}
			entities = append(entities, batch...)
		}
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Occurrences > entities[j].Occurrences
	})
	total := len(entities)
	if limit > 0 && len(entities) > limit {
		entities = entities[:limit]
	}
	if entities == nil {
		entities = []*models.Entity{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entities": entities, "total": total})
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := views.Detail(r.Context(), s.storage, id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	days, err := views.Timeline(r.Context(), s.storage, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"days": days})
}

func (s *Server) handleConversationSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hits, err := s.engine.SearchConversations(r.Context(), r.URL.Query().Get("q"), limit)
	if errors.Is(err, search.ErrNoConversationIndex) {
		s.respondError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("conversation search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": hits, "total": len(hits)})
}

// graphOptions reads types, focus and the optional q used to highlight search hits.
func (s *Server) graphOptions(r *http.Request) (render.ExportOptions, error) {
	q := r.URL.Query()
	types, err := parseTypes(q.Get("types"))
	if err != nil {
		return render.ExportOptions{}, err
	}
	opts := render.ExportOptions{Types: types, Focus: q.Get("focus")}
	if text := q.Get("q"); text != "" {
		resp, err := s.engine.Search(r.Context(), &models.SearchQuery{Query: text, Types: types})
		if err != nil {
			return render.ExportOptions{}, err
		}
		for _, res := range resp.Results {
			opts.Highlight = append(opts.Highlight, res.Entity.ID)
		}
	}
	return opts, nil
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	opts, err := s.graphOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entities, err := s.storage.GetAllEntities(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rend, err := render.Export(&s.config.Graph, entities, opts)
	if errors.Is(err, render.ErrUnknownNode) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rend.Snapshot())
}

func (s *Server) handleGraphPNG(w http.ResponseWriter, r *http.Request) {
	opts, err := s.graphOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entities, err := s.storage.GetAllEntities(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if opts.Focus != "" {
		if _, err := s.storage.GetEntity(r.Context(), opts.Focus); err != nil {
			s.respondError(w, http.StatusNotFound, "entity not found")
			return
		}
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.WritePNG(w, &s.config.Graph, entities, opts); err != nil {
		s.logger.Error("graph render failed", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
