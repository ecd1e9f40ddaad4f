package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

// searchRequest is the wire shape of a saved search create/update
type searchRequest struct {
	Name           string                 `json:"name"`
	URL            string                 `json:"url"`
	Platform       types.Platform         `json:"platform"`
	Enabled        *bool                  `json:"enabled"`
	CadenceMinutes int                    `json:"cadenceMinutes"`
	Filters        map[string]interface{} `json:"filters"`
}

// handleCreateSearch handles POST /api/v1/searches - Create a saved search
func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	search := &models.SavedSearch{
		Name:           req.Name,
		URL:            req.URL,
		Platform:       req.Platform,
		Enabled:        enabled,
		CadenceMinutes: req.CadenceMinutes,
		Filters:        req.Filters,
	}

	created, err := s.registry.Create(r.Context(), search)
	if err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// handleListSearches handles GET /api/v1/searches - List all saved searches
func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"searches": s.registry.GetAll(),
	})
}

// handleGetSearch handles GET /api/v1/searches/:id - Get a saved search
func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	search, err := s.registry.Get(id)
	if err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, search)
}

// handleUpdateSearch handles PUT /api/v1/searches/:id - Update a saved search
func (s *Server) handleUpdateSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	current, err := s.registry.Get(id)
	if err != nil {
		respondForError(w, err)
		return
	}

	var req searchRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	update := current.Clone()
	if req.Name != "" {
		update.Name = req.Name
	}
	if req.URL != "" {
		update.URL = req.URL
	}
	if req.Platform != "" {
		update.Platform = req.Platform
	}
	if req.Enabled != nil {
		update.Enabled = *req.Enabled
	}
	if req.CadenceMinutes != 0 {
		update.CadenceMinutes = req.CadenceMinutes
	}
	if req.Filters != nil {
		update.Filters = req.Filters
	}

	updated, err := s.registry.Update(r.Context(), id, update)
	if err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// handleDeleteSearch handles DELETE /api/v1/searches/:id - Delete a saved search
func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if err := s.registry.Delete(r.Context(), id); err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
		"id":     id,
	})
}

// handleTriggerScan handles POST /api/v1/searches/:id/scan - Trigger a scan
// immediately, bypassing idle gating
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	job, err := s.engine.TriggerNow(id)
	if err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, job)
}
