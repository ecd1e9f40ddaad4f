package api

import (
	"net/http"
	"strconv"
)

// parseLimit reads an optional ?limit= query parameter, 0 meaning unlimited
func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// handleListCandidates handles GET /api/v1/candidates - List retained
// candidates newest-first, optionally filtered by ?searchId=
func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	searchID := r.URL.Query().Get("searchId")
	candidates := s.engine.Candidates(searchID, parseLimit(r))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// handleListEvents handles GET /api/v1/events - List the scan event log
// newest-first
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events := s.engine.Events(parseLimit(r))

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleStatus handles GET /api/v1/status - Engine status snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

// handleActivityPing handles POST /api/v1/activity - Record user activity
func (s *Server) handleActivityPing(w http.ResponseWriter, r *http.Request) {
	s.activity.Touch()
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
