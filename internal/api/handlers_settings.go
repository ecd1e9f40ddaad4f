package api

import (
	"net/http"

	"github.com/deal-scanner/internal/models"
)

// handleGetSettings handles GET /api/v1/settings - Get automation settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.Settings())
}

// handleUpdateSettings handles PUT /api/v1/settings - Update automation
// settings. The full settings object is replaced; omitted boolean fields
// come through as false.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.AutomationSettings
	if err := parseJSONBody(r, &settings); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	if err := s.registry.UpdateSettings(r.Context(), settings); err != nil {
		respondForError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, s.registry.Settings())
}
