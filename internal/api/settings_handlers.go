package api

import (
	"encoding/json"
	"net/http"

	"bujo/internal/model"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, user *model.User) {
	prefs, err := s.settings.Get(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handleUpdateSettings merges the request body over the stored
// preferences and returns the merged document.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, user *model.User) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	prefs, err := s.settings.Update(r.Context(), user.ID, patch)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
