package api

import (
	"encoding/json"
	"net/http"

	"bujo/internal/model"
	"bujo/internal/repository"
	"bujo/internal/service"
)

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request, user *model.User) {
	contexts, err := s.contexts.List(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contexts)
}

func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input service.ContextInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	c, err := s.contexts.Create(r.Context(), user.ID, input)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input service.ContextInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	c, err := s.contexts.Update(r.Context(), user.ID, r.PathValue("id"), input)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleReorderContexts(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Items []repository.SortPosition `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.contexts.Reorder(r.Context(), user.ID, input.Items); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.contexts.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
