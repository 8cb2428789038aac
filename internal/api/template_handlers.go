package api

import (
	"encoding/json"
	"net/http"

	"bujo/internal/model"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request, user *model.User) {
	templates, err := s.templates.List(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Name  string `json:"name"`
		Icon  string `json:"icon"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	tpl, err := s.templates.Create(r.Context(), user.ID, input.Name, input.Icon, input.Color)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Name      *string `json:"name,omitempty"`
		Icon      *string `json:"icon,omitempty"`
		Color     *string `json:"color,omitempty"`
		SortOrder *int    `json:"sortOrder,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Icon != nil {
		updates["icon"] = *input.Icon
	}
	if input.Color != nil {
		updates["color"] = *input.Color
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}

	tpl, err := s.templates.Update(r.Context(), user.ID, r.PathValue("id"), updates)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.templates.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleActivateTemplate(w http.ResponseWriter, r *http.Request, user *model.User) {
	tasks, err := s.templates.Activate(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tasks)
}

func (s *Server) handleCreateTemplateItem(w http.ResponseWriter, r *http.Request, user *model.User) {
	var item model.TaskTemplateItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	created, err := s.templates.AddItem(r.Context(), user.ID, r.PathValue("id"), item)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTemplateItem(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
		ContextID   *string `json:"contextId,omitempty"`
		SortOrder   *int    `json:"sortOrder,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ContextID != nil {
		updates["context_id"] = *input.ContextID
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}

	item, err := s.templates.UpdateItem(r.Context(), user.ID, r.PathValue("id"), updates)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteTemplateItem(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.templates.DeleteItem(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
