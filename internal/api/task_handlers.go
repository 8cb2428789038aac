package api

import (
	"encoding/json"
	"net/http"
	"time"

	"bujo/internal/model"
	"bujo/internal/repository"
	"bujo/internal/service"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, user *model.User) {
	q := r.URL.Query()

	filter := repository.TaskFilter{
		Status:    model.TaskStatus(q.Get("status")),
		ContextID: q.Get("contextId"),
	}
	if raw := q.Get("scheduledDate"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "invalid scheduledDate, expected YYYY-MM-DD")
			return
		}
		filter.ScheduledOn = &date
	}

	tasks, err := s.tasks.ListTasks(r.Context(), user.ID, filter)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input service.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	task, err := s.tasks.CreateTask(r.Context(), user.ID, input)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input service.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	task, err := s.tasks.UpdateTask(r.Context(), user.ID, r.PathValue("id"), input)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.tasks.DeleteTask(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request, user *model.User) {
	tasks, err := s.tasks.SearchTasks(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleReorderTasks(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Items []repository.SortPosition `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.tasks.ReorderTasks(r.Context(), user.ID, input.Items); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateSubtask(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Title       string  `json:"title"`
		Description *string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	sub, err := s.tasks.AddSubtask(r.Context(), user.ID, r.PathValue("id"), input.Title, input.Description)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleUpdateSubtask(w http.ResponseWriter, r *http.Request, user *model.User) {
	var input struct {
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
		IsDone      *bool   `json:"isDone,omitempty"`
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
	if input.IsDone != nil {
		updates["is_done"] = *input.IsDone
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}

	sub, err := s.tasks.UpdateSubtask(r.Context(), user.ID, r.PathValue("id"), updates)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubtask(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := s.tasks.DeleteSubtask(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
