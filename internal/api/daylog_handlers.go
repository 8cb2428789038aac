package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bujo/internal/model"
	"bujo/internal/repository"
	"bujo/internal/service"
)

type migrationsBody struct {
	Migrations []service.Migration `json:"migrations"`
}

func (s *Server) handleOpenDay(w http.ResponseWriter, r *http.Request, user *model.User) {
	result, err := s.daylogs.OpenDay(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCloseDay(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body migrationsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Migrations == nil {
		badRequest(w, "Migrations array is required")
		return
	}

	if err := s.daylogs.CloseDay(r.Context(), user.ID, body.Migrations); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReviewDays(w http.ResponseWriter, r *http.Request, user *model.User) {
	var body migrationsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Migrations == nil {
		badRequest(w, "Migrations array is required")
		return
	}

	if err := s.daylogs.ReviewUnclosedDays(r.Context(), user.ID, body.Migrations); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListDayLogs(w http.ResponseWriter, r *http.Request, user *model.User) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}

	logs, err := s.daylogs.ListLogs(r.Context(), user.ID, skip, 30)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleDayDetail(w http.ResponseWriter, r *http.Request, user *model.User) {
	date, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		badRequest(w, "invalid date, expected YYYY-MM-DD")
		return
	}

	dayLog, err := s.daylogs.DayDetail(r.Context(), user.ID, date)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dayLog)
}

func (s *Server) handleReorderEntries(w http.ResponseWriter, r *http.Request, user *model.User) {
	date, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		badRequest(w, "invalid date, expected YYYY-MM-DD")
		return
	}

	var body struct {
		Items []repository.EntryOrder `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Items == nil {
		badRequest(w, "Items array is required")
		return
	}

	if err := s.daylogs.ReorderEntries(r.Context(), user.ID, date, body.Items); err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request, user *model.User) {
	summary, err := s.daylogs.Summary(r.Context(), user.ID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
