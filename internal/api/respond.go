package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"bujo/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func unauthorized(w http.ResponseWriter) {
	errorJSON(w, http.StatusUnauthorized, "Unauthorized")
}

func badRequest(w http.ResponseWriter, message string) {
	errorJSON(w, http.StatusBadRequest, message)
}

func notFound(w http.ResponseWriter) {
	errorJSON(w, http.StatusNotFound, "Not found")
}

// serviceError maps service and storage errors onto HTTP statuses.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		notFound(w)
	case errors.Is(err, service.ErrDayLogClosed):
		badRequest(w, "day log is closed")
	case errors.Is(err, service.ErrSystemContext):
		badRequest(w, "system context cannot be modified")
	case errors.Is(err, service.ErrInvalidDestination):
		badRequest(w, err.Error())
	case errors.Is(err, service.ErrTitleRequired):
		badRequest(w, err.Error())
	case errors.Is(err, service.ErrSearchQueryRequired):
		badRequest(w, err.Error())
	default:
		s.logger.Printf("internal error: %v", err)
		errorJSON(w, http.StatusInternalServerError, "Internal server error")
	}
}
