// Package api exposes the HTTP surface of the planner: task, context,
// subtask and template CRUD, the day-log lifecycle endpoints, and the
// sync pull/push pair the offline client replays against.
package api

import (
	"log"
	"net/http"
	"os"

	"bujo/internal/service"
)

// Server routes HTTP requests to the service layer.
type Server struct {
	mux       *http.ServeMux
	auth      Authenticator
	tasks     *service.TaskService
	contexts  *service.ContextService
	daylogs   *service.DayLogService
	templates *service.TemplateService
	sync      *service.SyncService
	settings  *service.SettingsService
	logger    *log.Logger
}

func NewServer(auth Authenticator, tasks *service.TaskService, contexts *service.ContextService, daylogs *service.DayLogService, templates *service.TemplateService, sync *service.SyncService, settings *service.SettingsService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		auth:      auth,
		tasks:     tasks,
		contexts:  contexts,
		daylogs:   daylogs,
		templates: templates,
		sync:      sync,
		settings:  settings,
		logger:    logger,
	}
	s.routes()
	return s
}

// Handler returns the root handler for the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/tasks", s.withUser(s.handleListTasks))
	s.mux.HandleFunc("POST /api/tasks", s.withUser(s.handleCreateTask))
	s.mux.HandleFunc("POST /api/tasks/reorder", s.withUser(s.handleReorderTasks))
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.withUser(s.handleUpdateTask))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.withUser(s.handleDeleteTask))
	s.mux.HandleFunc("POST /api/tasks/{id}/subtasks", s.withUser(s.handleCreateSubtask))
	s.mux.HandleFunc("PATCH /api/subtasks/{id}", s.withUser(s.handleUpdateSubtask))
	s.mux.HandleFunc("DELETE /api/subtasks/{id}", s.withUser(s.handleDeleteSubtask))

	s.mux.HandleFunc("GET /api/contexts", s.withUser(s.handleListContexts))
	s.mux.HandleFunc("POST /api/contexts", s.withUser(s.handleCreateContext))
	s.mux.HandleFunc("POST /api/contexts/reorder", s.withUser(s.handleReorderContexts))
	s.mux.HandleFunc("PATCH /api/contexts/{id}", s.withUser(s.handleUpdateContext))
	s.mux.HandleFunc("DELETE /api/contexts/{id}", s.withUser(s.handleDeleteContext))

	s.mux.HandleFunc("GET /api/daylogs", s.withUser(s.handleListDayLogs))
	s.mux.HandleFunc("POST /api/daylogs/open", s.withUser(s.handleOpenDay))
	s.mux.HandleFunc("POST /api/daylogs/close", s.withUser(s.handleCloseDay))
	s.mux.HandleFunc("POST /api/daylogs/review", s.withUser(s.handleReviewDays))
	s.mux.HandleFunc("GET /api/daylogs/weekly-summary", s.withUser(s.handleWeeklySummary))
	s.mux.HandleFunc("GET /api/daylogs/{date}", s.withUser(s.handleDayDetail))
	s.mux.HandleFunc("POST /api/daylogs/{date}/entries/reorder", s.withUser(s.handleReorderEntries))

	s.mux.HandleFunc("GET /api/templates", s.withUser(s.handleListTemplates))
	s.mux.HandleFunc("POST /api/templates", s.withUser(s.handleCreateTemplate))
	s.mux.HandleFunc("PATCH /api/templates/{id}", s.withUser(s.handleUpdateTemplate))
	s.mux.HandleFunc("DELETE /api/templates/{id}", s.withUser(s.handleDeleteTemplate))
	s.mux.HandleFunc("POST /api/templates/{id}/activate", s.withUser(s.handleActivateTemplate))
	s.mux.HandleFunc("POST /api/templates/{id}/items", s.withUser(s.handleCreateTemplateItem))
	s.mux.HandleFunc("PATCH /api/template-items/{id}", s.withUser(s.handleUpdateTemplateItem))
	s.mux.HandleFunc("DELETE /api/template-items/{id}", s.withUser(s.handleDeleteTemplateItem))

	s.mux.HandleFunc("GET /api/search", s.withUser(s.handleSearchTasks))
	s.mux.HandleFunc("GET /api/export", s.withUser(s.handleExport))
	s.mux.HandleFunc("GET /api/settings", s.withUser(s.handleGetSettings))
	s.mux.HandleFunc("PATCH /api/settings", s.withUser(s.handleUpdateSettings))

	s.mux.HandleFunc("GET /api/sync/pull", s.withUser(s.handlePull))
	s.mux.HandleFunc("POST /api/sync/push", s.withUser(s.handlePush))
}
