package service

import (
	"context"
	"fmt"
	"time"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// ChangeSet is one pull payload: every record of the user's that changed
// at or after the requested watermark, plus the server clock the client
// should store as the next watermark.
type ChangeSet struct {
	Timestamp     int64                    `json:"timestamp"`
	Tasks         []model.Task             `json:"tasks"`
	Subtasks      []model.Subtask          `json:"subtasks"`
	Contexts      []model.Context          `json:"contexts"`
	Templates     []model.TaskTemplate     `json:"templates"`
	TemplateItems []model.TaskTemplateItem `json:"templateItems"`
	DayLogs       []model.DayLog           `json:"daylogs"`
	DayLogEntries []model.DayLogEntry      `json:"daylogEntries"`
}

// ExportData is a full dump of the user's data for backup.
type ExportData struct {
	ExportedAt    time.Time                `json:"exportedAt"`
	Tasks         []model.Task             `json:"tasks"`
	Subtasks      []model.Subtask          `json:"subtasks"`
	Contexts      []model.Context          `json:"contexts"`
	Templates     []model.TaskTemplate     `json:"templates"`
	TemplateItems []model.TaskTemplateItem `json:"templateItems"`
	DayLogs       []model.DayLog           `json:"daylogs"`
	DayLogEntries []model.DayLogEntry      `json:"daylogEntries"`
}

// SyncService assembles incremental change sets for the offline client.
type SyncService struct {
	tasks     *repository.TaskRepository
	contexts  *repository.ContextRepository
	daylogs   *repository.DayLogRepository
	templates *repository.TemplateRepository
}

func NewSyncService(tasks *repository.TaskRepository, contexts *repository.ContextRepository, daylogs *repository.DayLogRepository, templates *repository.TemplateRepository) *SyncService {
	return &SyncService{tasks: tasks, contexts: contexts, daylogs: daylogs, templates: templates}
}

// ChangesSince collects everything that changed at or after since. The
// comparison is inclusive so a record written in the same millisecond as
// the previous pull is never skipped; the client deduplicates by upsert.
// The timestamp is taken before the queries run, so changes racing the
// pull are picked up again next time.
func (s *SyncService) ChangesSince(ctx context.Context, userID string, since time.Time) (*ChangeSet, error) {
	set := &ChangeSet{
		Timestamp:     time.Now().UnixMilli(),
		Tasks:         []model.Task{},
		Subtasks:      []model.Subtask{},
		Contexts:      []model.Context{},
		Templates:     []model.TaskTemplate{},
		TemplateItems: []model.TaskTemplateItem{},
		DayLogs:       []model.DayLog{},
		DayLogEntries: []model.DayLogEntry{},
	}

	var err error
	if set.Tasks, err = s.tasks.UpdatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull tasks: %w", err)
	}
	if set.Subtasks, err = s.tasks.SubtasksUpdatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull subtasks: %w", err)
	}
	if set.Contexts, err = s.contexts.UpdatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull contexts: %w", err)
	}
	if set.Templates, err = s.templates.UpdatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull templates: %w", err)
	}
	// Template items carry no change clock of their own, so every pull
	// returns the full set.
	if set.TemplateItems, err = s.templates.ItemsByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("pull template items: %w", err)
	}
	if set.DayLogs, err = s.daylogs.CreatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull daylogs: %w", err)
	}
	if set.DayLogEntries, err = s.daylogs.EntriesUpdatedSince(ctx, userID, since); err != nil {
		return nil, fmt.Errorf("pull daylog entries: %w", err)
	}
	return set, nil
}

// Export dumps everything the user owns. A change set since the zero
// time is by definition the whole account.
func (s *SyncService) Export(ctx context.Context, userID string) (*ExportData, error) {
	set, err := s.ChangesSince(ctx, userID, time.Time{})
	if err != nil {
		return nil, err
	}
	return &ExportData{
		ExportedAt:    time.Now(),
		Tasks:         set.Tasks,
		Subtasks:      set.Subtasks,
		Contexts:      set.Contexts,
		Templates:     set.Templates,
		TemplateItems: set.TemplateItems,
		DayLogs:       set.DayLogs,
		DayLogEntries: set.DayLogEntries,
	}, nil
}
