package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// CreateTaskInput represents data required to create a task.
type CreateTaskInput struct {
	Title            string           `json:"title"`
	Description      *string          `json:"description,omitempty"`
	ContextID        string           `json:"contextId,omitempty"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	EstimatedMinutes *int             `json:"estimatedMinutes,omitempty"`
	ScheduledDate    *time.Time       `json:"scheduledDate,omitempty"`
	Status           model.TaskStatus `json:"status,omitempty"`
}

// UpdateTaskInput carries partial updates; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title            *string           `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	ContextID        *string           `json:"contextId,omitempty"`
	Deadline         *time.Time        `json:"deadline,omitempty"`
	EstimatedMinutes *int              `json:"estimatedMinutes,omitempty"`
	ScheduledDate    *time.Time        `json:"scheduledDate,omitempty"`
	SortOrder        *int              `json:"sortOrder,omitempty"`
	IsRecurring      *bool             `json:"isRecurring,omitempty"`
	RecurringRule    *string           `json:"recurringRule,omitempty"`
	Status           *model.TaskStatus `json:"status,omitempty"`
}

// TaskService wraps task-related business logic, including the day-log
// side effects of status transitions.
type TaskService struct {
	tasks      *repository.TaskRepository
	contexts   *repository.ContextRepository
	daylogs    *DayLogService
	recurrence *RecurrenceService
	logger     *log.Logger
}

func NewTaskService(tasks *repository.TaskRepository, contexts *repository.ContextRepository, daylogs *DayLogService, recurrence *RecurrenceService, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.New(os.Stderr, "[task] ", log.LstdFlags)
	}
	return &TaskService{tasks: tasks, contexts: contexts, daylogs: daylogs, recurrence: recurrence, logger: logger}
}

// CreateTask creates a task, defaulting the context to the system Inbox
// and the status by context. A today-task lands in today's log.
func (s *TaskService) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, ErrTitleRequired
	}

	inbox, err := s.contexts.EnsureSystemContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	contextID := input.ContextID
	if contextID == "" {
		contextID = inbox.ID
	}

	status := input.Status
	if status == "" {
		if contextID == inbox.ID {
			status = model.StatusInbox
		} else {
			status = model.StatusToday
		}
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid task status %q", status)
	}

	scheduledDate := input.ScheduledDate
	if scheduledDate == nil && status == model.StatusToday {
		now := time.Now()
		scheduledDate = &now
	}

	task := &model.Task{
		UserID:           userID,
		ContextID:        contextID,
		Title:            input.Title,
		Description:      input.Description,
		Status:           status,
		Deadline:         input.Deadline,
		EstimatedMinutes: input.EstimatedMinutes,
		ScheduledDate:    scheduledDate,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	if status == model.StatusToday {
		if err := s.ensureTodayEntry(ctx, task); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// UpdateTask applies a partial update. Transitions into done stamp
// completedAt, flip the day-log signifier and fire the recurrence
// generator; transitions into today schedule the task for now and make
// sure today's log carries an entry for it.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
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
	if input.Deadline != nil {
		updates["deadline"] = *input.Deadline
	}
	if input.EstimatedMinutes != nil {
		updates["estimated_minutes"] = *input.EstimatedMinutes
	}
	if input.ScheduledDate != nil {
		updates["scheduled_date"] = *input.ScheduledDate
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}
	if input.IsRecurring != nil {
		updates["is_recurring"] = *input.IsRecurring
	}
	if input.RecurringRule != nil {
		updates["recurring_rule"] = *input.RecurringRule
	}

	var becameDone, becameToday bool
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, fmt.Errorf("invalid task status %q", *input.Status)
		}
		updates["status"] = *input.Status

		if *input.Status == model.StatusDone && task.Status != model.StatusDone {
			becameDone = true
			updates["completed_at"] = time.Now()
		}
		if *input.Status == model.StatusToday && task.Status != model.StatusToday {
			becameToday = true
			updates["scheduled_date"] = time.Now()
		}
	}

	if len(updates) > 0 {
		if err := s.tasks.Updates(ctx, userID, taskID, updates); err != nil {
			return nil, err
		}
	}

	updated, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if becameDone {
		todayLog, err := s.daylogs.GetOrCreateTodayLog(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.daylogs.UpdateEntrySignifier(ctx, taskID, todayLog.ID, model.SignifierDone); err != nil {
			return nil, err
		}

		if updated.IsRecurring && updated.RecurringRule != nil {
			// Best effort: a broken rule must not block completion.
			if _, err := s.recurrence.ScheduleNext(ctx, updated); err != nil {
				s.logger.Printf("WARNING: failed to schedule next occurrence of %s: %v", taskID, err)
			}
		}
	}

	if becameToday {
		if err := s.ensureTodayEntry(ctx, updated); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

func (s *TaskService) ensureTodayEntry(ctx context.Context, task *model.Task) error {
	todayLog, err := s.daylogs.GetOrCreateTodayLog(ctx, task.UserID)
	if err != nil {
		return err
	}
	if _, err := s.daylogs.RecordEntry(ctx, todayLog.ID, task, model.SignifierDot); err != nil {
		return err
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID string, filter repository.TaskFilter) ([]model.Task, error) {
	return s.tasks.List(ctx, userID, filter)
}

// SearchTasks finds the user's tasks by title substring.
func (s *TaskService) SearchTasks(ctx context.Context, userID, query string) ([]model.Task, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrSearchQueryRequired
	}
	return s.tasks.SearchByTitle(ctx, userID, query)
}

// ReorderTasks repositions tasks within their lists.
func (s *TaskService) ReorderTasks(ctx context.Context, userID string, items []repository.SortPosition) error {
	return s.tasks.Reorder(ctx, userID, items)
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return s.tasks.FindByID(ctx, userID, taskID)
}

func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.tasks.FindByID(ctx, userID, taskID); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, userID, taskID)
}

// AddSubtask appends a subtask to the task's checklist.
func (s *TaskService) AddSubtask(ctx context.Context, userID, taskID string, title string, description *string) (*model.Subtask, error) {
	if title == "" {
		return nil, ErrTitleRequired
	}
	task, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	sub := &model.Subtask{
		TaskID:      task.ID,
		Title:       title,
		Description: description,
		SortOrder:   len(task.Subtasks),
	}
	if err := s.tasks.CreateSubtask(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *TaskService) UpdateSubtask(ctx context.Context, userID, subtaskID string, updates map[string]interface{}) (*model.Subtask, error) {
	sub, err := s.tasks.FindSubtask(ctx, userID, subtaskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.UpdateSubtask(ctx, sub, updates); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *TaskService) DeleteSubtask(ctx context.Context, userID, subtaskID string) error {
	sub, err := s.tasks.FindSubtask(ctx, userID, subtaskID)
	if err != nil {
		return err
	}
	return s.tasks.DeleteSubtask(ctx, sub)
}
