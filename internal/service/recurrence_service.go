package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// RecurrenceService materializes the next occurrence of a recurring task
// once its current occurrence is completed.
type RecurrenceService struct {
	tasks  *repository.TaskRepository
	logger *log.Logger
}

func NewRecurrenceService(tasks *repository.TaskRepository, logger *log.Logger) *RecurrenceService {
	if logger == nil {
		logger = log.New(os.Stderr, "[recurrence] ", log.LstdFlags)
	}
	return &RecurrenceService{tasks: tasks, logger: logger}
}

// NextOccurrence computes the first occurrence of the rule strictly after
// the given time. Rules are standard 5-field cron specs or descriptors
// like "@daily"; the bare words "daily", "weekly", "monthly" and "yearly"
// are accepted as shorthand.
func NextOccurrence(rule string, after time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(normalizeRule(rule))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse recurrence rule %q: %w", rule, err)
	}

	next := schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("recurrence rule %q has no next occurrence", rule)
	}
	return next, nil
}

// ScheduleNext creates the follow-up task for a completed recurring task:
// same title, description, context and estimate, scheduled at the rule's
// next occurrence. Subtasks and history are not copied.
func (s *RecurrenceService) ScheduleNext(ctx context.Context, task *model.Task) (*model.Task, error) {
	if !task.IsRecurring || task.RecurringRule == nil {
		return nil, fmt.Errorf("task %s is not recurring", task.ID)
	}

	next, err := NextOccurrence(*task.RecurringRule, time.Now())
	if err != nil {
		return nil, err
	}

	occurrence := &model.Task{
		UserID:           task.UserID,
		ContextID:        task.ContextID,
		Title:            task.Title,
		Description:      task.Description,
		EstimatedMinutes: task.EstimatedMinutes,
		Status:           model.StatusScheduled,
		ScheduledDate:    &next,
		IsRecurring:      true,
		RecurringRule:    task.RecurringRule,
	}
	if err := s.tasks.Create(ctx, occurrence); err != nil {
		return nil, err
	}

	s.logger.Printf("Scheduled next occurrence of %q at %s", task.Title, next.Format("2006-01-02"))
	return occurrence, nil
}

func normalizeRule(rule string) string {
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case "daily":
		return "@daily"
	case "weekly":
		return "@weekly"
	case "monthly":
		return "@monthly"
	case "yearly", "annually":
		return "@yearly"
	}
	return strings.TrimSpace(rule)
}
