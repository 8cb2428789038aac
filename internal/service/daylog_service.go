package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// Migration destinations for a still-open task when a day is closed or
// reviewed.
const (
	DestinationTomorrow  = "tomorrow"
	DestinationBacklog   = "backlog"
	DestinationCancelled = "cancelled"
	DestinationScheduled = "scheduled"
)

// Migration is one decision about a task's fate.
type Migration struct {
	TaskID        string     `json:"taskId"`
	Destination   string     `json:"destination"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
}

// OpenDayResult is today's log plus every unclosed log before today.
type OpenDayResult struct {
	Today            *model.DayLog  `json:"today"`
	UnclosedPastLogs []model.DayLog `json:"unclosedPastLogs"`
}

// WeeklySummary aggregates the last seven days of completions.
type WeeklySummary struct {
	TotalCompleted         int    `json:"totalCompleted"`
	MostProductiveDay      string `json:"mostProductiveDay,omitempty"`
	MostProductiveDayCount int    `json:"mostProductiveDayCount"`
	DeadlinesMet           int    `json:"deadlinesMet"`
	DeadlinesTotal         int    `json:"deadlinesTotal"`
}

// DayLogService is the authority for per-day logs and entries. A log is
// open until CloseDay stamps its closedAt; from then on the log and its
// entries are immutable.
type DayLogService struct {
	logs     *repository.DayLogRepository
	tasks    *repository.TaskRepository
	contexts *repository.ContextRepository
	logger   *log.Logger
}

func NewDayLogService(logs *repository.DayLogRepository, tasks *repository.TaskRepository, contexts *repository.ContextRepository, logger *log.Logger) *DayLogService {
	if logger == nil {
		logger = log.New(os.Stderr, "[daylog] ", log.LstdFlags)
	}
	return &DayLogService{logs: logs, tasks: tasks, contexts: contexts, logger: logger}
}

// DateOnly truncates t to midnight in its location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Tomorrow returns midnight of the next calendar day.
func Tomorrow(now time.Time) time.Time {
	return DateOnly(now).AddDate(0, 0, 1)
}

// GetOrCreateTodayLog returns the user's log for today, creating it if
// absent. Concurrent callers race on the (date, user) uniqueness
// constraint; the loser re-reads the winner's row.
func (s *DayLogService) GetOrCreateTodayLog(ctx context.Context, userID string) (*model.DayLog, error) {
	today := DateOnly(time.Now())

	dayLog, err := s.logs.FindByDate(ctx, userID, today)
	switch {
	case err == nil:
		return dayLog, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, fmt.Errorf("find day log: %w", err)
	}

	dayLog = &model.DayLog{UserID: userID, Date: today}
	if createErr := s.logs.Create(ctx, dayLog); createErr != nil {
		// A concurrent call may have won the unique (date, user) race.
		if existing, findErr := s.logs.FindByDate(ctx, userID, today); findErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return dayLog, nil
}

// RecordEntry adds a day-log entry for the task, snapshotting its title
// and context name. The entry lands after every other entry of the same
// context. Fails with ErrDayLogClosed on a closed log.
func (s *DayLogService) RecordEntry(ctx context.Context, dayLogID string, task *model.Task, signifier model.Signifier) (*model.DayLogEntry, error) {
	dayLog, err := s.logs.FindByID(ctx, dayLogID)
	if err != nil {
		return nil, fmt.Errorf("find day log: %w", err)
	}
	if dayLog.ClosedAt != nil {
		return nil, ErrDayLogClosed
	}
	return s.recordEntry(ctx, s.logs, s.contexts, dayLog, task, signifier)
}

func (s *DayLogService) recordEntry(ctx context.Context, logs *repository.DayLogRepository, contexts *repository.ContextRepository, dayLog *model.DayLog, task *model.Task, signifier model.Signifier) (*model.DayLogEntry, error) {
	if signifier == "" {
		signifier = model.SignifierDot
	}

	var contextID *string
	var contextName *string
	if task.ContextID != "" {
		contextID = &task.ContextID
		if c, err := contexts.FindByID(ctx, task.UserID, task.ContextID); err == nil {
			contextName = &c.Name
		}
	}

	sortOrder, err := logs.NextEntrySortOrder(ctx, dayLog.ID, contextID)
	if err != nil {
		return nil, fmt.Errorf("next entry sort order: %w", err)
	}

	entry := &model.DayLogEntry{
		DayLogID:    dayLog.ID,
		TaskID:      &task.ID,
		TaskTitle:   task.Title,
		ContextID:   contextID,
		ContextName: contextName,
		Signifier:   signifier,
		SortOrder:   sortOrder,
	}
	if err := logs.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntrySignifier rewrites the signifier of the task's entry in the
// given log. On a closed log this is a silent no-op: closed logs are
// immutable snapshots, and idempotent status-sync flows must not break
// against them.
func (s *DayLogService) UpdateEntrySignifier(ctx context.Context, taskID, dayLogID string, signifier model.Signifier) error {
	dayLog, err := s.logs.FindByID(ctx, dayLogID)
	if err != nil {
		return fmt.Errorf("find day log: %w", err)
	}
	if dayLog.ClosedAt != nil {
		return nil
	}
	return s.logs.SetEntrySignifier(ctx, []string{dayLogID}, taskID, signifier)
}

// CloseDay applies one migration per still-open task and stamps today's
// log closed. The task updates, the entry signifier updates and the
// closedAt write commit or fail together; a partially closed day is never
// observable.
func (s *DayLogService) CloseDay(ctx context.Context, userID string, migrations []Migration) error {
	if err := validateMigrations(migrations); err != nil {
		return err
	}

	todayLog, err := s.GetOrCreateTodayLog(ctx, userID)
	if err != nil {
		return err
	}
	if todayLog.ClosedAt != nil {
		return ErrDayLogClosed
	}

	now := time.Now()
	return s.logs.Transaction(ctx, func(tx *gorm.DB) error {
		logs := s.logs.WithTx(tx)
		tasks := s.tasks.WithTx(tx)
		contexts := s.contexts.WithTx(tx)

		for _, m := range migrations {
			if err := s.applyMigration(ctx, logs, tasks, contexts, todayLog, []string{todayLog.ID}, userID, m, now); err != nil {
				return err
			}
		}

		return logs.SetClosed(ctx, todayLog.ID, now)
	})
}

// OpenDay returns today's (possibly freshly created) log together with
// every unclosed log strictly before today, so the caller can drive the
// forgotten-day review workflow.
func (s *DayLogService) OpenDay(ctx context.Context, userID string) (*OpenDayResult, error) {
	if _, err := s.GetOrCreateTodayLog(ctx, userID); err != nil {
		return nil, err
	}

	today := DateOnly(time.Now())

	todayWithEntries, err := s.logs.FindByDateWithEntries(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("load today log: %w", err)
	}

	unclosed, err := s.logs.ListUnclosedBefore(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("list unclosed logs: %w", err)
	}

	return &OpenDayResult{Today: todayWithEntries, UnclosedPastLogs: unclosed}, nil
}

// ReviewUnclosedDays applies migrations to tasks stranded in past
// unclosed logs. Destination semantics match CloseDay, but the past logs'
// closedAt stays untouched: review reassigns tasks without forging a
// close-of-day the user never performed.
func (s *DayLogService) ReviewUnclosedDays(ctx context.Context, userID string, migrations []Migration) error {
	if err := validateMigrations(migrations); err != nil {
		return err
	}

	today := DateOnly(time.Now())
	unclosed, err := s.logs.ListUnclosedBefore(ctx, userID, today)
	if err != nil {
		return fmt.Errorf("list unclosed logs: %w", err)
	}
	logIDs := make([]string, len(unclosed))
	for i := range unclosed {
		logIDs[i] = unclosed[i].ID
	}

	now := time.Now()
	return s.logs.Transaction(ctx, func(tx *gorm.DB) error {
		logs := s.logs.WithTx(tx)
		tasks := s.tasks.WithTx(tx)
		contexts := s.contexts.WithTx(tx)

		for _, m := range migrations {
			if err := s.applyMigration(ctx, logs, tasks, contexts, nil, logIDs, userID, m, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// applyMigration moves one task to its destination and rewrites the
// matching entry signifiers. When entryLog is non-nil and the task has no
// entry there yet (tomorrow destination only), one is created so the
// closed log records the carry-over.
func (s *DayLogService) applyMigration(ctx context.Context, logs *repository.DayLogRepository, tasks *repository.TaskRepository, contexts *repository.ContextRepository, entryLog *model.DayLog, logIDs []string, userID string, m Migration, now time.Time) error {
	switch m.Destination {
	case DestinationTomorrow:
		err := tasks.Updates(ctx, userID, m.TaskID, map[string]interface{}{
			"status":         model.StatusToday,
			"scheduled_date": Tomorrow(now),
		})
		if err != nil {
			return fmt.Errorf("migrate task %s to tomorrow: %w", m.TaskID, err)
		}
		return s.markMigratedForward(ctx, logs, tasks, contexts, entryLog, logIDs, userID, m.TaskID)

	case DestinationBacklog:
		err := tasks.Updates(ctx, userID, m.TaskID, map[string]interface{}{
			"status":         model.StatusBacklog,
			"scheduled_date": nil,
		})
		if err != nil {
			return fmt.Errorf("migrate task %s to backlog: %w", m.TaskID, err)
		}
		return logs.SetEntrySignifier(ctx, logIDs, m.TaskID, model.SignifierMigratedBacklog)

	case DestinationCancelled:
		err := tasks.Updates(ctx, userID, m.TaskID, map[string]interface{}{
			"status": model.StatusCancelled,
		})
		if err != nil {
			return fmt.Errorf("cancel task %s: %w", m.TaskID, err)
		}
		return logs.SetEntrySignifier(ctx, logIDs, m.TaskID, model.SignifierCancelled)

	case DestinationScheduled:
		updates := map[string]interface{}{
			"status":         model.StatusScheduled,
			"scheduled_date": nil,
		}
		if m.ScheduledDate != nil {
			updates["scheduled_date"] = DateOnly(*m.ScheduledDate)
		}
		if err := tasks.Updates(ctx, userID, m.TaskID, updates); err != nil {
			return fmt.Errorf("schedule task %s: %w", m.TaskID, err)
		}
		return logs.SetEntrySignifier(ctx, logIDs, m.TaskID, model.SignifierMigratedForward)

	default:
		return fmt.Errorf("%w: %q", ErrInvalidDestination, m.Destination)
	}
}

func (s *DayLogService) markMigratedForward(ctx context.Context, logs *repository.DayLogRepository, tasks *repository.TaskRepository, contexts *repository.ContextRepository, entryLog *model.DayLog, logIDs []string, userID, taskID string) error {
	if entryLog != nil {
		_, err := logs.FindEntryByTask(ctx, entryLog.ID, taskID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			task, err := tasks.FindByID(ctx, userID, taskID)
			if err != nil {
				return fmt.Errorf("load task %s for entry: %w", taskID, err)
			}
			_, err = s.recordEntry(ctx, logs, contexts, entryLog, task, model.SignifierMigratedForward)
			return err
		}
		if err != nil {
			return fmt.Errorf("find entry for task %s: %w", taskID, err)
		}
	}
	return logs.SetEntrySignifier(ctx, logIDs, taskID, model.SignifierMigratedForward)
}

// DayDetail returns the log for the given calendar date with its entries.
func (s *DayLogService) DayDetail(ctx context.Context, userID string, date time.Time) (*model.DayLog, error) {
	return s.logs.FindByDateWithEntries(ctx, userID, DateOnly(date))
}

// ListLogs returns the user's archive, newest first.
func (s *DayLogService) ListLogs(ctx context.Context, userID string, offset, limit int) ([]model.DayLog, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.logs.List(ctx, userID, offset, limit)
}

// ReorderEntries repositions entries within the given day's log. Closed
// logs reject reordering outright.
func (s *DayLogService) ReorderEntries(ctx context.Context, userID string, date time.Time, items []repository.EntryOrder) error {
	dayLog, err := s.logs.FindByDate(ctx, userID, DateOnly(date))
	if err != nil {
		return err
	}
	if dayLog.ClosedAt != nil {
		return ErrDayLogClosed
	}
	return s.logs.ReorderEntries(ctx, dayLog.ID, items)
}

// Summary aggregates completions over the trailing seven days.
func (s *DayLogService) Summary(ctx context.Context, userID string) (*WeeklySummary, error) {
	now := time.Now()
	since := DateOnly(now).AddDate(0, 0, -7)

	completed, err := s.tasks.ListCompletedSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}

	summary := &WeeklySummary{TotalCompleted: len(completed)}

	perDay := make(map[string]int)
	for _, task := range completed {
		if task.CompletedAt == nil {
			continue
		}
		day := task.CompletedAt.Format("2006-01-02")
		perDay[day]++
		if perDay[day] > summary.MostProductiveDayCount {
			summary.MostProductiveDayCount = perDay[day]
			summary.MostProductiveDay = day
		}
		if task.Deadline != nil {
			summary.DeadlinesTotal++
			if !task.CompletedAt.After(*task.Deadline) {
				summary.DeadlinesMet++
			}
		}
	}

	return summary, nil
}

func validateMigrations(migrations []Migration) error {
	for _, m := range migrations {
		if m.TaskID == "" {
			return fmt.Errorf("%w: migration without taskId", ErrInvalidDestination)
		}
		switch m.Destination {
		case DestinationTomorrow, DestinationBacklog, DestinationCancelled, DestinationScheduled:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidDestination, m.Destination)
		}
	}
	return nil
}
