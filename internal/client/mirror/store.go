// Package mirror keeps a local read replica of the user's server-side
// data. Pulled records are upserted wholesale; the mirror never invents
// state of its own beyond the pull watermark.
package mirror

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bujo/internal/model"
)

// PullSet is the decoded body of one pull response.
type PullSet struct {
	Timestamp     int64                    `json:"timestamp"`
	Tasks         []model.Task             `json:"tasks"`
	Subtasks      []model.Subtask          `json:"subtasks"`
	Contexts      []model.Context          `json:"contexts"`
	Templates     []model.TaskTemplate     `json:"templates"`
	TemplateItems []model.TaskTemplateItem `json:"templateItems"`
	DayLogs       []model.DayLog           `json:"daylogs"`
	DayLogEntries []model.DayLogEntry      `json:"daylogEntries"`
}

// SyncState is a single-row table holding the pull watermark.
type SyncState struct {
	ID           uint  `gorm:"primaryKey"`
	LastPulledAt int64 `gorm:"not null;default:0"`
}

// Store reads and writes the mirrored tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ApplyPull upserts every record of the pull into the mirror and
// advances the watermark, all in one transaction. A pull either lands
// completely or not at all.
func (s *Store) ApplyPull(ctx context.Context, set *PullSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, set.Contexts); err != nil {
			return fmt.Errorf("mirror contexts: %w", err)
		}
		if err := upsert(tx, set.Tasks); err != nil {
			return fmt.Errorf("mirror tasks: %w", err)
		}
		if err := upsert(tx, set.Subtasks); err != nil {
			return fmt.Errorf("mirror subtasks: %w", err)
		}
		if err := upsert(tx, set.Templates); err != nil {
			return fmt.Errorf("mirror templates: %w", err)
		}
		if err := upsert(tx, set.TemplateItems); err != nil {
			return fmt.Errorf("mirror template items: %w", err)
		}
		if err := upsert(tx, set.DayLogs); err != nil {
			return fmt.Errorf("mirror daylogs: %w", err)
		}
		if err := upsert(tx, set.DayLogEntries); err != nil {
			return fmt.Errorf("mirror daylog entries: %w", err)
		}

		state := SyncState{ID: 1, LastPulledAt: set.Timestamp}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error
	})
}

func upsert[T any](tx *gorm.DB, records []T) error {
	if len(records) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
}

// LastPulledAt returns the stored pull watermark, zero before the first
// successful pull.
func (s *Store) LastPulledAt(ctx context.Context) (int64, error) {
	var state SyncState
	err := s.db.WithContext(ctx).First(&state, 1).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("read sync state: %w", err)
	}
	return state.LastPulledAt, nil
}

func (s *Store) ListTasks(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list mirrored tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) FindTask(ctx context.Context, taskID string) (*model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Store) ListContexts(ctx context.Context) ([]model.Context, error) {
	var contexts []model.Context
	err := s.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("sort_order ASC").
		Find(&contexts).Error
	if err != nil {
		return nil, fmt.Errorf("list mirrored contexts: %w", err)
	}
	return contexts, nil
}

func (s *Store) FindDayLogByDate(ctx context.Context, date time.Time) (*model.DayLog, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	var dayLog model.DayLog
	if err := s.db.WithContext(ctx).First(&dayLog, "date = ?", day).Error; err != nil {
		return nil, err
	}
	return &dayLog, nil
}

func (s *Store) EntriesForDayLog(ctx context.Context, dayLogID string) ([]model.DayLogEntry, error) {
	var entries []model.DayLogEntry
	err := s.db.WithContext(ctx).
		Where("day_log_id = ?", dayLogID).
		Order("context_id ASC, sort_order ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list mirrored entries: %w", err)
	}
	return entries, nil
}
