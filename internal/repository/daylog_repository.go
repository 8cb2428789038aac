package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
)

// EntryOrder is one entry's new position within its day log.
type EntryOrder struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sortOrder"`
}

// DayLogRepository handles day logs and their entries.
type DayLogRepository struct {
	db *gorm.DB
}

func NewDayLogRepository(db *gorm.DB) *DayLogRepository {
	return &DayLogRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DayLogRepository) WithTx(tx *gorm.DB) *DayLogRepository {
	return &DayLogRepository{db: tx}
}

// Transaction runs fn inside a database transaction.
func (r *DayLogRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *DayLogRepository) Create(ctx context.Context, dayLog *model.DayLog) error {
	if err := r.db.WithContext(ctx).Create(dayLog).Error; err != nil {
		return fmt.Errorf("create day log: %w", err)
	}
	return nil
}

func (r *DayLogRepository) FindByID(ctx context.Context, id string) (*model.DayLog, error) {
	var dayLog model.DayLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dayLog).Error; err != nil {
		return nil, err
	}
	return &dayLog, nil
}

func (r *DayLogRepository) FindByDate(ctx context.Context, userID string, date time.Time) (*model.DayLog, error) {
	var dayLog model.DayLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&dayLog).Error; err != nil {
		return nil, err
	}
	return &dayLog, nil
}

// FindByDateWithEntries loads the log for the given day with entries
// ordered by context then sort order, so closed logs render from their
// snapshots alone.
func (r *DayLogRepository) FindByDateWithEntries(ctx context.Context, userID string, date time.Time) (*model.DayLog, error) {
	var dayLog model.DayLog
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("context_id ASC, sort_order ASC")
		}).
		Where("user_id = ? AND date = ?", userID, date).
		First(&dayLog).Error
	if err != nil {
		return nil, err
	}
	return &dayLog, nil
}

// ListUnclosedBefore returns the user's open logs strictly before the
// given date, newest first, with their entries.
func (r *DayLogRepository) ListUnclosedBefore(ctx context.Context, userID string, date time.Time) ([]model.DayLog, error) {
	var logs []model.DayLog
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("context_id ASC, sort_order ASC")
		}).
		Where("user_id = ? AND closed_at IS NULL AND date < ?", userID, date).
		Order("date DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// List returns the user's logs with entries, newest first, paginated.
func (r *DayLogRepository) List(ctx context.Context, userID string, offset, limit int) ([]model.DayLog, error) {
	var logs []model.DayLog
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("context_id ASC, sort_order ASC")
		}).
		Where("user_id = ?", userID).
		Order("date DESC").
		Offset(offset).Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// SetClosed stamps the log's closedAt.
func (r *DayLogRepository) SetClosed(ctx context.Context, dayLogID string, closedAt time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.DayLog{}).
		Where("id = ?", dayLogID).
		Update("closed_at", closedAt).Error; err != nil {
		return fmt.Errorf("close day log: %w", err)
	}
	return nil
}

func (r *DayLogRepository) CreateEntry(ctx context.Context, entry *model.DayLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create day log entry: %w", err)
	}
	return nil
}

// FindEntryByTask returns the entry for the given task in the given log,
// or gorm.ErrRecordNotFound.
func (r *DayLogRepository) FindEntryByTask(ctx context.Context, dayLogID, taskID string) (*model.DayLogEntry, error) {
	var entry model.DayLogEntry
	if err := r.db.WithContext(ctx).
		Where("day_log_id = ? AND task_id = ?", dayLogID, taskID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// NextEntrySortOrder returns the next sort position for the
// (dayLog, context) pair: current maximum plus one, starting at 0.
func (r *DayLogRepository) NextEntrySortOrder(ctx context.Context, dayLogID string, contextID *string) (int, error) {
	q := r.db.WithContext(ctx).Model(&model.DayLogEntry{}).Where("day_log_id = ?", dayLogID)
	if contextID != nil {
		q = q.Where("context_id = ?", *contextID)
	} else {
		q = q.Where("context_id IS NULL")
	}

	var max int
	if err := q.Select("COALESCE(MAX(sort_order), -1)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

// SetEntrySignifier updates the signifier on every entry for the task in
// any of the given logs. Missing entries are not an error.
func (r *DayLogRepository) SetEntrySignifier(ctx context.Context, dayLogIDs []string, taskID string, signifier model.Signifier) error {
	if len(dayLogIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&model.DayLogEntry{}).
		Where("day_log_id IN ? AND task_id = ?", dayLogIDs, taskID).
		Update("signifier", signifier).Error; err != nil {
		return fmt.Errorf("update entry signifier: %w", err)
	}
	return nil
}

// ReorderEntries applies the given sort orders to entries of one log.
func (r *DayLogRepository) ReorderEntries(ctx context.Context, dayLogID string, items []EntryOrder) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := tx.Model(&model.DayLogEntry{}).
				Where("id = ? AND day_log_id = ?", item.ID, dayLogID).
				Update("sort_order", item.SortOrder).Error; err != nil {
				return fmt.Errorf("reorder entry %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// CreatedSince returns the user's day logs created at or after since.
func (r *DayLogRepository) CreatedSince(ctx context.Context, userID string, since time.Time) ([]model.DayLog, error) {
	var logs []model.DayLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// EntriesUpdatedSince returns entries of the user's logs mutated at or
// after since.
func (r *DayLogRepository) EntriesUpdatedSince(ctx context.Context, userID string, since time.Time) ([]model.DayLogEntry, error) {
	var entries []model.DayLogEntry
	err := r.db.WithContext(ctx).
		Joins("JOIN day_logs ON day_logs.id = day_log_entries.day_log_id").
		Where("day_logs.user_id = ? AND day_log_entries.updated_at >= ?", userID, since).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
