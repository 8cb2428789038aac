package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
)

// ContextWithTaskCount pairs a context with the number of tasks in it.
type ContextWithTaskCount struct {
	model.Context
	TaskCount int64 `json:"taskCount"`
}

// ContextRepository manages GTD contexts.
type ContextRepository struct {
	db *gorm.DB
}

func NewContextRepository(db *gorm.DB) *ContextRepository {
	return &ContextRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ContextRepository) WithTx(tx *gorm.DB) *ContextRepository {
	return &ContextRepository{db: tx}
}

// EnsureSystemContext returns the user's system Inbox context, creating it
// if it does not exist yet.
func (r *ContextRepository) EnsureSystemContext(ctx context.Context, userID string) (*model.Context, error) {
	var sys model.Context
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND is_system = ?", userID, true).First(&sys).Error
	switch {
	case err == nil:
		return &sys, nil
	case err == gorm.ErrRecordNotFound:
		sys = model.Context{
			UserID:   userID,
			Name:     model.SystemContextName,
			IsSystem: true,
		}
		if err := db.Create(&sys).Error; err != nil {
			return nil, fmt.Errorf("create system context: %w", err)
		}
		return &sys, nil
	default:
		return nil, fmt.Errorf("find system context: %w", err)
	}
}

func (r *ContextRepository) FindByID(ctx context.Context, userID, id string) (*model.Context, error) {
	var c model.Context
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListActive returns the user's unarchived contexts ordered by sort order,
// each with its task count.
func (r *ContextRepository) ListActive(ctx context.Context, userID string) ([]ContextWithTaskCount, error) {
	var contexts []ContextWithTaskCount
	err := r.db.WithContext(ctx).Model(&model.Context{}).
		Select("contexts.*, (SELECT COUNT(*) FROM tasks WHERE tasks.context_id = contexts.id) AS task_count").
		Where("user_id = ? AND is_archived = ?", userID, false).
		Order("sort_order ASC").
		Scan(&contexts).Error
	if err != nil {
		return nil, err
	}
	return contexts, nil
}

func (r *ContextRepository) Create(ctx context.Context, c *model.Context) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	return nil
}

func (r *ContextRepository) Updates(ctx context.Context, c *model.Context, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
		return fmt.Errorf("update context: %w", err)
	}
	return nil
}

// Archive soft-deletes a context. The system context must never reach this
// path; callers enforce that.
func (r *ContextRepository) Archive(ctx context.Context, c *model.Context) error {
	if err := r.db.WithContext(ctx).Model(c).Update("is_archived", true).Error; err != nil {
		return fmt.Errorf("archive context: %w", err)
	}
	return nil
}

func (r *ContextRepository) Unarchive(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&model.Context{}).
		Where("id = ?", id).Update("is_archived", false).Error; err != nil {
		return fmt.Errorf("unarchive context: %w", err)
	}
	return nil
}

// MaxSortOrder returns the highest sort order among the user's contexts,
// or 0 when none exist.
func (r *ContextRepository) MaxSortOrder(ctx context.Context, userID string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&model.Context{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max, nil
}

// Reorder applies the given sort orders to the user's contexts.
func (r *ContextRepository) Reorder(ctx context.Context, userID string, items []SortPosition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := tx.Model(&model.Context{}).
				Where("id = ? AND user_id = ?", item.ID, userID).
				Update("sort_order", item.SortOrder).Error; err != nil {
				return fmt.Errorf("reorder context %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// UpdatedSince returns the user's contexts mutated at or after since.
func (r *ContextRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]model.Context, error) {
	var contexts []model.Context
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND updated_at >= ?", userID, since).
		Find(&contexts).Error; err != nil {
		return nil, err
	}
	return contexts, nil
}
