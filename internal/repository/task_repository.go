package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status    model.TaskStatus
	ContextID string
	// ScheduledOn limits to tasks scheduled on that calendar day.
	ScheduledOn *time.Time
}

// SortPosition is one record's new position within its list.
type SortPosition struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sortOrder"`
}

// TaskRepository handles CRUD for tasks and subtasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Subtasks").
		Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, userID string, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Preload("Subtasks").Where("user_id = ?", userID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ContextID != "" {
		q = q.Where("context_id = ?", filter.ContextID)
	}
	if filter.ScheduledOn != nil {
		start := time.Date(filter.ScheduledOn.Year(), filter.ScheduledOn.Month(), filter.ScheduledOn.Day(), 0, 0, 0, 0, filter.ScheduledOn.Location())
		q = q.Where("scheduled_date >= ? AND scheduled_date < ?", start, start.AddDate(0, 0, 1))
	}

	var tasks []model.Task
	if err := q.Order("sort_order ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Updates applies the given column updates to exactly one task owned by
// userID. Returns gorm.ErrRecordNotFound when no row matched.
func (r *TaskRepository) Updates(ctx context.Context, userID, taskID string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// SearchByTitle returns the user's tasks whose title contains the query,
// most recently touched first.
func (r *TaskRepository) SearchByTitle(ctx context.Context, userID, query string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Preload("Subtasks").
		Where("user_id = ? AND title LIKE ?", userID, "%"+query+"%").
		Order("updated_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Reorder applies the given sort orders to the user's tasks.
func (r *TaskRepository) Reorder(ctx context.Context, userID string, items []SortPosition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := tx.Model(&model.Task{}).
				Where("id = ? AND user_id = ?", item.ID, userID).
				Update("sort_order", item.SortOrder).Error; err != nil {
				return fmt.Errorf("reorder task %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

// ListCompletedSince returns done tasks completed at or after since.
func (r *TaskRepository) ListCompletedSince(ctx context.Context, userID string, since time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND completed_at >= ?", userID, model.StatusDone, since).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdatedSince returns the user's tasks mutated at or after since.
func (r *TaskRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Subtasks").
		Where("user_id = ? AND updated_at >= ?", userID, since).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) CreateSubtask(ctx context.Context, sub *model.Subtask) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

// FindSubtask returns the subtask only when its parent task belongs to userID.
func (r *TaskRepository) FindSubtask(ctx context.Context, userID, subtaskID string) (*model.Subtask, error) {
	var sub model.Subtask
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = subtasks.task_id").
		Where("subtasks.id = ? AND tasks.user_id = ?", subtaskID, userID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *TaskRepository) UpdateSubtask(ctx context.Context, sub *model.Subtask, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(sub).Updates(updates).Error; err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return nil
}

func (r *TaskRepository) DeleteSubtask(ctx context.Context, sub *model.Subtask) error {
	if err := r.db.WithContext(ctx).Delete(sub).Error; err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return nil
}

// SubtasksUpdatedSince returns subtasks of the user's tasks mutated at or
// after since.
func (r *TaskRepository) SubtasksUpdatedSince(ctx context.Context, userID string, since time.Time) ([]model.Subtask, error) {
	var subs []model.Subtask
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = subtasks.task_id").
		Where("tasks.user_id = ? AND subtasks.updated_at >= ?", userID, since).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
