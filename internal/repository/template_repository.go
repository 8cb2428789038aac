package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
)

// TemplateRepository handles task templates and their items.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.TaskTemplate) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, userID, id string) (*model.TaskTemplate, error) {
	var tpl model.TaskTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("user_id = ? AND id = ?", userID, id).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepository) ListByUser(ctx context.Context, userID string) ([]model.TaskTemplate, error) {
	var tpls []model.TaskTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("user_id = ?", userID).
		Order("sort_order ASC").
		Find(&tpls).Error
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *TemplateRepository) Updates(ctx context.Context, tpl *model.TaskTemplate, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(tpl).Updates(updates).Error; err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, tpl *model.TaskTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", tpl.ID).Delete(&model.TaskTemplateItem{}).Error; err != nil {
			return fmt.Errorf("delete template items: %w", err)
		}
		if err := tx.Delete(tpl).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}

func (r *TemplateRepository) CreateItem(ctx context.Context, item *model.TaskTemplateItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create template item: %w", err)
	}
	return nil
}

// FindItem returns the item only when its template belongs to userID.
func (r *TemplateRepository) FindItem(ctx context.Context, userID, itemID string) (*model.TaskTemplateItem, error) {
	var item model.TaskTemplateItem
	err := r.db.WithContext(ctx).
		Joins("JOIN task_templates ON task_templates.id = task_template_items.template_id").
		Where("task_template_items.id = ? AND task_templates.user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *TemplateRepository) UpdateItem(ctx context.Context, item *model.TaskTemplateItem, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return fmt.Errorf("update template item: %w", err)
	}
	return nil
}

func (r *TemplateRepository) DeleteItem(ctx context.Context, item *model.TaskTemplateItem) error {
	if err := r.db.WithContext(ctx).Delete(item).Error; err != nil {
		return fmt.Errorf("delete template item: %w", err)
	}
	return nil
}

// UpdatedSince returns the user's templates mutated at or after since.
func (r *TemplateRepository) UpdatedSince(ctx context.Context, userID string, since time.Time) ([]model.TaskTemplate, error) {
	var tpls []model.TaskTemplate
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND updated_at >= ?", userID, since).
		Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

// ItemsByUser returns every template item belonging to the user. Items
// carry no update timestamp, so pull always sends the full set.
func (r *TemplateRepository) ItemsByUser(ctx context.Context, userID string) ([]model.TaskTemplateItem, error) {
	var items []model.TaskTemplateItem
	err := r.db.WithContext(ctx).
		Joins("JOIN task_templates ON task_templates.id = task_template_items.template_id").
		Where("task_templates.user_id = ?", userID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
