package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// TemplateService manages reusable task bundles and their activation.
type TemplateService struct {
	templates *repository.TemplateRepository
	tasks     *repository.TaskRepository
	contexts  *repository.ContextRepository
	daylogs   *DayLogService
}

func NewTemplateService(templates *repository.TemplateRepository, tasks *repository.TaskRepository, contexts *repository.ContextRepository, daylogs *DayLogService) *TemplateService {
	return &TemplateService{templates: templates, tasks: tasks, contexts: contexts, daylogs: daylogs}
}

func (s *TemplateService) List(ctx context.Context, userID string) ([]model.TaskTemplate, error) {
	return s.templates.ListByUser(ctx, userID)
}

func (s *TemplateService) Get(ctx context.Context, userID, templateID string) (*model.TaskTemplate, error) {
	return s.templates.FindByID(ctx, userID, templateID)
}

func (s *TemplateService) Create(ctx context.Context, userID, name, icon, color string) (*model.TaskTemplate, error) {
	if name == "" {
		return nil, ErrTitleRequired
	}
	tpl := &model.TaskTemplate{UserID: userID, Name: name, Icon: icon, Color: color}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) Update(ctx context.Context, userID, templateID string, updates map[string]interface{}) (*model.TaskTemplate, error) {
	tpl, err := s.templates.FindByID(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Updates(ctx, tpl, updates); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) Delete(ctx context.Context, userID, templateID string) error {
	tpl, err := s.templates.FindByID(ctx, userID, templateID)
	if err != nil {
		return err
	}
	return s.templates.Delete(ctx, tpl)
}

func (s *TemplateService) AddItem(ctx context.Context, userID, templateID string, item model.TaskTemplateItem) (*model.TaskTemplateItem, error) {
	tpl, err := s.templates.FindByID(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}
	if item.Title == "" {
		return nil, ErrTitleRequired
	}
	item.TemplateID = tpl.ID
	item.SortOrder = len(tpl.Items)
	if err := s.templates.CreateItem(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *TemplateService) UpdateItem(ctx context.Context, userID, itemID string, updates map[string]interface{}) (*model.TaskTemplateItem, error) {
	item, err := s.templates.FindItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.templates.UpdateItem(ctx, item, updates); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *TemplateService) DeleteItem(ctx context.Context, userID, itemID string) error {
	item, err := s.templates.FindItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.templates.DeleteItem(ctx, item)
}

// Activate materializes the template's items as today-tasks with entries
// in today's log, unarchiving any archived context an item references.
func (s *TemplateService) Activate(ctx context.Context, userID, templateID string) ([]model.Task, error) {
	tpl, err := s.templates.FindByID(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	todayLog, err := s.daylogs.GetOrCreateTodayLog(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	var created []model.Task

	for _, item := range tpl.Items {
		if item.ContextID != "" {
			c, err := s.contexts.FindByID(ctx, userID, item.ContextID)
			switch {
			case err == nil:
				if c.IsArchived {
					if err := s.contexts.Unarchive(ctx, c.ID); err != nil {
						return created, err
					}
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// Context was hard-removed; the task keeps the stale id.
			default:
				return created, fmt.Errorf("find context %s: %w", item.ContextID, err)
			}
		}

		task := &model.Task{
			UserID:        userID,
			ContextID:     item.ContextID,
			Title:         item.Title,
			Description:   item.Description,
			Status:        model.StatusToday,
			ScheduledDate: &today,
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return created, err
		}
		if _, err := s.daylogs.RecordEntry(ctx, todayLog.ID, task, model.SignifierDot); err != nil {
			return created, err
		}
		created = append(created, *task)
	}

	return created, nil
}
