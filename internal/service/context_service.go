package service

import (
	"context"

	"bujo/internal/model"
	"bujo/internal/repository"
)

// ContextInput carries context create/update fields.
type ContextInput struct {
	Name  *string `json:"name,omitempty"`
	Icon  *string `json:"icon,omitempty"`
	Color *string `json:"color,omitempty"`
}

// ContextService enforces the system-context invariants around context CRUD.
type ContextService struct {
	repo *repository.ContextRepository
}

func NewContextService(repo *repository.ContextRepository) *ContextService {
	return &ContextService{repo: repo}
}

func (s *ContextService) List(ctx context.Context, userID string) ([]repository.ContextWithTaskCount, error) {
	if _, err := s.repo.EnsureSystemContext(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx, userID)
}

func (s *ContextService) Create(ctx context.Context, userID string, input ContextInput) (*model.Context, error) {
	if input.Name == nil || *input.Name == "" {
		return nil, ErrTitleRequired
	}

	max, err := s.repo.MaxSortOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := &model.Context{
		UserID:    userID,
		Name:      *input.Name,
		SortOrder: max + 1,
	}
	if input.Icon != nil {
		c.Icon = *input.Icon
	}
	if input.Color != nil {
		c.Color = *input.Color
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update renames or restyles a context. The system context's name is
// immutable.
func (s *ContextService) Update(ctx context.Context, userID, contextID string, input ContextInput) (*model.Context, error) {
	c, err := s.repo.FindByID(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}

	if c.IsSystem && input.Name != nil && *input.Name != c.Name {
		return nil, ErrSystemContext
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Icon != nil {
		updates["icon"] = *input.Icon
	}
	if input.Color != nil {
		updates["color"] = *input.Color
	}
	if len(updates) > 0 {
		if err := s.repo.Updates(ctx, c, updates); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Reorder repositions the user's contexts.
func (s *ContextService) Reorder(ctx context.Context, userID string, items []repository.SortPosition) error {
	return s.repo.Reorder(ctx, userID, items)
}

// Delete soft-archives a context. The system context cannot be deleted.
func (s *ContextService) Delete(ctx context.Context, userID, contextID string) error {
	c, err := s.repo.FindByID(ctx, userID, contextID)
	if err != nil {
		return err
	}
	if c.IsSystem {
		return ErrSystemContext
	}
	return s.repo.Archive(ctx, c)
}
