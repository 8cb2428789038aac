package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskTemplate is a reusable bundle of tasks (morning routine, weekly
// review, ...). Activation materializes its items as today-tasks.
type TaskTemplate struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index" json:"userId"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []TaskTemplateItem `gorm:"foreignKey:TemplateID" json:"items,omitempty"`
}

func (t *TaskTemplate) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TaskTemplateItem is one task blueprint inside a template.
type TaskTemplateItem struct {
	ID          string  `gorm:"primaryKey;size:36" json:"id"`
	TemplateID  string  `gorm:"size:36;index" json:"templateId"`
	ContextID   string  `gorm:"size:36" json:"contextId"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	SortOrder   int     `json:"sortOrder"`
}

func (i *TaskTemplateItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
