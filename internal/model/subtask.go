package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subtask is a checklist item under a task. It has no lifecycle coupling
// to the parent task's status.
type Subtask struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID      string    `gorm:"size:36;index" json:"taskId"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	IsDone      bool      `gorm:"default:false" json:"isDone"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s *Subtask) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
