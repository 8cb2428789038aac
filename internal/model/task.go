package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusInbox     TaskStatus = "inbox"
	StatusToday     TaskStatus = "today"
	StatusScheduled TaskStatus = "scheduled"
	StatusBacklog   TaskStatus = "backlog"
	StatusDone      TaskStatus = "done"
	StatusCancelled TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusInbox, StatusToday, StatusScheduled, StatusBacklog, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Task represents a single item in the planner.
type Task struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UserID           string     `gorm:"size:36;index" json:"userId"`
	ContextID        string     `gorm:"size:36;index" json:"contextId"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	Status           TaskStatus `gorm:"index;default:'inbox'" json:"status"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	EstimatedMinutes *int       `json:"estimatedMinutes,omitempty"`
	ScheduledDate    *time.Time `gorm:"index" json:"scheduledDate,omitempty"`
	SortOrder        int        `json:"sortOrder"`
	IsRecurring      bool       `gorm:"default:false" json:"isRecurring"`
	RecurringRule    *string    `json:"recurringRule,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	Subtasks []Subtask `gorm:"foreignKey:TaskID" json:"subtasks,omitempty"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
