package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Signifier is the bullet-journal marker on a day-log entry.
type Signifier string

const (
	SignifierDot             Signifier = "dot"
	SignifierDone            Signifier = "done"
	SignifierMigratedForward Signifier = "migrated_forward"
	SignifierMigratedBacklog Signifier = "migrated_backlog"
	SignifierCancelled       Signifier = "cancelled"
)

// DayLog is the record of a single calendar day for one user. While
// ClosedAt is nil the log is open and mutable; once set, the log and its
// entries are an immutable snapshot.
type DayLog struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"size:36;index:idx_daylog_date_user,unique" json:"userId"`
	Date      time.Time  `gorm:"index:idx_daylog_date_user,unique" json:"date"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`

	Entries []DayLogEntry `gorm:"foreignKey:DayLogID" json:"entries,omitempty"`
}

func (d *DayLog) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DayLogEntry records one task's presence in a day. TaskTitle and
// ContextName are snapshots taken at entry creation so closed logs render
// what the task was on that day, not what it later became.
type DayLogEntry struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	DayLogID    string    `gorm:"size:36;index" json:"dayLogId"`
	TaskID      *string   `gorm:"size:36;index" json:"taskId,omitempty"`
	TaskTitle   string    `json:"taskTitle"`
	ContextID   *string   `gorm:"size:36" json:"contextId,omitempty"`
	ContextName *string   `json:"contextName,omitempty"`
	Signifier   Signifier `gorm:"default:'dot'" json:"signifier"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (e *DayLogEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
