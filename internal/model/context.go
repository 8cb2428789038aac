package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SystemContextName is the reserved inbox context every user gets exactly
// one of. It is pinned to sort order 0, cannot be renamed and cannot be
// deleted.
const SystemContextName = "Inbox"

// Context groups tasks by GTD-style area (@home, @computer, ...).
type Context struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	UserID     string    `gorm:"size:36;index:idx_context_user_name,unique" json:"userId"`
	Name       string    `gorm:"index:idx_context_user_name,unique" json:"name"`
	Icon       string    `json:"icon"`
	Color      string    `json:"color"`
	SortOrder  int       `json:"sortOrder"`
	IsArchived bool      `gorm:"default:false" json:"isArchived"`
	IsSystem   bool      `gorm:"default:false" json:"isSystem"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c *Context) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
