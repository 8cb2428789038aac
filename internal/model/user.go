package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns every other entity in the system. Preferences holds the
// raw JSON document served by the settings endpoint; the server never
// interprets individual keys.
type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"uniqueIndex" json:"email"`
	Name        string    `json:"name"`
	APIToken    string    `gorm:"uniqueIndex" json:"-"`
	Preferences string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
