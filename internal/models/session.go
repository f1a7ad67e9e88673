package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session is an anonymous browser session. Its ID is the session anchor on
// analyses and chat messages created without a logged-in user.
type Session struct {
	ID        string         `gorm:"column:sid;type:text;primaryKey" json:"id"`
	Data      datatypes.JSON `gorm:"column:sess;type:jsonb" json:"data,omitempty"`
	ExpiresAt time.Time      `gorm:"column:expire;not null;index" json:"expires_at"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

func (Session) TableName() string { return "session" }

func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
