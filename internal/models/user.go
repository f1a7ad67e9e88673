package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/solarscope/backend/internal/utils"
)

type User struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"column:username;type:text;not null;uniqueIndex:users_username_unique" json:"username"`
	Email     string    `gorm:"column:email;type:text;not null;uniqueIndex:users_email_unique" json:"email"`
	Password  string    `gorm:"column:password;type:text;not null" json:"-"` // bcrypt hash, never serialized
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// NewUser is the registration payload. Password must already be hashed.
type NewUser struct {
	Username string
	Email    string
	Password string
}

func (n NewUser) Validate() error {
	switch {
	case strings.TrimSpace(n.Username) == "":
		return fmt.Errorf("%w: username is required", utils.ErrInvalidRecord)
	case strings.TrimSpace(n.Email) == "":
		return fmt.Errorf("%w: email is required", utils.ErrInvalidRecord)
	case n.Password == "":
		return fmt.Errorf("%w: password hash is required", utils.ErrInvalidRecord)
	}
	return nil
}
