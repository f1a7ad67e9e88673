package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/solarscope/backend/internal/utils"
)

type ChatMessageType string

const (
	ChatMessageUser ChatMessageType = "user"
	ChatMessageAI   ChatMessageType = "ai"
)

const DefaultChatCategory = "general"

type ChatMessage struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    *int64          `gorm:"column:user_id;index" json:"userId"`
	SessionID *string         `gorm:"column:session_id;type:text;index" json:"sessionId"`
	Username  string          `gorm:"column:username;type:text;not null" json:"username"`
	Message   string          `gorm:"column:message;type:text;not null" json:"message"`
	Type      ChatMessageType `gorm:"column:type;type:text;not null;default:user" json:"type"`
	Category  *string         `gorm:"column:category;type:text;default:general" json:"category"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

type NewChatMessage struct {
	UserID    *int64
	SessionID *string
	Username  string
	Message   string
	Type      ChatMessageType
	Category  *string
}

func (n NewChatMessage) Validate() error {
	if err := validateOwner(n.UserID, n.SessionID); err != nil {
		return err
	}
	if strings.TrimSpace(n.Username) == "" {
		return fmt.Errorf("%w: username is required", utils.ErrInvalidRecord)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", utils.ErrInvalidRecord)
	}
	if n.Type != "" && n.Type != ChatMessageUser && n.Type != ChatMessageAI {
		return fmt.Errorf("%w: unknown message type %q", utils.ErrInvalidRecord, n.Type)
	}
	return nil
}

// Record fills in the column defaults.
func (n NewChatMessage) Record() *ChatMessage {
	typ := n.Type
	if typ == "" {
		typ = ChatMessageUser
	}
	category := n.Category
	if category == nil {
		c := DefaultChatCategory
		category = &c
	}
	return &ChatMessage{
		UserID:    n.UserID,
		SessionID: n.SessionID,
		Username:  n.Username,
		Message:   n.Message,
		Type:      typ,
		Category:  category,
	}
}
