// Package store defines the persistence contract for users, analyses and chat
// messages, and the coordinator that picks between a durable and a volatile
// implementation at runtime.
package store

import (
	"context"

	"github.com/solarscope/backend/internal/models"
)

// DefaultChatLimit is applied when a chat query passes limit <= 0.
const DefaultChatLimit = 50

// Store is the operation contract shared by the durable adapter, the volatile
// adapter and the coordinator.
//
// Single-record getters return (nil, nil) when nothing matches. List queries
// are ordered newest first.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUserPassword(ctx context.Context, email, passwordHash string) (*models.User, error)

	CreateAnalysis(ctx context.Context, in models.NewAnalysis) (*models.Analysis, error)
	GetAnalysesByUser(ctx context.Context, userID int64) ([]models.Analysis, error)
	GetAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error)
	GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error)

	CreateChatMessage(ctx context.Context, in models.NewChatMessage) (*models.ChatMessage, error)
	GetChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
	GetChatMessagesByUser(ctx context.Context, userID int64, limit int) ([]models.ChatMessage, error)
	GetChatMessagesBySession(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	ClearSessionData(ctx context.Context, sessionID string) error
	ClearAllUsersExceptTesting(ctx context.Context) error

	StorageStatus() StorageStatus
}

// DurableStore is a Store backed by a connection that can be probed.
type DurableStore interface {
	Store
	Ping(ctx context.Context) error
}

// ConnectionChecker is implemented by stores that verify a backend
// asynchronously after construction. Plain adapters do not implement it.
type ConnectionChecker interface {
	WaitForConnectionCheck(ctx context.Context) error
}

type StorageType string

const (
	StorageDatabase StorageType = "database"
	StorageMemory   StorageType = "memory"
)

type StorageStatus struct {
	Type      StorageType `json:"type"`
	Available bool        `json:"available"`
}

// ChatLimit normalizes a caller supplied limit.
func ChatLimit(limit int) int {
	if limit <= 0 {
		return DefaultChatLimit
	}
	return limit
}
