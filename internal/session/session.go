// Package session persists anonymous browser sessions. The session ID is the
// owner anchor for analyses and chat messages created without a login.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/solarscope/backend/internal/models"
)

// DefaultTTL matches the cookie lifetime.
const DefaultTTL = 24 * time.Hour

type Store interface {
	// Get returns (nil, nil) for unknown or expired sessions.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Save inserts or replaces the session.
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	// Prune removes expired sessions and reports how many were removed.
	Prune(ctx context.Context) (int64, error)
}

// New builds a fresh session that expires ttl from now.
func New(now time.Time, ttl time.Duration) *models.Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &models.Session{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(ttl).UTC(),
		CreatedAt: now.UTC(),
	}
}
