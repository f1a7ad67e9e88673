package postgres

import (
	"context"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
)

func (s *pgStore) CreateChatMessage(ctx context.Context, in models.NewChatMessage) (*models.ChatMessage, error) {
	const op = "postgres.CreateChatMessage"

	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid chat message", err)
	}
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	m := in.Record()
	if err := db.Create(m).Error; err != nil {
		return nil, failed(op, err)
	}
	return m, nil
}

// GetChatMessages returns the messages that belong to no user.
func (s *pgStore) GetChatMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return s.listMessages(ctx, "postgres.GetChatMessages", limit, "user_id IS NULL")
}

func (s *pgStore) GetChatMessagesByUser(ctx context.Context, userID int64, limit int) ([]models.ChatMessage, error) {
	return s.listMessages(ctx, "postgres.GetChatMessagesByUser", limit, "user_id = ?", userID)
}

func (s *pgStore) GetChatMessagesBySession(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	return s.listMessages(ctx, "postgres.GetChatMessagesBySession", limit, "session_id = ?", sessionID)
}

func (s *pgStore) listMessages(ctx context.Context, op string, limit int, where string, args ...any) ([]models.ChatMessage, error) {
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	rows := make([]models.ChatMessage, 0)
	err = db.Where(where, args...).
		Order("created_at DESC").
		Order("id DESC").
		Limit(store.ChatLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, failed(op, err)
	}
	return rows, nil
}
