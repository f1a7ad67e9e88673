package postgres

import (
	"context"
	"errors"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/utils"
	"gorm.io/gorm"
)

// CreateAnalysis assigns the next per-(user, type) sequence number and inserts
// the row. Read-max and insert are separate statements, so two concurrent
// creates for the same user and type can receive the same number.
func (s *pgStore) CreateAnalysis(ctx context.Context, in models.NewAnalysis) (*models.Analysis, error) {
	const op = "postgres.CreateAnalysis"

	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid analysis", err)
	}
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}

	seq := 1
	if in.UserID != nil {
		var existing []int
		err := db.Model(&models.Analysis{}).
			Where("user_id = ? AND type = ?", *in.UserID, in.Type).
			Order("user_sequence_number DESC").
			Limit(1).
			Pluck("user_sequence_number", &existing).Error
		if err != nil {
			return nil, failed(op, err)
		}
		seq = models.NextSequenceNumber(existing)
	}

	a := in.Record(seq)
	if err := db.Create(a).Error; err != nil {
		return nil, failed(op, err)
	}
	return a, nil
}

func (s *pgStore) GetAnalysesByUser(ctx context.Context, userID int64) ([]models.Analysis, error) {
	return s.listAnalyses(ctx, "postgres.GetAnalysesByUser", "user_id = ?", userID)
}

func (s *pgStore) GetAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error) {
	return s.listAnalyses(ctx, "postgres.GetAnalysesBySession", "session_id = ?", sessionID)
}

func (s *pgStore) listAnalyses(ctx context.Context, op, where string, arg any) ([]models.Analysis, error) {
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	rows := make([]models.Analysis, 0)
	err = db.Where(where, arg).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, failed(op, err)
	}
	return rows, nil
}

func (s *pgStore) GetAnalysis(ctx context.Context, id int64) (*models.Analysis, error) {
	const op = "postgres.GetAnalysis"

	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	var a models.Analysis
	err = db.Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, failed(op, err)
	}
	return &a, nil
}
