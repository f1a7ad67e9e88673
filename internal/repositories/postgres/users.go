package postgres

import (
	"context"
	"errors"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/utils"
	"gorm.io/gorm"
)

func (s *pgStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.findUser(ctx, "postgres.GetUser", "id = ?", id)
}

func (s *pgStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "postgres.GetUserByUsername", "username = ?", username)
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "postgres.GetUserByEmail", "email = ?", email)
}

func (s *pgStore) findUser(ctx context.Context, op, where string, arg any) (*models.User, error) {
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	var u models.User
	err = db.Where(where, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, failed(op, err)
	}
	return &u, nil
}

func (s *pgStore) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	const op = "postgres.CreateUser"

	if err := in.Validate(); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid user", err)
	}
	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}

	u := &models.User{Username: in.Username, Email: in.Email, Password: in.Password}
	if err := db.Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, utils.E(utils.CodeConflict, op, "username or email already registered", utils.ErrDuplicateKey)
		}
		return nil, failed(op, err)
	}
	return u, nil
}

// UpdateUserPassword replaces the stored hash. Administrative use only.
func (s *pgStore) UpdateUserPassword(ctx context.Context, email, passwordHash string) (*models.User, error) {
	const op = "postgres.UpdateUserPassword"

	db, err := s.db(ctx, op)
	if err != nil {
		return nil, err
	}
	res := db.Model(&models.User{}).Where("email = ?", email).Update("password", passwordHash)
	if res.Error != nil {
		return nil, failed(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetUserByEmail(ctx, email)
}
