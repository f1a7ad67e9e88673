package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/repositories/memory"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
)

type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	// RepairDemoAccount re-hashes the demo password on the active backend.
	RepairDemoAccount(ctx context.Context) (*models.User, error)
}

type userService struct {
	store store.Store
}

func NewUserService(s store.Store) UserService {
	return &userService{store: s}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	const op = "UserService.Register"

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateSignup(username, email, password); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(op, "failed to check email", err)
	}
	if existing != nil {
		return nil, utils.E(utils.CodeConflict, op, "Email already registered", utils.ErrDuplicateKey)
	}
	existing, err = s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storeErr(op, "failed to check username", err)
	}
	if existing != nil {
		return nil, utils.E(utils.CodeConflict, op, "Username already taken", utils.ErrDuplicateKey)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	// A concurrent registration can still win the race; the store reports it
	// as a conflict.
	u, err := s.store.CreateUser(ctx, models.NewUser{Username: username, Email: email, Password: hash})
	if err != nil {
		return nil, storeErr(op, "failed to create user", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "UserService.Authenticate"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(op, "failed to load user", err)
	}
	if u == nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid email or password", nil)
	}
	// A corrupt stored hash still reads as bad credentials to the caller.
	if ok, err := utils.PasswordMatches(u.Password, password); !ok {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid email or password", err)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	const op = "UserService.Get"

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, storeErr(op, "failed to load user", err)
	}
	if u == nil {
		return nil, utils.E(utils.CodeNotFound, op, "user not found", utils.ErrNotFound)
	}
	return u, nil
}

func (s *userService) RepairDemoAccount(ctx context.Context) (*models.User, error) {
	const op = "UserService.RepairDemoAccount"

	hash, err := utils.HashPassword(memory.DemoPassword)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}
	u, err := s.store.UpdateUserPassword(ctx, memory.DemoEmail, hash)
	if err != nil {
		return nil, storeErr(op, "failed to update password", err)
	}
	if u == nil {
		return nil, utils.E(utils.CodeNotFound, op, "demo account not found", utils.ErrNotFound)
	}
	return u, nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

func validateSignup(username, email, password string) error {
	if len(username) < 3 {
		return validationError("Username must be at least 3 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return validationError("Please enter a valid email address")
	}
	if len(password) < 8 {
		return validationError("Password must be at least 8 characters")
	}
	if len(password) > utils.MaxPasswordBytes {
		return validationError(fmt.Sprintf("Password must be at most %d bytes", utils.MaxPasswordBytes))
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return validationError("Password must contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}
