package service

import (
	"context"
	"errors"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/repository"
	"github.com/jackc/pgx/v5"
)

// UserService exposes account lookups to the handler layer.
type UserService struct {
	users *repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id int) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email. Missing users map to
// ErrInvalidCredentials so login never discloses which field was wrong.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	return user, err
}
