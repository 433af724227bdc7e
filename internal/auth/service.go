package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/filehaven/filehaven/internal/shared"
	"github.com/filehaven/filehaven/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	users users.Repository
}

// NewService constructs a Service.
func NewService(repo Repository, userRepo users.Repository) *Service {
	return &Service{repo: repo, users: userRepo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// LookupUser fetches a user account by ID for principal resolution.
func (s *Service) LookupUser(ctx context.Context, id int64) (users.User, error) {
	return s.users.Get(ctx, id)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
