package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// ErrEmailTaken indicates an email collision on create or update.
var ErrEmailTaken = fmt.Errorf("%w: users: email already taken", httpx.ErrConflict)

// Service wraps user account business rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns user accounts matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Email        string
	Password     string
	DisplayName  string
	Roles        []string
	IsSuperadmin bool
	InstanceID   *int64
	SectionID    *int64
}

// Create registers a new user account.
func (s *Service) Create(ctx context.Context, actor authz.Principal, input CreateInput) (User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return User{}, fmt.Errorf("%w: users: email required", httpx.ErrValidation)
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("%w: users: password must be at least 8 characters", httpx.ErrValidation)
	}
	roles, err := normalizeRoles(input.Roles)
	if err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(input.DisplayName),
		IsActive:     true,
		Roles:        roles,
		IsSuperadmin: input.IsSuperadmin,
		InstanceID:   input.InstanceID,
		SectionID:    input.SectionID,
	})
	if err != nil {
		return User{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.create",
			Entity:   "user",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"email": created.Email},
		})
	}
	return created, nil
}

// UpdateInput carries mutable account fields.
type UpdateInput struct {
	Email        string
	DisplayName  string
	IsActive     bool
	Roles        []string
	IsSuperadmin bool
	InstanceID   *int64
	SectionID    *int64
}

// Update modifies an existing account.
func (s *Service) Update(ctx context.Context, actor authz.Principal, id int64, input UpdateInput) error {
	if id <= 0 {
		return shared.ErrNotFound
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return fmt.Errorf("%w: users: email required", httpx.ErrValidation)
	}
	roles, err := normalizeRoles(input.Roles)
	if err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, User{
		Email:        email,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		IsActive:     input.IsActive,
		Roles:        roles,
		IsSuperadmin: input.IsSuperadmin,
		InstanceID:   input.InstanceID,
		SectionID:    input.SectionID,
	}); err != nil {
		return err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.update",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
		})
	}
	return nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if id <= 0 {
		return shared.ErrNotFound
	}
	if id == actor.ID {
		return fmt.Errorf("%w: users: cannot delete own account", httpx.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
		})
	}
	return nil
}

// Principal converts a user row into the resolver's principal view.
func Principal(u User) authz.Principal {
	roles := make([]authz.Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, authz.Role(r))
	}
	return authz.Principal{ID: u.ID, Roles: roles, Superadmin: u.IsSuperadmin}
}

func normalizeRoles(roles []string) ([]string, error) {
	if len(roles) == 0 {
		return []string{string(authz.RoleUser)}, nil
	}
	seen := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if r != string(authz.RoleUser) && r != string(authz.RoleAdmin) {
			return nil, fmt.Errorf("%w: users: unknown role %q", httpx.ErrValidation, r)
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		normalized = append(normalized, r)
	}
	if len(normalized) == 0 {
		normalized = []string{string(authz.RoleUser)}
	}
	return normalized, nil
}
