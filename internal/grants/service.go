package grants

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// ErrGrantExists signals a duplicate grant for the same (user, resource) pair.
var ErrGrantExists = fmt.Errorf("%w: grants: grant already exists for this user and resource", httpx.ErrConflict)

// ShareNotifier is invoked after a grant is created so the recipient can be
// told about the share. Failures are logged, never surfaced to the caller.
type ShareNotifier interface {
	NotifyShareCreated(ctx context.Context, grant Grant) error
}

// Service owns the grant lifecycle. Only the resource owner may manage
// grants on that resource; admins get no special treatment here.
type Service struct {
	repo      Repository
	resources authz.ResourceStore
	audit     *shared.AuditLogger
	notifier  ShareNotifier
	logger    *slog.Logger
}

// NewService constructs a Service. notifier may be nil.
func NewService(repo Repository, resources authz.ResourceStore, audit *shared.AuditLogger, notifier ShareNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resources: resources, audit: audit, notifier: notifier, logger: logger}
}

// ownedResource loads the resource and verifies the principal owns it.
// A missing resource surfaces as authz.ErrResourceNotFound.
func (s *Service) ownedResource(ctx context.Context, principal authz.Principal, ref authz.ResourceRef) (authz.Resource, error) {
	resource, err := s.resources.FindResource(ctx, ref)
	if err != nil {
		return authz.Resource{}, err
	}
	if resource.OwnerID != principal.ID {
		return authz.Resource{}, fmt.Errorf("%w: grants: only the resource owner may manage grants", authz.ErrPermissionDenied)
	}
	return resource, nil
}

// ListForResource returns all grants on a resource the principal owns.
func (s *Service) ListForResource(ctx context.Context, principal authz.Principal, ref authz.ResourceRef) ([]Grant, error) {
	if !ref.Kind.Valid() {
		return nil, fmt.Errorf("%w: grants: unknown resource kind %q", httpx.ErrValidation, ref.Kind)
	}
	if _, err := s.ownedResource(ctx, principal, ref); err != nil {
		return nil, err
	}
	return s.repo.ListForResource(ctx, ref)
}

// CreateInput carries the fields for a new grant.
type CreateInput struct {
	UserID       int64
	ResourceKind authz.ResourceKind
	ResourceID   int64
	Action       authz.Action
}

// Create grants a user an action on a resource owned by the principal.
// Duplicates come back as ErrGrantExists straight from the store.
func (s *Service) Create(ctx context.Context, principal authz.Principal, input CreateInput) (Grant, error) {
	if !input.ResourceKind.Valid() {
		return Grant{}, fmt.Errorf("%w: grants: unknown resource kind %q", httpx.ErrValidation, input.ResourceKind)
	}
	if !input.Action.Valid() {
		return Grant{}, fmt.Errorf("%w: grants: unknown action %q", httpx.ErrValidation, input.Action)
	}

	ref := authz.ResourceRef{Kind: input.ResourceKind, ID: input.ResourceID}
	resource, err := s.ownedResource(ctx, principal, ref)
	if err != nil {
		return Grant{}, err
	}
	if input.UserID == resource.OwnerID {
		return Grant{}, fmt.Errorf("%w: grants: owner already has full access", httpx.ErrValidation)
	}

	created, err := s.repo.Create(ctx, Grant{
		UserID:       input.UserID,
		ResourceKind: input.ResourceKind,
		ResourceID:   input.ResourceID,
		Action:       input.Action,
	})
	if err != nil {
		return Grant{}, err
	}

	s.record(ctx, principal, "grant.create", created.ID, map[string]any{
		"user_id":       created.UserID,
		"resource_kind": string(created.ResourceKind),
		"resource_id":   created.ResourceID,
		"action":        string(created.Action),
	})

	if s.notifier != nil {
		if err := s.notifier.NotifyShareCreated(ctx, created); err != nil {
			s.logger.Warn("share notification enqueue failed", "grant_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// Change replaces the action of an existing grant.
func (s *Service) Change(ctx context.Context, principal authz.Principal, id int64, action authz.Action) (Grant, error) {
	if !action.Valid() {
		return Grant{}, fmt.Errorf("%w: grants: unknown action %q", httpx.ErrValidation, action)
	}

	grant, err := s.repo.Get(ctx, id)
	if err != nil {
		return Grant{}, err
	}
	if _, err := s.ownedResource(ctx, principal, grant.Ref()); err != nil {
		return Grant{}, err
	}

	if err := s.repo.UpdateAction(ctx, id, action); err != nil {
		return Grant{}, err
	}
	grant.Action = action

	s.record(ctx, principal, "grant.change", id, map[string]any{"action": string(action)})
	return grant, nil
}

// Revoke removes a grant.
func (s *Service) Revoke(ctx context.Context, principal authz.Principal, id int64) error {
	grant, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.ownedResource(ctx, principal, grant.Ref()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, principal, "grant.revoke", id, map[string]any{
		"user_id":       grant.UserID,
		"resource_kind": string(grant.ResourceKind),
		"resource_id":   grant.ResourceID,
	})
	return nil
}

func (s *Service) record(ctx context.Context, principal authz.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principal.ID,
		Action:   action,
		Entity:   "grant",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
