package folders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// ErrMoveIntoSubtree rejects moves that would make a folder its own ancestor.
var ErrMoveIntoSubtree = fmt.Errorf("%w: folders: cannot move a folder into its own subtree", httpx.ErrValidation)

// ServiceConfig carries tunables for the folder service.
type ServiceConfig struct {
	// MaxDepth caps folder nesting; a folder at depth MaxDepth-1 cannot
	// receive children.
	MaxDepth int
}

// Service wraps folder business rules behind permission checks.
type Service struct {
	repo  Repository
	guard *authz.Guard
	audit *shared.AuditLogger
	cfg   ServiceConfig
}

// NewService constructs a Service.
func NewService(repo Repository, guard *authz.Guard, audit *shared.AuditLogger, cfg ServiceConfig) *Service {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 32
	}
	return &Service{repo: repo, guard: guard, audit: audit, cfg: cfg}
}

func ref(id int64) authz.ResourceRef {
	return authz.ResourceRef{Kind: authz.KindFolder, ID: id}
}

// Get fetches a folder the principal may read.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id int64) (Folder, error) {
	if err := s.guard.Require(ctx, principal, ref(id), authz.Actions(authz.ActionRead, authz.ActionWrite)); err != nil {
		return Folder{}, err
	}
	return s.repo.Get(ctx, id)
}

// ListRoots returns the principal's own top-level folders.
func (s *Service) ListRoots(ctx context.Context, principal authz.Principal) ([]Folder, error) {
	return s.repo.ListRoots(ctx, principal.ID)
}

// ListChildren returns the sub-folders of a folder the principal may read.
func (s *Service) ListChildren(ctx context.Context, principal authz.Principal, id int64) ([]Folder, error) {
	if err := s.guard.Require(ctx, principal, ref(id), authz.Actions(authz.ActionRead, authz.ActionWrite)); err != nil {
		return nil, err
	}
	return s.repo.ListChildren(ctx, id)
}

// CreateInput carries the fields for a new folder.
type CreateInput struct {
	Name     string
	ParentID *int64
}

// Create adds a folder owned by the principal. Creating inside a parent
// requires write access to that parent and respects the nesting cap.
func (s *Service) Create(ctx context.Context, principal authz.Principal, input CreateInput) (Folder, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Folder{}, fmt.Errorf("%w: folders: name required", httpx.ErrValidation)
	}

	if input.ParentID != nil {
		if err := s.guard.RequireAction(ctx, principal, ref(*input.ParentID), authz.ActionWrite); err != nil {
			return Folder{}, err
		}
		depth, err := s.repo.Depth(ctx, *input.ParentID)
		if err != nil {
			return Folder{}, err
		}
		if depth+1 >= s.cfg.MaxDepth {
			return Folder{}, fmt.Errorf("%w: folders: nesting exceeds %d levels", httpx.ErrValidation, s.cfg.MaxDepth)
		}
	}

	created, err := s.repo.Create(ctx, Folder{
		OwnerID:  principal.ID,
		ParentID: input.ParentID,
		Name:     name,
	})
	if err != nil {
		return Folder{}, err
	}

	s.record(ctx, principal, "folder.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// Rename changes a folder's name; requires write access.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: folders: name required", httpx.ErrValidation)
	}
	if err := s.guard.RequireAction(ctx, principal, ref(id), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return err
	}
	s.record(ctx, principal, "folder.rename", id, map[string]any{"name": name})
	return nil
}

// Move reparents a folder. Requires write access to the folder and, for a
// non-root destination, write access to the new parent. Ownership does not
// change. Moving a folder into its own subtree is rejected.
func (s *Service) Move(ctx context.Context, principal authz.Principal, id int64, newParentID *int64) error {
	if err := s.guard.RequireAction(ctx, principal, ref(id), authz.ActionWrite); err != nil {
		return err
	}
	if newParentID != nil {
		if *newParentID == id {
			return fmt.Errorf("%w: folders: cannot move a folder into itself", httpx.ErrValidation)
		}
		if err := s.guard.RequireAction(ctx, principal, ref(*newParentID), authz.ActionWrite); err != nil {
			return err
		}
		inSubtree, err := s.isDescendant(ctx, *newParentID, id)
		if err != nil {
			return err
		}
		if inSubtree {
			return ErrMoveIntoSubtree
		}
		depth, err := s.repo.Depth(ctx, *newParentID)
		if err != nil {
			return err
		}
		if depth+1 >= s.cfg.MaxDepth {
			return fmt.Errorf("%w: folders: nesting exceeds %d levels", httpx.ErrValidation, s.cfg.MaxDepth)
		}
	}
	if err := s.repo.Move(ctx, id, newParentID); err != nil {
		return err
	}
	s.record(ctx, principal, "folder.move", id, nil)
	return nil
}

// Delete removes a folder; requires write access.
func (s *Service) Delete(ctx context.Context, principal authz.Principal, id int64) error {
	if err := s.guard.RequireAction(ctx, principal, ref(id), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, principal, "folder.delete", id, nil)
	return nil
}

// isDescendant reports whether candidate sits in the subtree rooted at rootID,
// by walking candidate's parent chain.
func (s *Service) isDescendant(ctx context.Context, candidate, rootID int64) (bool, error) {
	current := candidate
	for depth := 0; depth < s.cfg.MaxDepth+1; depth++ {
		folder, err := s.repo.Get(ctx, current)
		if err != nil {
			return false, err
		}
		if folder.ID == rootID {
			return true, nil
		}
		if folder.ParentID == nil {
			return false, nil
		}
		current = *folder.ParentID
	}
	return false, fmt.Errorf("folders: ancestor chain exceeds %d levels at folder %d", s.cfg.MaxDepth, current)
}

func (s *Service) record(ctx context.Context, principal authz.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principal.ID,
		Action:   action,
		Entity:   "folder",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
