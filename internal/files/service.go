package files

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/platform/httpx"
	"github.com/filehaven/filehaven/internal/shared"
)

// Service wraps file metadata business rules behind permission checks.
type Service struct {
	repo  Repository
	guard *authz.Guard
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, guard *authz.Guard, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, guard: guard, audit: audit}
}

func fileRef(id int64) authz.ResourceRef {
	return authz.ResourceRef{Kind: authz.KindFile, ID: id}
}

func folderRef(id int64) authz.ResourceRef {
	return authz.ResourceRef{Kind: authz.KindFolder, ID: id}
}

// Get fetches a file the principal may read.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id int64) (File, error) {
	if err := s.guard.Require(ctx, principal, fileRef(id), authz.Actions(authz.ActionRead, authz.ActionWrite)); err != nil {
		return File{}, err
	}
	return s.repo.Get(ctx, id)
}

// ListInFolder returns the files of a folder the principal may read.
func (s *Service) ListInFolder(ctx context.Context, principal authz.Principal, folderID int64) ([]File, error) {
	if err := s.guard.Require(ctx, principal, folderRef(folderID), authz.Actions(authz.ActionRead, authz.ActionWrite)); err != nil {
		return nil, err
	}
	return s.repo.ListInFolder(ctx, folderID)
}

// CreateInput carries the fields for new file metadata.
type CreateInput struct {
	FolderID  int64
	Name      string
	SizeBytes int64
	MimeType  string
}

// Create registers file metadata inside a folder the principal may write to.
func (s *Service) Create(ctx context.Context, principal authz.Principal, input CreateInput) (File, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return File{}, fmt.Errorf("%w: files: name required", httpx.ErrValidation)
	}
	if input.SizeBytes < 0 {
		return File{}, fmt.Errorf("%w: files: size must not be negative", httpx.ErrValidation)
	}
	if err := s.guard.RequireAction(ctx, principal, folderRef(input.FolderID), authz.ActionWrite); err != nil {
		return File{}, err
	}

	created, err := s.repo.Create(ctx, File{
		OwnerID:   principal.ID,
		FolderID:  input.FolderID,
		Name:      name,
		SizeBytes: input.SizeBytes,
		MimeType:  strings.TrimSpace(input.MimeType),
	})
	if err != nil {
		return File{}, err
	}

	s.record(ctx, principal, "file.create", created.ID, map[string]any{"name": created.Name, "folder_id": created.FolderID})
	return created, nil
}

// Rename changes a file's name; requires write access.
func (s *Service) Rename(ctx context.Context, principal authz.Principal, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: files: name required", httpx.ErrValidation)
	}
	if err := s.guard.RequireAction(ctx, principal, fileRef(id), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return err
	}
	s.record(ctx, principal, "file.rename", id, map[string]any{"name": name})
	return nil
}

// Move relocates a file into another folder. Requires write access to the
// file and to the destination folder. Ownership does not change.
func (s *Service) Move(ctx context.Context, principal authz.Principal, id, folderID int64) error {
	if err := s.guard.RequireAction(ctx, principal, fileRef(id), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.guard.RequireAction(ctx, principal, folderRef(folderID), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.repo.Move(ctx, id, folderID); err != nil {
		return err
	}
	s.record(ctx, principal, "file.move", id, map[string]any{"folder_id": folderID})
	return nil
}

// Delete removes file metadata; requires write access.
func (s *Service) Delete(ctx context.Context, principal authz.Principal, id int64) error {
	if err := s.guard.RequireAction(ctx, principal, fileRef(id), authz.ActionWrite); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, principal, "file.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, principal authz.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principal.ID,
		Action:   action,
		Entity:   "file",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
