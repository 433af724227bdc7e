package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements ResourceStore and GrantStore over the folders, files and
// permissions tables.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// FindResource looks up a folder or file node with its owner and parent.
func (s *PGStore) FindResource(ctx context.Context, ref ResourceRef) (Resource, error) {
	switch ref.Kind {
	case KindFolder:
		var ownerID int64
		var parentID *int64
		err := s.pool.QueryRow(ctx, `SELECT owner_id, parent_id FROM folders WHERE id = $1`, ref.ID).Scan(&ownerID, &parentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Resource{}, ErrResourceNotFound
			}
			return Resource{}, fmt.Errorf("authz: find folder %d: %w", ref.ID, err)
		}
		resource := Resource{Ref: ref, OwnerID: ownerID}
		if parentID != nil {
			resource.Parent = &ResourceRef{Kind: KindFolder, ID: *parentID}
		}
		return resource, nil

	case KindFile:
		var ownerID, folderID int64
		err := s.pool.QueryRow(ctx, `SELECT owner_id, folder_id FROM files WHERE id = $1`, ref.ID).Scan(&ownerID, &folderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Resource{}, ErrResourceNotFound
			}
			return Resource{}, fmt.Errorf("authz: find file %d: %w", ref.ID, err)
		}
		return Resource{
			Ref:     ref,
			OwnerID: ownerID,
			Parent:  &ResourceRef{Kind: KindFolder, ID: folderID},
		}, nil

	default:
		return Resource{}, fmt.Errorf("authz: unknown resource kind %q", ref.Kind)
	}
}

// FindGrant looks up the explicit grant for a (principal, resource) pair.
func (s *PGStore) FindGrant(ctx context.Context, principalID int64, ref ResourceRef) (Action, bool, error) {
	var action Action
	err := s.pool.QueryRow(ctx, `SELECT action FROM permissions WHERE user_id = $1 AND resource_kind = $2 AND resource_id = $3`, principalID, ref.Kind, ref.ID).Scan(&action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("authz: find grant for user %d on %s/%d: %w", principalID, ref.Kind, ref.ID, err)
	}
	return action, true, nil
}

var (
	_ ResourceStore = (*PGStore)(nil)
	_ GrantStore    = (*PGStore)(nil)
)
