package grants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/shared"
)

// Repository defines persistence operations for permission grants.
type Repository interface {
	Get(ctx context.Context, id int64) (Grant, error)
	ListForResource(ctx context.Context, ref authz.ResourceRef) ([]Grant, error)
	Create(ctx context.Context, grant Grant) (Grant, error)
	UpdateAction(ctx context.Context, id int64, action authz.Action) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const grantColumns = `id, user_id, resource_kind, resource_id, action, created_at, updated_at`

func scanGrant(row pgx.Row) (Grant, error) {
	var g Grant
	err := row.Scan(&g.ID, &g.UserID, &g.ResourceKind, &g.ResourceID, &g.Action, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, shared.ErrNotFound
		}
		return Grant{}, err
	}
	return g, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Grant, error) {
	return scanGrant(r.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM permissions WHERE id = $1`, id))
}

func (r *repository) ListForResource(ctx context.Context, ref authz.ResourceRef) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM permissions
		WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// Create inserts a grant. Duplicate (user, resource) pairs are rejected by the
// unique constraint on permissions; that race is resolved in the database, not
// by a lookup beforehand.
func (r *repository) Create(ctx context.Context, grant Grant) (Grant, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (user_id, resource_kind, resource_id, action, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING `+grantColumns,
		grant.UserID, string(grant.ResourceKind), grant.ResourceID, string(grant.Action), now)
	created, err := scanGrant(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Grant{}, ErrGrantExists
		}
		return Grant{}, err
	}
	return created, nil
}

func (r *repository) UpdateAction(ctx context.Context, id int64, action authz.Action) error {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions SET action = $1, updated_at = $2 WHERE id = $3`,
		string(action), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
