package folders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filehaven/filehaven/internal/platform/db"
	"github.com/filehaven/filehaven/internal/shared"
)

// Repository defines persistence operations for folders.
type Repository interface {
	Get(ctx context.Context, id int64) (Folder, error)
	ListRoots(ctx context.Context, ownerID int64) ([]Folder, error)
	ListChildren(ctx context.Context, parentID int64) ([]Folder, error)
	Depth(ctx context.Context, id int64) (int, error)
	Create(ctx context.Context, folder Folder) (Folder, error)
	Rename(ctx context.Context, id int64, name string) error
	Move(ctx context.Context, id int64, parentID *int64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const folderColumns = `id, owner_id, parent_id, name, created_at, updated_at`

func scanFolder(row pgx.Row) (Folder, error) {
	var f Folder
	err := row.Scan(&f.ID, &f.OwnerID, &f.ParentID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Folder{}, shared.ErrNotFound
		}
		return Folder{}, err
	}
	return f, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Folder, error) {
	return scanFolder(r.pool.QueryRow(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id))
}

func (r *repository) ListRoots(ctx context.Context, ownerID int64) ([]Folder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+folderColumns+` FROM folders WHERE owner_id = $1 AND parent_id IS NULL ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFolders(rows)
}

func (r *repository) ListChildren(ctx context.Context, parentID int64) ([]Folder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+folderColumns+` FROM folders WHERE parent_id = $1 ORDER BY name`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFolders(rows)
}

// Depth counts ancestors up to the root. A root folder has depth zero. The
// recursive CTE is bounded to keep corrupted parent chains from looping.
func (r *repository) Depth(ctx context.Context, id int64) (int, error) {
	const query = `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, 0 AS depth FROM folders WHERE id = $1
			UNION ALL
			SELECT f.id, f.parent_id, c.depth + 1
			FROM folders f
			JOIN chain c ON f.id = c.parent_id
			WHERE c.depth < 128
		)
		SELECT MAX(depth) FROM chain`
	var depth *int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&depth); err != nil {
		return 0, err
	}
	if depth == nil {
		return 0, shared.ErrNotFound
	}
	return *depth, nil
}

func (r *repository) Create(ctx context.Context, folder Folder) (Folder, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO folders (owner_id, parent_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+folderColumns,
		folder.OwnerID, folder.ParentID, folder.Name, now)
	created, err := scanFolder(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Folder{}, shared.ErrNotFound
		}
		return Folder{}, err
	}
	return created, nil
}

func (r *repository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE folders SET name = $1, updated_at = $2 WHERE id = $3`, name, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Move reparents a folder. The cycle check and the update run in one
// transaction so a concurrent move cannot slip a loop past the service-level
// validation.
func (r *repository) Move(ctx context.Context, id int64, parentID *int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if parentID != nil {
			const chain = `
				WITH RECURSIVE chain AS (
					SELECT id, parent_id, 0 AS depth FROM folders WHERE id = $1
					UNION ALL
					SELECT f.id, f.parent_id, c.depth + 1
					FROM folders f
					JOIN chain c ON f.id = c.parent_id
					WHERE c.depth < 128
				)
				SELECT EXISTS (SELECT 1 FROM chain WHERE id = $2)`
			var inSubtree bool
			if err := tx.QueryRow(ctx, chain, *parentID, id).Scan(&inSubtree); err != nil {
				return err
			}
			if inSubtree {
				return ErrMoveIntoSubtree
			}
		}

		tag, err := tx.Exec(ctx, `UPDATE folders SET parent_id = $1, updated_at = $2 WHERE id = $3`, parentID, time.Now().UTC(), id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return shared.ErrNotFound
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectFolders(rows pgx.Rows) ([]Folder, error) {
	var result []Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
