package files

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filehaven/filehaven/internal/shared"
)

// Repository defines persistence operations for file metadata.
type Repository interface {
	Get(ctx context.Context, id int64) (File, error)
	ListInFolder(ctx context.Context, folderID int64) ([]File, error)
	Create(ctx context.Context, file File) (File, error)
	Rename(ctx context.Context, id int64, name string) error
	Move(ctx context.Context, id int64, folderID int64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const fileColumns = `id, owner_id, folder_id, name, size_bytes, mime_type, created_at, updated_at`

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.OwnerID, &f.FolderID, &f.Name, &f.SizeBytes, &f.MimeType, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, shared.ErrNotFound
		}
		return File{}, err
	}
	return f, nil
}

func (r *repository) Get(ctx context.Context, id int64) (File, error) {
	return scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
}

func (r *repository) ListInFolder(ctx context.Context, folderID int64) ([]File, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE folder_id = $1 ORDER BY name`, folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *repository) Create(ctx context.Context, file File) (File, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO files (owner_id, folder_id, name, size_bytes, mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+fileColumns,
		file.OwnerID, file.FolderID, file.Name, file.SizeBytes, file.MimeType, now)
	created, err := scanFile(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return File{}, shared.ErrNotFound
		}
		return File{}, err
	}
	return created, nil
}

func (r *repository) Rename(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET name = $1, updated_at = $2 WHERE id = $3`, name, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Move(ctx context.Context, id int64, folderID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE files SET folder_id = $1, updated_at = $2 WHERE id = $3`, folderID, time.Now().UTC(), id)
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
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
