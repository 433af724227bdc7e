package instances

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filehaven/filehaven/internal/shared"
)

// Repository defines persistence operations for instances and their sections.
type Repository interface {
	List(ctx context.Context) ([]Instance, error)
	Get(ctx context.Context, id int64) (Instance, error)
	FindByCode(ctx context.Context, code string) (Instance, error)
	Create(ctx context.Context, instance Instance) (Instance, error)
	Update(ctx context.Context, instance Instance) error
	Delete(ctx context.Context, id int64) error

	ListSections(ctx context.Context, instanceID int64) ([]Section, error)
	CreateSection(ctx context.Context, section Section) (Section, error)
	DeleteSection(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const instanceColumns = `id, name, code, created_at, updated_at`

func scanInstance(row pgx.Row) (Instance, error) {
	var in Instance
	err := row.Scan(&in.ID, &in.Name, &in.Code, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Instance{}, shared.ErrNotFound
		}
		return Instance{}, err
	}
	return in, nil
}

func (r *repository) List(ctx context.Context) ([]Instance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+instanceColumns+` FROM instances ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Instance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, in)
	}
	return result, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Instance, error) {
	return scanInstance(r.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id))
}

func (r *repository) FindByCode(ctx context.Context, code string) (Instance, error) {
	return scanInstance(r.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE code = $1`, code))
}

func (r *repository) Create(ctx context.Context, instance Instance) (Instance, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO instances (name, code, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING `+instanceColumns,
		instance.Name, instance.Code, now)
	created, err := scanInstance(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Instance{}, ErrCodeTaken
		}
		return Instance{}, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, instance Instance) error {
	tag, err := r.pool.Exec(ctx, `UPDATE instances SET name = $1, code = $2, updated_at = $3 WHERE id = $4`,
		instance.Name, instance.Code, time.Now().UTC(), instance.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const sectionColumns = `id, instance_id, name, created_at, updated_at`

func scanSection(row pgx.Row) (Section, error) {
	var s Section
	err := row.Scan(&s.ID, &s.InstanceID, &s.Name, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Section{}, shared.ErrNotFound
		}
		return Section{}, err
	}
	return s, nil
}

func (r *repository) ListSections(ctx context.Context, instanceID int64) ([]Section, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectionColumns+` FROM sections WHERE instance_id = $1 ORDER BY name`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *repository) CreateSection(ctx context.Context, section Section) (Section, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sections (instance_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING `+sectionColumns,
		section.InstanceID, section.Name, now)
	created, err := scanSection(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Section{}, shared.ErrNotFound
		}
		return Section{}, err
	}
	return created, nil
}

func (r *repository) DeleteSection(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
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

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
