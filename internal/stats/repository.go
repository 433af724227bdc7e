package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository collects usage aggregates straight from Postgres. All queries
// are read-only; the cache layer above decides how often they run.
type Repository interface {
	Collect(ctx context.Context) (Usage, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Collect(ctx context.Context) (Usage, error) {
	usage := Usage{GeneratedAt: time.Now().UTC()}

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM folders),
			(SELECT COUNT(*) FROM files),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM files)`).
		Scan(&usage.Totals.Users, &usage.Totals.Folders, &usage.Totals.Files, &usage.Totals.SizeBytes)
	if err != nil {
		return Usage{}, err
	}

	perUser, err := r.collectPerUser(ctx)
	if err != nil {
		return Usage{}, err
	}
	usage.PerUser = perUser

	perInstance, err := r.collectPerInstance(ctx)
	if err != nil {
		return Usage{}, err
	}
	usage.PerInstance = perInstance

	return usage, nil
}

func (r *repository) collectPerUser(ctx context.Context) ([]UserUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email,
			(SELECT COUNT(*) FROM folders fo WHERE fo.owner_id = u.id),
			(SELECT COUNT(*) FROM files fi WHERE fi.owner_id = u.id),
			(SELECT COALESCE(SUM(fi.size_bytes), 0) FROM files fi WHERE fi.owner_id = u.id)
		FROM users u
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UserUsage
	for rows.Next() {
		var u UserUsage
		if err := rows.Scan(&u.UserID, &u.Email, &u.Folders, &u.Files, &u.SizeBytes); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *repository) collectPerInstance(ctx context.Context) ([]InstanceUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.name,
			COUNT(DISTINCT u.id),
			COUNT(fi.id),
			COALESCE(SUM(fi.size_bytes), 0)
		FROM instances i
		LEFT JOIN users u ON u.instance_id = i.id
		LEFT JOIN files fi ON fi.owner_id = u.id
		GROUP BY i.id, i.name
		ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InstanceUsage
	for rows.Next() {
		var in InstanceUsage
		if err := rows.Scan(&in.InstanceID, &in.Name, &in.Users, &in.Files, &in.SizeBytes); err != nil {
			return nil, err
		}
		result = append(result, in)
	}
	return result, rows.Err()
}
