package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askhat-b/taxi-dispatch/pkg/postgres"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// FavoriteRepo stores a rider's favorited drivers. Wave 1 of discovery
// solicits them first.
type FavoriteRepo struct {
	db *pgxpool.Pool
}

func NewFavoriteRepo(db *pgxpool.Pool) *FavoriteRepo {
	return &FavoriteRepo{db: db}
}

func (r *FavoriteRepo) ListDriverIDs(ctx context.Context, riderID uuid.UUID) ([]uuid.UUID, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT driver_id FROM favorite_drivers WHERE rider_id = $1;`

	rows, err := q.Query(ctx, query, riderID)
	if err != nil {
		return nil, fmt.Errorf("favorite repo: ListDriverIDs: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("favorite repo: ListDriverIDs: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorite repo: ListDriverIDs: %w", err)
	}
	return out, nil
}

// Add is idempotent; favoriting the same driver twice is not an error.
func (r *FavoriteRepo) Add(ctx context.Context, riderID, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `INSERT INTO favorite_drivers (rider_id, driver_id) VALUES ($1, $2);`

	if _, err := q.Exec(ctx, query, riderID, driverID); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("favorite repo: Add: %w", err)
	}
	return nil
}

func (r *FavoriteRepo) Remove(ctx context.Context, riderID, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `DELETE FROM favorite_drivers WHERE rider_id = $1 AND driver_id = $2;`

	if _, err := q.Exec(ctx, query, riderID, driverID); err != nil {
		return fmt.Errorf("favorite repo: Remove: %w", err)
	}
	return nil
}
