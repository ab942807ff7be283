package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/postgres"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type OfferRepo struct {
	db *pgxpool.Pool
}

func NewOfferRepo(db *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{db: db}
}

const offerColumns = `
	id, ride_id, driver_id, wave, status, fare_amount, fare_version,
	price_label, created_at, responded_at`

func (r *OfferRepo) Create(ctx context.Context, offer *models.Offer) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO offers (id, ride_id, driver_id, wave, status, fare_amount, fare_version, price_label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := q.Exec(ctx, query,
		offer.ID, offer.RideID, offer.DriverID, offer.Wave, offer.Status,
		offer.FareAmount, offer.FareVersion, offer.PriceLabel, offer.CreatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return types.ErrRideNotFound
		}
		return fmt.Errorf("offer repo: Create: %w", err)
	}
	return nil
}

func (r *OfferRepo) Get(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return r.get(ctx, offerID, false)
}

func (r *OfferRepo) GetForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return r.get(ctx, offerID, true)
}

func (r *OfferRepo) get(ctx context.Context, offerID uuid.UUID, forUpdate bool) (*models.Offer, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var offer models.Offer
	err := q.QueryRow(ctx, query, offerID).Scan(
		&offer.ID, &offer.RideID, &offer.DriverID, &offer.Wave, &offer.Status,
		&offer.FareAmount, &offer.FareVersion, &offer.PriceLabel, &offer.CreatedAt, &offer.RespondedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer repo: Get: %w", err)
	}
	return &offer, nil
}

// UpdateStatus is a compare-and-swap on the status column; zero rows means
// the offer already left `from`.
func (r *OfferRepo) UpdateStatus(ctx context.Context, offerID uuid.UUID, from, to types.OfferStatus, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE offers
		SET status = $3, responded_at = $4
		WHERE id = $1 AND status = $2;`

	cmdTag, err := q.Exec(ctx, query, offerID, from, to, at)
	if err != nil {
		return fmt.Errorf("offer repo: UpdateStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return wrap.Error(ctx, types.ErrConflict)
	}
	return nil
}

func (r *OfferRepo) RejectOtherPending(ctx context.Context, rideID, keep uuid.UUID, at time.Time) ([]models.Offer, error) {
	return r.closePending(ctx, rideID, &keep, types.OfferRejected, at)
}

func (r *OfferRepo) RejectPending(ctx context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error) {
	return r.closePending(ctx, rideID, nil, types.OfferRejected, at)
}

func (r *OfferRepo) ExpirePending(ctx context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error) {
	return r.closePending(ctx, rideID, nil, types.OfferExpired, at)
}

func (r *OfferRepo) closePending(ctx context.Context, rideID uuid.UUID, keep *uuid.UUID, to types.OfferStatus, at time.Time) ([]models.Offer, error) {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE offers
		SET status = $2, responded_at = $3
		WHERE ride_id = $1 AND status = 'pending' AND ($4::uuid IS NULL OR id <> $4)
		RETURNING ` + offerColumns + `;`

	rows, err := q.Query(ctx, query, rideID, to, at, keep)
	if err != nil {
		return nil, fmt.Errorf("offer repo: closePending: %w", err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		var offer models.Offer
		if err := rows.Scan(
			&offer.ID, &offer.RideID, &offer.DriverID, &offer.Wave, &offer.Status,
			&offer.FareAmount, &offer.FareVersion, &offer.PriceLabel, &offer.CreatedAt, &offer.RespondedAt,
		); err != nil {
			return nil, fmt.Errorf("offer repo: closePending: %w", err)
		}
		out = append(out, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("offer repo: closePending: %w", err)
	}
	return out, nil
}

func (r *OfferRepo) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Offer, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + offerColumns + ` FROM offers WHERE ride_id = $1 ORDER BY created_at DESC;`

	rows, err := q.Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("offer repo: ListByRide: %w", err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		var offer models.Offer
		if err := rows.Scan(
			&offer.ID, &offer.RideID, &offer.DriverID, &offer.Wave, &offer.Status,
			&offer.FareAmount, &offer.FareVersion, &offer.PriceLabel, &offer.CreatedAt, &offer.RespondedAt,
		); err != nil {
			return nil, fmt.Errorf("offer repo: ListByRide: %w", err)
		}
		out = append(out, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("offer repo: ListByRide: %w", err)
	}
	return out, nil
}

// RespondedDriverIDs lists drivers whose offer for this ride finished in
// rejected or expired. Discovery excludes them from later waves.
func (r *OfferRepo) RespondedDriverIDs(ctx context.Context, rideID uuid.UUID) ([]uuid.UUID, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT DISTINCT driver_id FROM offers
		WHERE ride_id = $1 AND status IN ('rejected', 'expired');`

	rows, err := q.Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("offer repo: RespondedDriverIDs: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("offer repo: RespondedDriverIDs: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("offer repo: RespondedDriverIDs: %w", err)
	}
	return out, nil
}
