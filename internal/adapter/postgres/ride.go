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
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

const rideColumns = `
	id, ride_number, state, rider_id, guest_token_hash, request_type, actor_type,
	origin_latitude, origin_longitude, origin_address,
	destination_latitude, destination_longitude, destination_address,
	reference_fare, fare_version, estimated_distance_km, estimated_duration_min,
	wave, wave_deadline, selected_offer_id, cancellation_reason,
	created_at, discovery_started_at, held_at, confirmed_at, activated_at,
	completed_at, canceled_at, expired_at`

func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO rides (
			id, ride_number, state, rider_id, guest_token_hash, request_type, actor_type,
			origin_latitude, origin_longitude, origin_address,
			destination_latitude, destination_longitude, destination_address,
			reference_fare, fare_version, estimated_distance_km, estimated_duration_min,
			wave, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);`

	var riderID *uuid.UUID
	if !ride.RiderID.IsZero() {
		riderID = &ride.RiderID
	}

	_, err := q.Exec(ctx, query,
		ride.ID, ride.RideNumber, ride.State, riderID, ride.GuestTokenHash, ride.RequestType, ride.ActorType,
		ride.Origin.Latitude, ride.Origin.Longitude, ride.Origin.Address,
		ride.Destination.Latitude, ride.Destination.Longitude, ride.Destination.Address,
		ride.ReferenceFare, ride.FareVersion, ride.EstimatedDistanceKm, ride.EstimatedDurationMin,
		ride.Wave, ride.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ride repo: Create: %w", err)
	}
	return nil
}

func (r *RideRepo) Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	return r.get(ctx, rideID, false)
}

// GetForUpdate locks the ride row for the rest of the transaction. Every
// state mutation starts here so concurrent writers serialize per ride.
func (r *RideRepo) GetForUpdate(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	return r.get(ctx, rideID, true)
}

func (r *RideRepo) get(ctx context.Context, rideID uuid.UUID, forUpdate bool) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	ride, err := scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: Get: %w", err)
	}
	return ride, nil
}

// UpdateState is the compare-and-swap every transition goes through: the
// write only lands when the ride is still in `from`, and the per-transition
// timestamp column is stamped in the same statement. Zero rows affected
// means another writer won the race.
func (r *RideRepo) UpdateState(ctx context.Context, rideID uuid.UUID, from, to types.RideState, at time.Time) error {
	q := TxorDB(ctx, r.db)

	query := fmt.Sprintf(`
		UPDATE rides
		SET state = $3, %s = $4, updated_at = now()
		WHERE id = $1 AND state = $2;`, transitionTimestampColumn(to))

	cmdTag, err := q.Exec(ctx, query, rideID, from, to, at)
	if err != nil {
		return fmt.Errorf("ride repo: UpdateState: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return wrap.Error(ctx, types.ErrConflict)
	}
	return nil
}

func transitionTimestampColumn(to types.RideState) string {
	switch to {
	case types.StateDiscovery:
		return "discovery_started_at"
	case types.StateHold:
		return "held_at"
	case types.StateConfirmed:
		return "confirmed_at"
	case types.StateActive:
		return "activated_at"
	case types.StateCompleted:
		return "completed_at"
	case types.StateCanceled:
		return "canceled_at"
	case types.StateExpired:
		return "expired_at"
	default:
		return "updated_at"
	}
}

func (r *RideRepo) SetWave(ctx context.Context, rideID uuid.UUID, wave int, deadline time.Time) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET wave = $2, wave_deadline = $3, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, rideID, wave, deadline)
	if err != nil {
		return fmt.Errorf("ride repo: SetWave: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}
	return nil
}

func (r *RideRepo) SetSelectedOffer(ctx context.Context, rideID uuid.UUID, offerID *uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET selected_offer_id = $2, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, rideID, offerID)
	if err != nil {
		return fmt.Errorf("ride repo: SetSelectedOffer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}
	return nil
}

func (r *RideRepo) SetCancellation(ctx context.Context, rideID uuid.UUID, reason string) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET cancellation_reason = $2, updated_at = now()
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query, rideID, reason)
	if err != nil {
		return fmt.Errorf("ride repo: SetCancellation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}
	return nil
}

func (r *RideRepo) CountByDate(ctx context.Context, date time.Time) (int, error) {
	q := TxorDB(ctx, r.db)

	var count int
	query := `SELECT COUNT(*) FROM rides WHERE DATE(created_at) = $1;`

	if err := q.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(&count); err != nil {
		return 0, fmt.Errorf("ride repo: CountByDate: %w", err)
	}
	return count, nil
}

// ListUnsettled returns rides whose timers have to be re-armed after a
// restart: everything still in discovery or on hold.
func (r *RideRepo) ListUnsettled(ctx context.Context) ([]models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE state = ANY($1);`

	rows, err := q.Query(ctx, query, []string{types.StateDiscovery.String(), types.StateHold.String()})
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListUnsettled: %w", err)
	}
	defer rows.Close()

	var out []models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("ride repo: ListUnsettled: %w", err)
		}
		out = append(out, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ride repo: ListUnsettled: %w", err)
	}
	return out, nil
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var (
		ride    models.Ride
		riderID *uuid.UUID
	)

	err := row.Scan(
		&ride.ID, &ride.RideNumber, &ride.State, &riderID, &ride.GuestTokenHash, &ride.RequestType, &ride.ActorType,
		&ride.Origin.Latitude, &ride.Origin.Longitude, &ride.Origin.Address,
		&ride.Destination.Latitude, &ride.Destination.Longitude, &ride.Destination.Address,
		&ride.ReferenceFare, &ride.FareVersion, &ride.EstimatedDistanceKm, &ride.EstimatedDurationMin,
		&ride.Wave, &ride.WaveDeadline, &ride.SelectedOfferID, &ride.CancellationReason,
		&ride.CreatedAt, &ride.DiscoveryStartedAt, &ride.HeldAt, &ride.ConfirmedAt, &ride.ActivatedAt,
		&ride.CompletedAt, &ride.CanceledAt, &ride.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}

	if riderID != nil {
		ride.RiderID = *riderID
	}
	return &ride, nil
}
