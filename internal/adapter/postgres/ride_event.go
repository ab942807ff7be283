package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/postgres"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// EventRepo is the append-only ride audit log. Rows are only ever inserted.
type EventRepo struct {
	db *pgxpool.Pool
}

func NewEventRepo(db *pgxpool.Pool) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Append(ctx context.Context, event *models.AuditEvent) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO ride_events (id, ride_id, event_type, previous_state, new_state, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

	_, err := q.Exec(ctx, query,
		event.ID, event.RideID, event.Type, event.PreviousState, event.NewState,
		event.Actor, event.Payload, event.CreatedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return types.ErrRideNotFound
		}
		return fmt.Errorf("event repo: Append: %w", err)
	}
	return nil
}

func (r *EventRepo) ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.AuditEvent, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, ride_id, event_type, previous_state, new_state, actor, payload, created_at
		FROM ride_events
		WHERE ride_id = $1
		ORDER BY created_at ASC;`

	rows, err := q.Query(ctx, query, rideID)
	if err != nil {
		return nil, fmt.Errorf("event repo: ListByRide: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		if err := rows.Scan(
			&event.ID, &event.RideID, &event.Type, &event.PreviousState, &event.NewState,
			&event.Actor, &event.Payload, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("event repo: ListByRide: %w", err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event repo: ListByRide: %w", err)
	}
	return out, nil
}
