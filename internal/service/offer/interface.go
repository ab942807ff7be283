package offer

import (
	"context"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type RideRepo interface {
	GetForUpdate(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	// UpdateState performs a compare-and-swap on the state column; it fails
	// with types.ErrConflict when the ride is no longer in `from`.
	UpdateState(ctx context.Context, rideID uuid.UUID, from, to types.RideState, at time.Time) error
	SetSelectedOffer(ctx context.Context, rideID uuid.UUID, offerID *uuid.UUID) error
}

type OfferRepo interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	UpdateStatus(ctx context.Context, offerID uuid.UUID, from, to types.OfferStatus, at time.Time) error
	// RejectOtherPending marks every pending offer of the ride except `keep`
	// as rejected and returns the offers it touched.
	RejectOtherPending(ctx context.Context, rideID, keep uuid.UUID, at time.Time) ([]models.Offer, error)
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Offer, error)
}

type EventRepo interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

// HoldScheduler arms the hold timeout after an offer is selected.
type HoldScheduler interface {
	ScheduleHoldTimeout(rideID uuid.UUID)
}

// Notifier delivers best-effort realtime updates. Failures are logged by the
// implementation and never propagate into ride mutations.
type Notifier interface {
	NotifyDriver(ctx context.Context, driverID uuid.UUID, msg any)
	NotifyRider(ctx context.Context, riderID uuid.UUID, msg any)
}
