package ride

import (
	"context"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/internal/service/pricing"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type RideRepo interface {
	Create(ctx context.Context, ride *models.Ride) error
	Get(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	GetForUpdate(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	UpdateState(ctx context.Context, rideID uuid.UUID, from, to types.RideState, at time.Time) error
	SetCancellation(ctx context.Context, rideID uuid.UUID, reason string) error
	CountByDate(ctx context.Context, date time.Time) (int, error)
}

type OfferRepo interface {
	Get(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	// RejectPending marks every pending offer of the ride as rejected and
	// returns the offers it touched.
	RejectPending(ctx context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error)
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Offer, error)
}

type EventRepo interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.AuditEvent, error)
}

// DiscoveryStarter is the engine entry point; the orchestrator owns the
// ownership check, the engine owns the transition.
type DiscoveryStarter interface {
	Start(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error)
}

type Estimator interface {
	Estimate(ctx context.Context, origin, destination models.Location) (pricing.Estimate, error)
}

type Broker interface {
	PublishRideStatus(ctx context.Context, msg models.RideStatusMessage) error
}

type Notifier interface {
	NotifyDriver(ctx context.Context, driverID uuid.UUID, msg any)
	NotifyRider(ctx context.Context, riderID uuid.UUID, msg any)
}
