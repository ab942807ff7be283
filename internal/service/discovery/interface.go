package discovery

import (
	"context"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type RideRepo interface {
	GetForUpdate(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	UpdateState(ctx context.Context, rideID uuid.UUID, from, to types.RideState, at time.Time) error
	SetWave(ctx context.Context, rideID uuid.UUID, wave int, deadline time.Time) error
	SetSelectedOffer(ctx context.Context, rideID uuid.UUID, offerID *uuid.UUID) error
	// ListUnsettled returns rides still in discovery or hold, for re-arming
	// timers after a restart.
	ListUnsettled(ctx context.Context) ([]models.Ride, error)
}

type OfferRepo interface {
	GetForUpdate(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	UpdateStatus(ctx context.Context, offerID uuid.UUID, from, to types.OfferStatus, at time.Time) error
	// ExpirePending marks every pending offer of the ride as expired and
	// returns the offers it touched.
	ExpirePending(ctx context.Context, rideID uuid.UUID, at time.Time) ([]models.Offer, error)
	// RespondedDriverIDs lists drivers whose offer for this ride already
	// reached a terminal status. They are not solicited again.
	RespondedDriverIDs(ctx context.Context, rideID uuid.UUID) ([]uuid.UUID, error)
}

type EventRepo interface {
	Append(ctx context.Context, event *models.AuditEvent) error
}

type FavoriteRepo interface {
	ListDriverIDs(ctx context.Context, riderID uuid.UUID) ([]uuid.UUID, error)
}

// GeoIndex is the on-duty driver location index used to build per-wave
// candidate pools.
type GeoIndex interface {
	Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]uuid.UUID, error)
	Region(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type Broker interface {
	PublishWaveBroadcast(ctx context.Context, msg models.WaveBroadcastMessage) error
	PublishRideStatus(ctx context.Context, msg models.RideStatusMessage) error
}

type Notifier interface {
	NotifyDriver(ctx context.Context, driverID uuid.UUID, msg any)
	NotifyRider(ctx context.Context, riderID uuid.UUID, msg any)
}
