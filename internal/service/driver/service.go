package driver

import (
	"context"

	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// GeoIndex is the availability index; a driver present in it is on duty.
type GeoIndex interface {
	Upsert(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
	Remove(ctx context.Context, driverID uuid.UUID) error
}

// FavoriteRepo stores rider favorite-driver relations. Wave one of discovery
// seeds its candidate pool from these.
type FavoriteRepo interface {
	Add(ctx context.Context, riderID, driverID uuid.UUID) error
	Remove(ctx context.Context, riderID, driverID uuid.UUID) error
	ListDriverIDs(ctx context.Context, riderID uuid.UUID) ([]uuid.UUID, error)
}

// Service tracks driver availability. Discovery reads the same index when
// it builds wave candidate pools.
type Service struct {
	geo       GeoIndex
	favorites FavoriteRepo
	logger    logger.Logger
}

func NewService(geo GeoIndex, favorites FavoriteRepo, logger logger.Logger) *Service {
	return &Service{geo: geo, favorites: favorites, logger: logger}
}

// Online puts the driver on duty at the given position.
func (s *Service) Online(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	ctx = wrap.WithAction(ctx, "driver_online")
	ctx = wrap.WithDriverID(ctx, driverID.String())

	if err := s.geo.Upsert(ctx, driverID, lat, lon); err != nil {
		return wrap.Error(ctx, err)
	}
	s.logger.Info(ctx, "driver went online")
	return nil
}

// UpdateLocation refreshes an on-duty driver's position.
func (s *Service) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	ctx = wrap.WithAction(ctx, "driver_location_update")
	ctx = wrap.WithDriverID(ctx, driverID.String())

	if err := s.geo.Upsert(ctx, driverID, lat, lon); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// Offline takes the driver off duty; they stop receiving waves.
func (s *Service) Offline(ctx context.Context, driverID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "driver_offline")
	ctx = wrap.WithDriverID(ctx, driverID.String())

	if err := s.geo.Remove(ctx, driverID); err != nil {
		return wrap.Error(ctx, err)
	}
	s.logger.Info(ctx, "driver went offline")
	return nil
}

// AddFavorite marks a driver as one of the rider's favorites.
func (s *Service) AddFavorite(ctx context.Context, riderID, driverID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "add_favorite_driver")
	ctx = wrap.WithDriverID(wrap.WithActorID(ctx, riderID.String()), driverID.String())

	if err := s.favorites.Add(ctx, riderID, driverID); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// RemoveFavorite drops a driver from the rider's favorites.
func (s *Service) RemoveFavorite(ctx context.Context, riderID, driverID uuid.UUID) error {
	ctx = wrap.WithAction(ctx, "remove_favorite_driver")
	ctx = wrap.WithDriverID(wrap.WithActorID(ctx, riderID.String()), driverID.String())

	if err := s.favorites.Remove(ctx, riderID, driverID); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// ListFavorites returns the rider's favorite driver ids.
func (s *Service) ListFavorites(ctx context.Context, riderID uuid.UUID) ([]uuid.UUID, error) {
	ctx = wrap.WithAction(ctx, "list_favorite_drivers")
	ctx = wrap.WithActorID(ctx, riderID.String())

	ids, err := s.favorites.ListDriverIDs(ctx, riderID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ids, nil
}
