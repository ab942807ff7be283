package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
)

const earthRadiusKm = 6371

// Estimate is the pricing output attached to a new ride.
type Estimate struct {
	DistanceKm  float64
	DurationMin int
	Quote       models.FareQuote
}

// Service computes route estimates and delegates the money part to a Quoter.
type Service struct {
	quoter      Quoter
	avgSpeedKmh float64
}

func New(cfg config.PricingConfig, quoter Quoter) *Service {
	return &Service{
		quoter:      quoter,
		avgSpeedKmh: cfg.AvgSpeedKm,
	}
}

// NewQuoter picks the remote pricing endpoint when configured, otherwise the
// local tariff table.
func NewQuoter(cfg config.PricingConfig) Quoter {
	if cfg.RemoteURL != "" {
		return NewRemoteQuoter(cfg.RemoteURL)
	}
	return NewTariffQuoter(cfg)
}

func (s *Service) Estimate(ctx context.Context, origin, destination models.Location) (Estimate, error) {
	distanceKm := DistanceKm(origin, destination)
	durationMin := s.DurationMin(distanceKm)

	quote, err := s.quoter.Quote(ctx, distanceKm, durationMin)
	if err != nil {
		return Estimate{}, wrap.Error(ctx, fmt.Errorf("failed to quote fare: %w", err))
	}

	return Estimate{
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Quote:       quote,
	}, nil
}

// DistanceKm is the haversine great-circle distance between two points.
func DistanceKm(p1, p2 models.Location) float64 {
	lat1Rad := p1.Latitude * math.Pi / 180
	lon1Rad := p1.Longitude * math.Pi / 180
	lat2Rad := p2.Latitude * math.Pi / 180
	lon2Rad := p2.Longitude * math.Pi / 180

	diffLat := lat2Rad - lat1Rad
	diffLon := lon2Rad - lon1Rad

	a := math.Pow(math.Sin(diffLat/2), 2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Pow(math.Sin(diffLon/2), 2)
	angle := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * angle
}

// DurationMin estimates travel time in whole minutes at the configured
// average city speed.
func (s *Service) DurationMin(distanceKm float64) int {
	if distanceKm <= 0 || s.avgSpeedKmh <= 0 {
		return 0
	}
	return int(math.Ceil((distanceKm / s.avgSpeedKmh) * 60))
}
