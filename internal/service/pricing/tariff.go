package pricing

import (
	"context"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
)

// TariffVersion stamps quotes produced by the local tariff table so that
// offers can be traced back to the formula that priced them.
const TariffVersion = "tariff-v1"

// TariffQuoter prices a ride from the static tariff in config.
type TariffQuoter struct {
	baseFare float64
	perKm    float64
	perMin   float64
}

func NewTariffQuoter(cfg config.PricingConfig) *TariffQuoter {
	return &TariffQuoter{
		baseFare: cfg.BaseFare,
		perKm:    cfg.PerKm,
		perMin:   cfg.PerMin,
	}
}

func (q *TariffQuoter) Quote(_ context.Context, distanceKm float64, durationMin int) (models.FareQuote, error) {
	amount := q.baseFare + (distanceKm * q.perKm) + (float64(durationMin) * q.perMin)
	return models.FareQuote{
		Amount:  amount,
		Version: TariffVersion,
	}, nil
}
