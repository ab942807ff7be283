package pricing

import (
	"context"
	"math"
	"testing"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
)

func TestClassifier_Label(t *testing.T) {
	c := NewClassifier(0.90, 1.10)

	tests := []struct {
		name      string
		offer     float64
		reference float64
		want      types.PriceLabel
	}{
		{"well below reference", 700, 1000, types.LabelGoodDeal},
		{"exactly at good deal boundary", 900, 1000, types.LabelGoodDeal},
		{"just above good deal boundary", 901, 1000, types.LabelNormal},
		{"equal to reference", 1000, 1000, types.LabelNormal},
		{"just below pricier boundary", 1099, 1000, types.LabelNormal},
		{"exactly at pricier boundary", 1100, 1000, types.LabelPricier},
		{"well above reference", 1500, 1000, types.LabelPricier},
		{"zero reference fare", 500, 0, types.LabelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Label(tt.offer, tt.reference)
			if got != tt.want {
				t.Fatalf("Label(%v, %v) = %v, want %v", tt.offer, tt.reference, got, tt.want)
			}
		})
	}
}

func TestDistanceKm(t *testing.T) {
	// Almaty city center to the airport, roughly 15 km great-circle.
	center := models.Location{Latitude: 43.238949, Longitude: 76.889709}
	airport := models.Location{Latitude: 43.354652, Longitude: 77.040482}

	got := DistanceKm(center, airport)
	if got < 14 || got > 20 {
		t.Fatalf("DistanceKm = %v, expected 14..20 km", got)
	}

	if d := DistanceKm(center, center); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}

func TestService_DurationMin(t *testing.T) {
	s := New(config.PricingConfig{AvgSpeedKm: 30}, NewTariffQuoter(config.PricingConfig{}))

	if got := s.DurationMin(15); got != 30 {
		t.Fatalf("DurationMin(15) = %d, want 30", got)
	}
	if got := s.DurationMin(0); got != 0 {
		t.Fatalf("DurationMin(0) = %d, want 0", got)
	}
	// Partial minutes round up.
	if got := s.DurationMin(1); got != 2 {
		t.Fatalf("DurationMin(1) = %d, want 2", got)
	}
}

func TestTariffQuoter_Quote(t *testing.T) {
	q := NewTariffQuoter(config.PricingConfig{
		BaseFare: 500,
		PerKm:    120,
		PerMin:   35,
	})

	quote, err := q.Quote(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 500 + 10*120 + 20*35.0
	if math.Abs(quote.Amount-want) > 1e-9 {
		t.Fatalf("amount = %v, want %v", quote.Amount, want)
	}
	if quote.Version != TariffVersion {
		t.Fatalf("version = %q, want %q", quote.Version, TariffVersion)
	}
}
