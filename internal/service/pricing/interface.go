package pricing

import (
	"context"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
)

// Quoter converts a distance/duration pair into an opaque fare quote.
// The core never looks inside the formula, only at the quote shape.
type Quoter interface {
	Quote(ctx context.Context, distanceKm float64, durationMin int) (models.FareQuote, error)
}
