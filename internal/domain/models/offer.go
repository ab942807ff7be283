package models

import (
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// Offer is a driver's response to a discovery wave for one ride.
// Offers are never deleted; terminal statuses keep the audit trail.
type Offer struct {
	ID       uuid.UUID
	RideID   uuid.UUID
	DriverID uuid.UUID

	// Wave tier the offer originated from (1..3).
	Wave int

	Status     types.OfferStatus
	FareAmount float64
	// Pricing formula version the quote was produced with.
	FareVersion string
	PriceLabel  types.PriceLabel

	CreatedAt   time.Time
	RespondedAt *time.Time
}
