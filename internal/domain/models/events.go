package models

import (
	"encoding/json"
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// AuditEvent is one entry of the append-only ride audit log. The log is the
// sole source of truth for "what happened and when"; entries are never
// updated or removed.
type AuditEvent struct {
	ID            uuid.UUID       `json:"id"`
	RideID        uuid.UUID       `json:"ride_id"`
	Type          types.RideEvent `json:"type"`
	PreviousState types.RideState `json:"previous_state"`
	NewState      types.RideState `json:"new_state"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

/* ======================= rabbitmq ======================= */

type LocationMessage struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// WaveBroadcastMessage fans a discovery wave out to candidate drivers.
type WaveBroadcastMessage struct {
	RideID              uuid.UUID       `json:"ride_id"`
	RideNumber          string          `json:"ride_number"`
	Wave                int             `json:"wave"`
	OriginLocation      LocationMessage `json:"origin_location"`
	DestinationLocation LocationMessage `json:"destination_location"`
	ReferenceFare       float64         `json:"reference_fare"`
	CandidateDriverIDs  []uuid.UUID     `json:"candidate_driver_ids"`
	ExpiresAt           time.Time       `json:"expires_at"`
	CorrelationID       string          `json:"correlation_id"`
}

// RideStatusMessage announces a ride state change on the bus.
type RideStatusMessage struct {
	RideID        uuid.UUID       `json:"ride_id"`
	PreviousState types.RideState `json:"previous_state"`
	State         types.RideState `json:"state"`
	Timestamp     time.Time       `json:"timestamp"`
	DriverID      *uuid.UUID      `json:"driver_id,omitempty"`
	CorrelationID string          `json:"correlation_id"`
}

// DriverOfferMessage is a driver's fare offer arriving over the bus.
type DriverOfferMessage struct {
	RideID        uuid.UUID `json:"ride_id"`
	DriverID      uuid.UUID `json:"driver_id"`
	FareAmount    float64   `json:"fare_amount"`
	FareVersion   string    `json:"fare_version"`
	CorrelationID string    `json:"correlation_id"`
}

/* ======================= websocket ======================= */

// OfferPushMessage is sent to a candidate driver over websocket when a wave
// solicits them.
type OfferPushMessage struct {
	Type                string          `json:"type"` // always "ride_request"
	RideID              uuid.UUID       `json:"ride_id"`
	RideNumber          string          `json:"ride_number"`
	Wave                int             `json:"wave"`
	OriginLocation      LocationMessage `json:"origin_location"`
	DestinationLocation LocationMessage `json:"destination_location"`
	ReferenceFare       float64         `json:"reference_fare"`
	ExpiresAt           time.Time       `json:"expires_at"`
}

// RiderUpdateMessage is sent to the rider on every lifecycle event.
type RiderUpdateMessage struct {
	Type    string          `json:"type"`
	RideID  uuid.UUID       `json:"ride_id"`
	State   types.RideState `json:"state"`
	Message string          `json:"message,omitempty"`
	Offer   *OfferSummary   `json:"offer,omitempty"`
}

// DriverUpdateMessage notifies a driver about their offer / the ride.
type DriverUpdateMessage struct {
	Type    string          `json:"type"`
	RideID  uuid.UUID       `json:"ride_id"`
	OfferID *uuid.UUID      `json:"offer_id,omitempty"`
	State   types.RideState `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
}

// OfferSummary is the rider-facing view of one offer.
type OfferSummary struct {
	OfferID    uuid.UUID         `json:"offer_id"`
	DriverID   uuid.UUID         `json:"driver_id"`
	FareAmount float64           `json:"fare_amount"`
	PriceLabel types.PriceLabel  `json:"price_label"`
	Status     types.OfferStatus `json:"status"`
	Wave       int               `json:"wave"`
}
