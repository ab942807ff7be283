package dto

import (
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	"github.com/askhat-b/taxi-dispatch/pkg/validator"
)

type LocationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

func (l LocationDTO) validate(v *validator.Validator, prefix string) {
	v.Check(l.Latitude >= -90 && l.Latitude <= 90, prefix+"_latitude", "must be between -90 and 90")
	v.Check(l.Longitude >= -180 && l.Longitude <= 180, prefix+"_longitude", "must be between -180 and 180")
	v.Check(len(l.Address) <= 255, prefix+"_address", "must not be more than 255 characters long")
}

func (l LocationDTO) toModel() models.Location {
	return models.Location{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Address:   l.Address,
	}
}

type CreateRideRequest struct {
	Origin      LocationDTO `json:"origin"`
	Destination LocationDTO `json:"destination"`
	RequestType string      `json:"request_type"`
}

func (r *CreateRideRequest) Validate(v *validator.Validator) {
	r.Origin.validate(v, "origin")
	r.Destination.validate(v, "destination")

	v.Check(r.RequestType != "", "request_type", "must be provided")
	if r.RequestType != "" {
		v.Check(validator.PermittedValue(r.RequestType, "standard", "comfort", "wagon"), "request_type", "must be one of standard, comfort, or wagon")
	}
}

func (r *CreateRideRequest) Locations() (origin, destination models.Location) {
	return r.Origin.toModel(), r.Destination.toModel()
}

type CreateRideResponse struct {
	RideID               uuid.UUID `json:"ride_id"`
	RideNumber           string    `json:"ride_number"`
	State                string    `json:"state"`
	ReferenceFare        float64   `json:"reference_fare"`
	FareVersion          string    `json:"fare_version"`
	EstimatedDistanceKm  float64   `json:"estimated_distance_km"`
	EstimatedDurationMin int       `json:"estimated_duration_minutes"`
	GuestToken           string    `json:"guest_token,omitempty"`
}

func NewCreateRideResponse(ride *models.Ride) CreateRideResponse {
	resp := CreateRideResponse{
		RideID:               ride.ID,
		RideNumber:           ride.RideNumber,
		State:                ride.State.String(),
		ReferenceFare:        ride.ReferenceFare,
		FareVersion:          ride.FareVersion,
		EstimatedDistanceKm:  ride.EstimatedDistanceKm,
		EstimatedDurationMin: ride.EstimatedDurationMin,
	}
	// The ownership token is returned exactly once, at creation. Only
	// its hash is persisted, so it is empty on every later read.
	resp.GuestToken = ride.GuestToken
	return resp
}

type CancelRideRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRideRequest) Validate(v *validator.Validator) {
	v.Check(r.Reason != "", "reason", "must be provided")
	v.Check(len(r.Reason) <= 500, "reason", "must not be more than 500 characters long")
}

// RideResponse is the full rider-facing view of a ride.
type RideResponse struct {
	RideID          uuid.UUID       `json:"ride_id"`
	RideNumber      string          `json:"ride_number"`
	State           string          `json:"state"`
	RequestType     string          `json:"request_type"`
	Origin          LocationDTO     `json:"origin"`
	Destination     LocationDTO     `json:"destination"`
	ReferenceFare   float64         `json:"reference_fare"`
	Wave            int             `json:"wave,omitempty"`
	WaveDeadline    *time.Time      `json:"wave_deadline,omitempty"`
	SelectedOfferID *uuid.UUID      `json:"selected_offer_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Offers          []OfferResponse `json:"offers,omitempty"`
}

func NewRideResponse(ride *models.Ride, offers []models.Offer) RideResponse {
	resp := RideResponse{
		RideID:          ride.ID,
		RideNumber:      ride.RideNumber,
		State:           ride.State.String(),
		RequestType:     ride.RequestType,
		Origin:          LocationDTO{ride.Origin.Latitude, ride.Origin.Longitude, ride.Origin.Address},
		Destination:     LocationDTO{ride.Destination.Latitude, ride.Destination.Longitude, ride.Destination.Address},
		ReferenceFare:   ride.ReferenceFare,
		Wave:            ride.Wave,
		WaveDeadline:    ride.WaveDeadline,
		SelectedOfferID: ride.SelectedOfferID,
		CreatedAt:       ride.CreatedAt,
	}
	for i := range offers {
		resp.Offers = append(resp.Offers, NewOfferResponse(&offers[i]))
	}
	return resp
}

// EventResponse is one audit log entry.
type EventResponse struct {
	Type          string    `json:"type"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	Actor         string    `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewEventResponses(events []models.AuditEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			Type:          e.Type.String(),
			PreviousState: e.PreviousState.String(),
			NewState:      e.NewState.String(),
			Actor:         e.Actor,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
