package models

import (
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/hasher"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// Ride is one transportation request. The state column only changes through
// the transition table in the types package; rides are never deleted, they
// reach a terminal state and are retained for audit.
type Ride struct {
	ID         uuid.UUID
	RideNumber string
	State      types.RideState

	RiderID uuid.UUID
	// Guest rides are owned by an opaque token instead of RiderID. Only
	// its hash is stored; GuestToken carries the plaintext on the
	// creation path and is empty everywhere else.
	GuestTokenHash *string
	GuestToken     string
	RequestType    string
	ActorType      types.ActorRole

	Origin      Location
	Destination Location

	// Reference fare quoted at creation time; offer price labels are
	// derived against it.
	ReferenceFare        float64
	FareVersion          string
	EstimatedDistanceKm  float64
	EstimatedDurationMin int

	// Discovery session, meaningful only while State == discovery.
	Wave         int
	WaveDeadline *time.Time

	SelectedOfferID    *uuid.UUID
	CancellationReason *string

	// One timestamp per transition
	CreatedAt          time.Time
	DiscoveryStartedAt *time.Time
	HeldAt             *time.Time
	ConfirmedAt        *time.Time
	ActivatedAt        *time.Time
	CompletedAt        *time.Time
	CanceledAt         *time.Time
	ExpiredAt          *time.Time
}

// OwnedBy reports whether the given actor owns this ride: the rider by ID,
// or a guest by matching token.
func (r *Ride) OwnedBy(actor Actor) bool {
	switch actor.Role {
	case types.RoleRider:
		return !actor.ID.IsZero() && actor.ID == r.RiderID
	case types.RoleGuest:
		return r.GuestTokenHash != nil && actor.GuestToken != "" && hasher.Verify(actor.GuestToken, *r.GuestTokenHash)
	case types.RoleSystem:
		return true
	default:
		return false
	}
}

// FareQuote is the opaque output of the pricing collaborator.
type FareQuote struct {
	Amount  float64 `json:"amount"`
	Version string  `json:"version"`
}
