package types

// RideEvent is the type of an entry in the append-only ride audit log.
type RideEvent string

func (s RideEvent) String() string {
	return string(s)
}

const (
	EventRideCreated      RideEvent = "RIDE_CREATED"
	EventDiscoveryStarted RideEvent = "DISCOVERY_STARTED"
	EventWaveEscalated    RideEvent = "WAVE_ESCALATED"
	EventOfferSubmitted   RideEvent = "OFFER_SUBMITTED"
	EventOfferSelected    RideEvent = "OFFER_SELECTED"
	EventOfferRejected    RideEvent = "OFFER_REJECTED"
	EventOfferExpired     RideEvent = "OFFER_EXPIRED"
	EventHoldExpired      RideEvent = "HOLD_EXPIRED"
	EventRideConfirmed    RideEvent = "RIDE_CONFIRMED"
	EventRideActivated    RideEvent = "RIDE_ACTIVATED"
	EventRideCompleted    RideEvent = "RIDE_COMPLETED"
	EventRideCancelled    RideEvent = "RIDE_CANCELLED"
	EventRideExpired      RideEvent = "RIDE_EXPIRED"
)
