package types

import "strings"

// OfferStatus is the lifecycle status of a driver offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferExpired  OfferStatus = "expired"
)

func (s OfferStatus) String() string {
	return string(s)
}

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferAccepted, OfferRejected, OfferExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the offer can no longer change status.
func (s OfferStatus) Terminal() bool {
	return s == OfferRejected || s == OfferExpired
}

// ParseOfferStatus normalizes and validates an offer status string.
func ParseOfferStatus(in string) (OfferStatus, bool) {
	s := OfferStatus(strings.ToLower(strings.TrimSpace(in)))
	return s, s.Valid()
}

// PriceLabel classifies an offer amount against the ride's reference fare.
type PriceLabel string

const (
	LabelGoodDeal PriceLabel = "good_deal"
	LabelNormal   PriceLabel = "normal"
	LabelPricier  PriceLabel = "pricier"
)

func (l PriceLabel) String() string {
	return string(l)
}

// ActorRole identifies who is acting on a ride.
type ActorRole string

const (
	RoleRider  ActorRole = "rider"
	RoleDriver ActorRole = "driver"
	RoleGuest  ActorRole = "guest"
	RoleSystem ActorRole = "system"
)

func (r ActorRole) String() string {
	return string(r)
}
