package dto

import (
	"time"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	"github.com/askhat-b/taxi-dispatch/pkg/validator"
)

type SubmitOfferRequest struct {
	FareAmount  float64 `json:"fare_amount"`
	FareVersion string  `json:"fare_version"`
}

func (r *SubmitOfferRequest) Validate(v *validator.Validator) {
	v.Check(r.FareAmount > 0, "fare_amount", "must be greater than zero")
	v.Check(r.FareVersion != "", "fare_version", "must be provided")
	v.Check(len(r.FareVersion) <= 64, "fare_version", "must not be more than 64 characters long")
}

func (r *SubmitOfferRequest) ToQuote() models.FareQuote {
	return models.FareQuote{
		Amount:  r.FareAmount,
		Version: r.FareVersion,
	}
}

type OfferResponse struct {
	OfferID     uuid.UUID  `json:"offer_id"`
	RideID      uuid.UUID  `json:"ride_id"`
	DriverID    uuid.UUID  `json:"driver_id"`
	Wave        int        `json:"wave"`
	Status      string     `json:"status"`
	FareAmount  float64    `json:"fare_amount"`
	PriceLabel  string     `json:"price_label"`
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

func NewOfferResponse(offer *models.Offer) OfferResponse {
	return OfferResponse{
		OfferID:     offer.ID,
		RideID:      offer.RideID,
		DriverID:    offer.DriverID,
		Wave:        offer.Wave,
		Status:      offer.Status.String(),
		FareAmount:  offer.FareAmount,
		PriceLabel:  offer.PriceLabel.String(),
		CreatedAt:   offer.CreatedAt,
		RespondedAt: offer.RespondedAt,
	}
}
