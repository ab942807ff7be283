package handler

import (
	"context"
	"net/http"

	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/handler/dto"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	"github.com/askhat-b/taxi-dispatch/pkg/validator"
)

type OfferService interface {
	Submit(ctx context.Context, rideID, driverID uuid.UUID, fare models.FareQuote) (*models.Offer, error)
	Select(ctx context.Context, rideID, offerID uuid.UUID, actor models.Actor) (*models.Ride, error)
	Reject(ctx context.Context, rideID, offerID uuid.UUID, actor models.Actor) (*models.Offer, error)
	ListByRide(ctx context.Context, rideID uuid.UUID) ([]models.Offer, error)
}

type Offer struct {
	service OfferService
	l       logger.Logger
}

func NewOffer(service OfferService, l logger.Logger) *Offer {
	return &Offer{
		service: service,
		l:       l,
	}
}

// Submit godoc
// @Summary      Submit offer
// @Description  Driver submits a fare offer for a ride in discovery
// @Tags         Offers
// @Accept       json
// @Produce      json
// @Param        ride_id  path      string                  true  "ride id"
// @Param        request  body      dto.SubmitOfferRequest  true  "fare offer"
// @Success      201      {object}  dto.OfferResponse
// @Failure      409      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Router       /rides/{ride_id}/offers [post]
func (h *Offer) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "submit_offer")

	rideID, ok := h.pathID(ctx, w, r, "ride_id")
	if !ok {
		return
	}

	var req dto.SubmitOfferRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	actor := models.ActorFromContext(ctx)
	offer, err := h.service.Submit(ctx, rideID, actor.ID, req.ToQuote())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to submit offer", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"offer": dto.NewOfferResponse(offer)}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "offer submitted", "ride_id", rideID, "offer_id", offer.ID)
}

// Select godoc
// @Summary      Select offer
// @Description  Rider picks the winning offer; the ride moves to hold
// @Tags         Offers
// @Produce      json
// @Param        ride_id   path      string  true  "ride id"
// @Param        offer_id  path      string  true  "offer id"
// @Success      200       {object}  dto.RideResponse
// @Failure      403       {object}  map[string]string
// @Failure      409       {object}  map[string]string
// @Router       /rides/{ride_id}/offers/{offer_id}/select [post]
func (h *Offer) Select(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "select_offer")

	rideID, ok := h.pathID(ctx, w, r, "ride_id")
	if !ok {
		return
	}
	offerID, ok := h.pathID(ctx, w, r, "offer_id")
	if !ok {
		return
	}

	ride, err := h.service.Select(ctx, rideID, offerID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to select offer", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"ride": dto.NewRideResponse(ride, nil)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "offer selected", "ride_id", rideID, "offer_id", offerID)
}

// Reject godoc
// @Summary      Reject own offer
// @Description  Driver withdraws a still-pending offer
// @Tags         Offers
// @Produce      json
// @Param        ride_id   path      string  true  "ride id"
// @Param        offer_id  path      string  true  "offer id"
// @Success      200       {object}  dto.OfferResponse
// @Failure      403       {object}  map[string]string
// @Failure      409       {object}  map[string]string
// @Router       /rides/{ride_id}/offers/{offer_id}/reject [post]
func (h *Offer) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "reject_offer")

	rideID, ok := h.pathID(ctx, w, r, "ride_id")
	if !ok {
		return
	}
	offerID, ok := h.pathID(ctx, w, r, "offer_id")
	if !ok {
		return
	}

	offer, err := h.service.Reject(ctx, rideID, offerID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to reject offer", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"offer": dto.NewOfferResponse(offer)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// List godoc
// @Summary      List offers
// @Description  Returns all offers submitted for the ride, newest first
// @Tags         Offers
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {array}   dto.OfferResponse
// @Router       /rides/{ride_id}/offers [get]
func (h *Offer) List(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_offers")

	rideID, ok := h.pathID(ctx, w, r, "ride_id")
	if !ok {
		return
	}

	offers, err := h.service.ListByRide(ctx, rideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list offers", err)
		domainErrorResponse(w, err)
		return
	}

	out := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		out = append(out, dto.NewOfferResponse(&offers[i]))
	}

	if err := writeJSON(w, http.StatusOK, envelope{"offers": out}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

func (h *Offer) pathID(ctx context.Context, w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.l.Warn(ctx, "invalid uuid format", "param", name)
		errorResponse(w, http.StatusBadRequest, "invalid "+name+" uuid format")
		return uuid.UUID{}, false
	}
	return id, true
}
