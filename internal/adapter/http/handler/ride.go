package handler

import (
	"context"
	"net/http"

	"github.com/askhat-b/taxi-dispatch/internal/adapter/http/handler/dto"
	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/service/ride"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	"github.com/askhat-b/taxi-dispatch/pkg/validator"
)

type RideService interface {
	Create(ctx context.Context, input ride.CreateInput) (*models.Ride, error)
	StartDiscovery(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error)
	Cancel(ctx context.Context, rideID uuid.UUID, actor models.Actor, reason string) (*models.Ride, error)
	Confirm(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error)
	Complete(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, error)
	Get(ctx context.Context, rideID uuid.UUID, actor models.Actor) (*models.Ride, []models.Offer, error)
	History(ctx context.Context, rideID uuid.UUID, actor models.Actor) ([]models.AuditEvent, error)
}

type Ride struct {
	service RideService
	l       logger.Logger
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

// Create godoc
// @Summary      Create ride
// @Description  Quotes the route and registers a new ride. Anonymous callers get a guest ride with an ownership token in the response.
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CreateRideRequest  true  "ride request"
// @Success      201      {object}  dto.CreateRideResponse
// @Failure      400      {object}  map[string]string
// @Failure      422      {object}  map[string]string
// @Router       /rides [post]
func (h *Ride) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")

	var req dto.CreateRideRequest
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

	origin, destination := req.Locations()
	created, err := h.service.Create(ctx, ride.CreateInput{
		Origin:      origin,
		Destination: destination,
		RequestType: req.RequestType,
		Actor:       models.ActorFromContext(ctx),
	})
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create ride", err)
		domainErrorResponse(w, err)
		return
	}

	resp := dto.NewCreateRideResponse(created)
	if err := writeJSON(w, http.StatusCreated, envelope{"ride": resp}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride created", "ride_id", created.ID, "ride_number", created.RideNumber)
}

// StartDiscovery godoc
// @Summary      Start driver discovery
// @Description  Moves the ride into discovery and broadcasts the first wave
// @Tags         Rides
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {object}  dto.RideResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /rides/{ride_id}/discovery [post]
func (h *Ride) StartDiscovery(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "start_discovery")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.StartDiscovery(ctx, rideID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to start discovery", err)
		domainErrorResponse(w, err)
		return
	}

	h.writeRide(ctx, w, updated, nil)
}

// Cancel godoc
// @Summary      Cancel ride
// @Description  Cancels the ride from any non-terminal state
// @Tags         Rides
// @Accept       json
// @Produce      json
// @Param        ride_id  path      string                 true  "ride id"
// @Param        request  body      dto.CancelRideRequest  true  "cancellation reason"
// @Success      200      {object}  dto.RideResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /rides/{ride_id}/cancel [post]
func (h *Ride) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_ride")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	var req dto.CancelRideRequest
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

	updated, err := h.service.Cancel(ctx, rideID, models.ActorFromContext(ctx), req.Reason)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel ride", err)
		domainErrorResponse(w, err)
		return
	}

	h.l.Info(ctx, "ride canceled", "ride_id", rideID)
	h.writeRide(ctx, w, updated, nil)
}

// Confirm godoc
// @Summary      Confirm ride
// @Description  Driver confirms the held ride; it becomes active
// @Tags         Rides
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {object}  dto.RideResponse
// @Failure      403      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /rides/{ride_id}/confirm [post]
func (h *Ride) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "confirm_ride")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.Confirm(ctx, rideID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to confirm ride", err)
		domainErrorResponse(w, err)
		return
	}

	h.l.Info(ctx, "ride confirmed", "ride_id", rideID)
	h.writeRide(ctx, w, updated, nil)
}

// Complete godoc
// @Summary      Complete ride
// @Description  Finishes an active ride
// @Tags         Rides
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {object}  dto.RideResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /rides/{ride_id}/complete [post]
func (h *Ride) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "complete_ride")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.Complete(ctx, rideID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to complete ride", err)
		domainErrorResponse(w, err)
		return
	}

	h.l.Info(ctx, "ride completed", "ride_id", rideID)
	h.writeRide(ctx, w, updated, nil)
}

// Get godoc
// @Summary      Get ride
// @Description  Returns the ride with its offers. Only the owner and involved drivers may read it.
// @Tags         Rides
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {object}  dto.RideResponse
// @Failure      403      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /rides/{ride_id} [get]
func (h *Ride) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_ride")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	found, offers, err := h.service.Get(ctx, rideID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get ride", err)
		domainErrorResponse(w, err)
		return
	}

	h.writeRide(ctx, w, found, offers)
}

// History godoc
// @Summary      Ride audit history
// @Description  Returns the append-only event log of the ride, oldest first
// @Tags         Rides
// @Produce      json
// @Param        ride_id  path      string  true  "ride id"
// @Success      200      {array}   dto.EventResponse
// @Failure      403      {object}  map[string]string
// @Router       /rides/{ride_id}/history [get]
func (h *Ride) History(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ride_history")

	rideID, ok := h.pathRideID(ctx, w, r)
	if !ok {
		return
	}

	events, err := h.service.History(ctx, rideID, models.ActorFromContext(ctx))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get ride history", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{"events": dto.NewEventResponses(events)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

func (h *Ride) pathRideID(ctx context.Context, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	rideID, err := uuid.Parse(r.PathValue("ride_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid ride uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid ride uuid format")
		return uuid.UUID{}, false
	}
	return rideID, true
}

func (h *Ride) writeRide(ctx context.Context, w http.ResponseWriter, ride *models.Ride, offers []models.Offer) {
	response := envelope{"ride": dto.NewRideResponse(ride, offers)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}
