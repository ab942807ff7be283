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

type DriverService interface {
	Online(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
	UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lon float64) error
	Offline(ctx context.Context, driverID uuid.UUID) error
	AddFavorite(ctx context.Context, riderID, driverID uuid.UUID) error
	RemoveFavorite(ctx context.Context, riderID, driverID uuid.UUID) error
	ListFavorites(ctx context.Context, riderID uuid.UUID) ([]uuid.UUID, error)
}

type Driver struct {
	service DriverService
	l       logger.Logger
}

func NewDriver(service DriverService, l logger.Logger) *Driver {
	return &Driver{
		service: service,
		l:       l,
	}
}

// GoOnline godoc
// @Summary      Driver goes online
// @Description  Puts the driver on duty at the given position
// @Tags         Drivers
// @Accept       json
// @Produce      json
// @Param        driver_id  path      string                   true  "driver id"
// @Param        request    body      dto.CoordinateUpdateReq  true  "position"
// @Success      200        {object}  map[string]string
// @Failure      422        {object}  map[string]string
// @Router       /drivers/{driver_id}/online [post]
func (h *Driver) GoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_online")

	driverID, ok := h.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	req, ok := h.readCoordinate(ctx, w, r)
	if !ok {
		return
	}

	if err := h.service.Online(ctx, driverID, *req.Latitude, *req.Longitude); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver status to online", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{
		"status":  "online",
		"message": "You are now online and receiving ride requests",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to online", "driver_id", driverID)
}

// UpdateLocation godoc
// @Summary      Update driver location
// @Tags         Drivers
// @Accept       json
// @Produce      json
// @Param        driver_id  path      string                   true  "driver id"
// @Param        request    body      dto.CoordinateUpdateReq  true  "position"
// @Success      200        {object}  map[string]string
// @Router       /drivers/{driver_id}/location [post]
func (h *Driver) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_driver_location")

	driverID, ok := h.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	req, ok := h.readCoordinate(ctx, w, r)
	if !ok {
		return
	}

	if err := h.service.UpdateLocation(ctx, driverID, *req.Latitude, *req.Longitude); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update driver location", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": "updated"}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// GoOffline godoc
// @Summary      Driver goes offline
// @Tags         Drivers
// @Produce      json
// @Param        driver_id  path      string  true  "driver id"
// @Success      200        {object}  map[string]string
// @Router       /drivers/{driver_id}/offline [post]
func (h *Driver) GoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_offline")

	driverID, ok := h.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	if err := h.service.Offline(ctx, driverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver status to offline", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{
		"status":  "offline",
		"message": "You are now offline",
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver set to offline", "driver_id", driverID)
}

// AddFavorite godoc
// @Summary      Add favorite driver
// @Description  Marks a driver as a favorite of the calling rider. Favorites are solicited first in wave one.
// @Tags         Favorites
// @Accept       json
// @Produce      json
// @Param        request  body      dto.FavoriteDriverRequest  true  "driver"
// @Success      201      {object}  map[string]string
// @Router       /riders/favorites [post]
func (h *Driver) AddFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "add_favorite_driver")

	driverID, ok := h.readFavorite(ctx, w, r)
	if !ok {
		return
	}

	actor := models.ActorFromContext(ctx)
	if err := h.service.AddFavorite(ctx, actor.ID, driverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to add favorite driver", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"status": "added"}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// RemoveFavorite godoc
// @Summary      Remove favorite driver
// @Tags         Favorites
// @Produce      json
// @Param        driver_id  path      string  true  "driver id"
// @Success      200        {object}  map[string]string
// @Router       /riders/favorites/{driver_id} [delete]
func (h *Driver) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "remove_favorite_driver")

	driverID, ok := h.pathDriverID(ctx, w, r)
	if !ok {
		return
	}

	actor := models.ActorFromContext(ctx)
	if err := h.service.RemoveFavorite(ctx, actor.ID, driverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to remove favorite driver", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": "removed"}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// ListFavorites godoc
// @Summary      List favorite drivers
// @Tags         Favorites
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Router       /riders/favorites [get]
func (h *Driver) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_favorite_drivers")

	actor := models.ActorFromContext(ctx)
	ids, err := h.service.ListFavorites(ctx, actor.ID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list favorite drivers", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"driver_ids": ids}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

func (h *Driver) pathDriverID(ctx context.Context, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid driver uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid driver uuid format")
		return uuid.UUID{}, false
	}
	return driverID, true
}

func (h *Driver) readCoordinate(ctx context.Context, w http.ResponseWriter, r *http.Request) (dto.CoordinateUpdateReq, bool) {
	var req dto.CoordinateUpdateReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return req, false
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return req, false
	}

	return req, true
}

func (h *Driver) readFavorite(ctx context.Context, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req dto.FavoriteDriverRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return uuid.UUID{}, false
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return uuid.UUID{}, false
	}

	driverID, _ := uuid.Parse(req.DriverID)
	return driverID, true
}
