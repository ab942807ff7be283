package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/metrics"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	ws "github.com/askhat-b/taxi-dispatch/pkg/wsHub"
)

const wsServiceName = "dispatch"

// WS upgrades rider and driver sockets and keeps them registered in the
// hubs the notifier pushes through. Drivers may stream location updates
// over their socket instead of the REST endpoint.
type WS struct {
	driverHub *ws.ConnectionHub
	riderHub  *ws.ConnectionHub
	drivers   DriverService
	upgrader  websocket.Upgrader
	l         logger.Logger
}

func NewWS(driverHub, riderHub *ws.ConnectionHub, drivers DriverService, l logger.Logger) *WS {
	return &WS{
		driverHub: driverHub,
		riderHub:  riderHub,
		drivers:   drivers,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		l: l,
	}
}

// HandleDriver godoc
// @Summary      Driver websocket
// @Description  Realtime channel for wave solicitations and offer updates
// @Tags         WebSocket
// @Param        driver_id  path  string  true  "driver id"
// @Router       /ws/drivers/{driver_id} [get]
func (h *WS) HandleDriver(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_ws_connect")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid driver uuid format")
		return
	}

	actor := models.ActorFromContext(ctx)
	if actor.Role != types.RoleDriver || actor.ID != driverID {
		errorResponse(w, http.StatusForbidden, "socket does not belong to caller")
		return
	}

	ctx = wrap.WithDriverID(ctx, driverID.String())
	h.serve(ctx, w, r, h.driverHub, driverID, h.driverMessage(driverID))
}

// HandleRider godoc
// @Summary      Rider websocket
// @Description  Realtime channel for offer and lifecycle updates
// @Tags         WebSocket
// @Param        rider_id  path  string  true  "rider id"
// @Router       /ws/riders/{rider_id} [get]
func (h *WS) HandleRider(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "rider_ws_connect")

	riderID, err := uuid.Parse(r.PathValue("rider_id"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid rider uuid format")
		return
	}

	actor := models.ActorFromContext(ctx)
	if actor.Role != types.RoleRider || actor.ID != riderID {
		errorResponse(w, http.StatusForbidden, "socket does not belong to caller")
		return
	}

	h.serve(ctx, w, r, h.riderHub, riderID, nil)
}

func (h *WS) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, hub *ws.ConnectionHub, entityID uuid.UUID, onMessage func(msg any) error) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "websocket upgrade failed", err)
		return
	}

	conn := ws.NewConn(context.Background(), entityID, sock)
	if err := hub.Add(conn); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to register connection", err)
		_ = conn.Close()
		return
	}

	metrics.WebSocketConnectionsGauge.WithLabelValues(wsServiceName).Inc()
	defer metrics.WebSocketConnectionsGauge.WithLabelValues(wsServiceName).Dec()

	h.l.Info(ctx, "websocket connected", "entity_id", entityID)

	if onMessage == nil {
		onMessage = func(msg any) error { return nil }
	}

	// Blocks until the peer disconnects or a read fails.
	if err := conn.Listen(onMessage); err != nil {
		h.l.Debug(ctx, "websocket closed", "entity_id", entityID, "reason", err.Error())
	}

	_ = hub.Delete(entityID)
}

// driverMessage handles inbound frames from a driver socket. Only location
// updates are accepted; everything else is ignored.
func (h *WS) driverMessage(driverID uuid.UUID) func(msg any) error {
	return func(msg any) error {
		frame, ok := msg.(map[string]any)
		if !ok {
			return nil
		}
		if frame["type"] != "location_update" {
			return nil
		}

		lat, latOK := frame["latitude"].(float64)
		lon, lonOK := frame["longitude"].(float64)
		if !latOK || !lonOK {
			return nil
		}

		ctx := wrap.WithAction(context.Background(), "driver_ws_location")
		if err := h.drivers.UpdateLocation(ctx, driverID, lat, lon); err != nil {
			h.l.Warn(ctx, "location update over socket failed", "driver_id", driverID, "error", err.Error())
		}
		return nil
	}
}
