// Package notify pushes realtime updates to connected riders and drivers
// over websocket. Delivery is best effort: a missing or dead connection is
// logged and dropped, it never fails the operation that triggered the push.
package notify

import (
	"context"
	"errors"

	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	ws "github.com/askhat-b/taxi-dispatch/pkg/wsHub"
)

type Notifier struct {
	driverHub *ws.ConnectionHub
	riderHub  *ws.ConnectionHub

	l logger.Logger
}

func New(driverHub, riderHub *ws.ConnectionHub, l logger.Logger) *Notifier {
	return &Notifier{
		driverHub: driverHub,
		riderHub:  riderHub,
		l:         l,
	}
}

func (n *Notifier) NotifyDriver(ctx context.Context, driverID uuid.UUID, msg any) {
	ctx = wrap.WithDriverID(wrap.WithAction(ctx, "notify_driver"), driverID.String())
	n.send(ctx, n.driverHub, driverID, msg)
}

func (n *Notifier) NotifyRider(ctx context.Context, riderID uuid.UUID, msg any) {
	// Guest rides have no rider account and no rider socket.
	if riderID.IsZero() {
		return
	}

	ctx = wrap.WithAction(ctx, "notify_rider")
	n.send(ctx, n.riderHub, riderID, msg)
}

func (n *Notifier) send(ctx context.Context, hub *ws.ConnectionHub, id uuid.UUID, msg any) {
	conn, err := hub.GetConn(id)
	if err != nil {
		n.l.Debug(ctx, "no active connection, skipping push", "entity_id", id.String())
		return
	}

	if err := conn.SendJSON(msg); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		n.l.Warn(ctx, "push delivery failed", "entity_id", id.String(), "error", err.Error())
	}
}
