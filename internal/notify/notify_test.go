package notify

import (
	"context"
	"testing"

	"github.com/askhat-b/taxi-dispatch/pkg/logger"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
	ws "github.com/askhat-b/taxi-dispatch/pkg/wsHub"
)

func newTestNotifier() *Notifier {
	l := logger.NewNop()
	return New(ws.NewConnHub(l), ws.NewConnHub(l), l)
}

func TestNotifyDriver_NoConnectionIsDropped(t *testing.T) {
	n := newTestNotifier()

	// Nobody is connected; the push must be swallowed, not panic or block.
	n.NotifyDriver(context.Background(), uuid.MustNew(), map[string]any{"type": "wave"})
}

func TestNotifyRider_SkipsGuestRides(t *testing.T) {
	n := newTestNotifier()

	n.NotifyRider(context.Background(), uuid.UUID{}, map[string]any{"type": "status"})
	n.NotifyRider(context.Background(), uuid.MustNew(), map[string]any{"type": "status"})
}
