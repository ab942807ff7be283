package models

import (
	"context"

	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// Actor identifies who is performing an operation: an authenticated rider or
// driver (by ID), an unauthenticated guest (by opaque token), or the system
// itself (timers, schedulers).
type Actor struct {
	ID         uuid.UUID
	Role       types.ActorRole
	GuestToken string
}

// SystemActor is used by timeout handlers and internal schedulers.
func SystemActor() Actor {
	return Actor{Role: types.RoleSystem}
}

// AnonymousActor is the actor for requests without credentials.
func AnonymousActor() Actor {
	return Actor{}
}

func (a Actor) IsAnonymous() bool {
	return a.Role == ""
}

func (a Actor) String() string {
	switch {
	case a.Role == types.RoleSystem:
		return "system"
	case a.Role == types.RoleGuest:
		return "guest"
	default:
		return a.Role.String() + ":" + a.ID.String()
	}
}

type actorCtxKey struct{}

var actorKey = actorCtxKey{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored in the context, or the anonymous
// actor when none was set.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey).(Actor); ok {
		return a
	}
	return AnonymousActor()
}
