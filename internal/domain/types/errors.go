package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition   = errors.New("invalid ride state transition")
	ErrForbidden           = errors.New("actor does not own this resource")
	ErrConflict            = errors.New("concurrent modification lost the race")
	ErrNotFound            = errors.New("requested item not found")
	ErrRideNotFound        = errors.New("ride not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrRideNotDiscoverable = errors.New("ride is not accepting offers")
	ErrOfferNotPending     = errors.New("offer is not pending")

	ErrDatabaseFailed          = errors.New("database operation failed")
	ErrFailedToPublishMessage  = errors.New("failed to publish broker message")
	ErrNotificationUndelivered = errors.New("notification could not be delivered")
)

// Stable machine-readable codes exposed to clients alongside the
// human-readable detail string.
const (
	CodeInvalidTransition   = "INVALID_STATE_TRANSITION"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeNotFound            = "NOT_FOUND"
	CodeRideNotDiscoverable = "RIDE_NOT_DISCOVERABLE"
	CodeOfferNotPending     = "OFFER_NOT_PENDING"
	CodeInternal            = "INTERNAL"
)

// ErrorCode maps an error to its stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrRideNotDiscoverable):
		return CodeRideNotDiscoverable
	case errors.Is(err, ErrOfferNotPending):
		return CodeOfferNotPending
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRideNotFound), errors.Is(err, ErrOfferNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// InvalidTransitionError carries the rejected edge and lists the valid
// successors of the current state in its message.
type InvalidTransitionError struct {
	From RideState
	To   RideState
}

func (e *InvalidTransitionError) Error() string {
	next := e.From.ValidNext()
	if len(next) == 0 {
		return fmt.Sprintf("invalid ride state transition: %s -> %s (state %q is terminal)", e.From, e.To, e.From)
	}

	names := make([]string, len(next))
	for i, s := range next {
		names[i] = s.String()
	}
	return fmt.Sprintf("invalid ride state transition: %s -> %s (valid: %s)", e.From, e.To, strings.Join(names, ", "))
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
