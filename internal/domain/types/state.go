package types

import "strings"

// RideState is a ride lifecycle state as stored in the `rides` table.
type RideState string

const (
	StateCreated   RideState = "created"
	StateDiscovery RideState = "discovery"
	StateHold      RideState = "hold"
	StateConfirmed RideState = "confirmed"
	StateActive    RideState = "active"
	StateCompleted RideState = "completed"
	StateCanceled  RideState = "canceled"
	StateExpired   RideState = "expired"
)

// transitions is the authoritative transition table. Every ride state
// mutation in the system goes through ValidateTransition against this map;
// nothing writes a state column directly.
var transitions = map[RideState][]RideState{
	StateCreated:   {StateDiscovery, StateCanceled},
	StateDiscovery: {StateHold, StateExpired, StateCanceled},
	StateHold:      {StateConfirmed, StateDiscovery, StateCanceled},
	StateConfirmed: {StateActive, StateCanceled},
	StateActive:    {StateCompleted, StateCanceled},
	StateCompleted: {},
	StateCanceled:  {},
	StateExpired:   {},
}

func (s RideState) String() string {
	return string(s)
}

// Valid reports whether s is one of the known ride states.
func (s RideState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no further valid transitions.
func (s RideState) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether s -> next is a legal edge.
func (s RideState) CanTransitionTo(next RideState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidNext returns the allowed successor states of s.
func (s RideState) ValidNext() []RideState {
	next := transitions[s]
	out := make([]RideState, len(next))
	copy(out, next)
	return out
}

// CanCancel reports whether a ride in state s may still be cancelled.
func CanCancel(s RideState) bool {
	return s.CanTransitionTo(StateCanceled)
}

// ValidateTransition checks the from -> to edge against the transition table.
// It returns *InvalidTransitionError (wrapping ErrInvalidTransition) listing
// the valid successors, so the violation is surfaced, never coerced.
func ValidateTransition(from, to RideState) error {
	if !from.Valid() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// ParseRideState normalizes (lowercases+trims) and validates a state string.
func ParseRideState(in string) (RideState, bool) {
	s := RideState(strings.ToLower(strings.TrimSpace(in)))
	return s, s.Valid()
}
