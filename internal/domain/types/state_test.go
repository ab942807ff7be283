package types

import (
	"errors"
	"strings"
	"testing"
)

func allStates() []RideState {
	return []RideState{
		StateCreated, StateDiscovery, StateHold, StateConfirmed,
		StateActive, StateCompleted, StateCanceled, StateExpired,
	}
}

func TestTransitionTable(t *testing.T) {
	allowed := map[RideState]map[RideState]bool{
		StateCreated:   {StateDiscovery: true, StateCanceled: true},
		StateDiscovery: {StateHold: true, StateExpired: true, StateCanceled: true},
		StateHold:      {StateConfirmed: true, StateDiscovery: true, StateCanceled: true},
		StateConfirmed: {StateActive: true, StateCanceled: true},
		StateActive:    {StateCompleted: true, StateCanceled: true},
		StateCompleted: {},
		StateCanceled:  {},
		StateExpired:   {},
	}

	for _, from := range allStates() {
		for _, to := range allStates() {
			err := ValidateTransition(from, to)
			if allowed[from][to] && err != nil {
				t.Errorf("ValidateTransition(%s, %s) = %v, want nil", from, to, err)
			}
			if !allowed[from][to] && err == nil {
				t.Errorf("ValidateTransition(%s, %s) = nil, want error", from, to)
			}
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := map[RideState]bool{
		StateCompleted: true,
		StateCanceled:  true,
		StateExpired:   true,
	}

	for _, s := range allStates() {
		if got := s.Terminal(); got != terminal[s] {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, terminal[s])
		}
	}
}

func TestCanCancel(t *testing.T) {
	cancellable := map[RideState]bool{
		StateCreated:   true,
		StateDiscovery: true,
		StateHold:      true,
		StateConfirmed: true,
		StateActive:    true,
	}

	for _, s := range allStates() {
		if got := CanCancel(s); got != cancellable[s] {
			t.Errorf("CanCancel(%s) = %v, want %v", s, got, cancellable[s])
		}
	}
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(StateCompleted, StateDiscovery)
	if err == nil {
		t.Fatal("expected error for completed -> discovery")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error does not wrap ErrInvalidTransition: %v", err)
	}

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("error is not *InvalidTransitionError: %T", err)
	}
	if transErr.From != StateCompleted || transErr.To != StateDiscovery {
		t.Errorf("edge = %s -> %s, want completed -> discovery", transErr.From, transErr.To)
	}
	if !strings.Contains(err.Error(), "terminal") {
		t.Errorf("terminal-state message should say so, got %q", err.Error())
	}
}

func TestInvalidTransitionErrorListsSuccessors(t *testing.T) {
	err := ValidateTransition(StateHold, StateActive)
	if err == nil {
		t.Fatal("expected error for hold -> active")
	}

	msg := err.Error()
	for _, want := range []string{"confirmed", "discovery", "canceled"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing valid successor %q", msg, want)
		}
	}
}

func TestValidateTransitionUnknownState(t *testing.T) {
	if err := ValidateTransition(RideState("bogus"), StateDiscovery); err == nil {
		t.Error("expected error for unknown from-state")
	}
}

func TestParseRideState(t *testing.T) {
	tests := []struct {
		in    string
		want  RideState
		valid bool
	}{
		{"discovery", StateDiscovery, true},
		{" HOLD ", StateHold, true},
		{"Created", StateCreated, true},
		{"unknown", RideState("unknown"), false},
		{"", RideState(""), false},
	}

	for _, tt := range tests {
		got, ok := ParseRideState(tt.in)
		if ok != tt.valid {
			t.Errorf("ParseRideState(%q) valid = %v, want %v", tt.in, ok, tt.valid)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseRideState(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
