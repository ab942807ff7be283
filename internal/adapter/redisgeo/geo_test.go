package redisgeo

import (
	"testing"

	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

func TestParseMembers(t *testing.T) {
	a := uuid.MustNew()
	b := uuid.MustNew()

	// GEOSEARCH returns raw member names; foreign entries are skipped.
	got := parseMembers([]string{a.String(), "not-a-uuid", b.String()})

	if len(got) != 2 {
		t.Fatalf("got %d members, want 2", len(got))
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("members = %v, want [%s %s]", got, a, b)
	}
}

func TestParseMembersEmpty(t *testing.T) {
	if got := parseMembers(nil); len(got) != 0 {
		t.Fatalf("got %d members from empty search", len(got))
	}
}
