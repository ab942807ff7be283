package hasher

import "testing"

func TestSum_Deterministic(t *testing.T) {
	in := "same input"
	h1 := Hash(in)
	h2 := Hash(in)
	if h1 != h2 {
		t.Fatalf("hash must be deterministic, got %s vs %s", h1, h2)
	}
}

func TestSum_DifferentInputs(t *testing.T) {
	if Hash("a") == Hash("b") {
		t.Fatalf("different inputs should not produce the same hash")
	}
}

func TestSum_KnownVector(t *testing.T) {
	// SHA-256("hello") per the standard test vectors
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	got := Hash("hello")
	if got != want {
		t.Fatalf("unexpected hash: got %s want %s", got, want)
	}
}

func TestNewToken_Unique(t *testing.T) {
	t1, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	t2, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if t1 == t2 {
		t.Fatalf("tokens must be unique")
	}
	if len(t1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(t1))
	}
}

func BenchmarkSum(b *testing.B) {
	in := "some reasonably sized input"

	for b.Loop() {
		_ = Hash(in)
	}
}
