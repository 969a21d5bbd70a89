package core

import "testing"

func TestEnsureLen(t *testing.T) {
	buf := make([]float64, 8, 16)

	got := EnsureLen(buf, 12)
	if len(got) != 12 {
		t.Fatalf("len = %d, want 12", len(got))
	}
	if &got[0] != &buf[0] {
		t.Fatal("expected capacity reuse")
	}

	grown := EnsureLen(buf, 32)
	if len(grown) != 32 {
		t.Fatalf("len = %d, want 32", len(grown))
	}

	empty := EnsureLen(buf, 0)
	if len(empty) != 0 {
		t.Fatalf("len = %d, want 0", len(empty))
	}
}

func TestZero(t *testing.T) {
	buf := []float64{1, -2, 3}
	Zero(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v, want 0", i, v)
		}
	}
}
