package spectrum

import (
	"math"
	"testing"
)

func TestMagnitude(t *testing.T) {
	in := []complex128{
		complex(3, 4),
		complex(0, 0),
		complex(1, 0),
		complex(0, -2),
	}
	want := []float64{5, 0, 1, 2}

	got := Magnitude(in)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Magnitude[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestMagnitudeFromParts(t *testing.T) {
	re := []float64{3, 0, 1, 0}
	im := []float64{4, 0, 0, -2}
	want := []float64{5, 0, 1, 2}

	dst := make([]float64, len(re))
	MagnitudeFromParts(dst, re, im)
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("dst[%d] = %g, want %g", i, dst[i], want[i])
		}
	}
}

func TestMagnitudeFromParts_NoAllocations(t *testing.T) {
	re := make([]float64, 512)
	im := make([]float64, 512)
	dst := make([]float64, 512)
	for i := range re {
		re[i] = float64(i)
		im[i] = float64(512 - i)
	}

	allocs := testing.AllocsPerRun(100, func() {
		MagnitudeFromParts(dst, re, im)
	})
	if allocs != 0 {
		t.Errorf("MagnitudeFromParts allocated %.1f times per run, want 0", allocs)
	}
}

func TestPower(t *testing.T) {
	in := []complex128{
		complex(3, 4),
		complex(1, 1),
		complex(0, 0),
	}
	want := []float64{25, 2, 0}

	got := Power(in)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Power[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestPowerFromParts(t *testing.T) {
	re := []float64{3, 1, 0}
	im := []float64{4, 1, 0}
	want := []float64{25, 2, 0}

	dst := make([]float64, len(re))
	PowerFromParts(dst, re, im)
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Errorf("dst[%d] = %g, want %g", i, dst[i], want[i])
		}
	}
}

func TestMagnitude_Empty(t *testing.T) {
	if got := Magnitude(nil); len(got) != 0 {
		t.Errorf("Magnitude(nil) returned %d values, want 0", len(got))
	}
}
