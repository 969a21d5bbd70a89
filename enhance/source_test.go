package enhance

import (
	"math"
	"testing"
)

var _ Source = (*testSource)(nil)

func TestTestSource_Deterministic(t *testing.T) {
	a, err := newTestSource(8000)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}
	b, err := newTestSource(8000)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}

	bufA := make([]float64, 1000)
	bufB := make([]float64, 1000)
	if _, err := a.ReadSamples(bufA); err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if _, err := b.ReadSamples(bufB); err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	for i := range bufA {
		if bufA[i] != bufB[i] {
			t.Fatalf("instances diverged at sample %d: %g vs %g", i, bufA[i], bufB[i])
		}
	}
}

func TestTestSource_LoopsSeamlessly(t *testing.T) {
	src, err := newTestSource(1000)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}
	bufLen := 1000 * testNoiseSeconds

	// Drain exactly one buffer length, then the loop restarts from the top.
	drain := make([]float64, bufLen)
	if n, err := src.ReadSamples(drain); n != bufLen || err != nil {
		t.Fatalf("ReadSamples = (%d, %v), want (%d, nil)", n, err, bufLen)
	}

	wrapped := make([]float64, 100)
	if _, err := src.ReadSamples(wrapped); err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	for i := range wrapped {
		if wrapped[i] != drain[i] {
			t.Fatalf("loop not seamless at sample %d: %g vs %g", i, wrapped[i], drain[i])
		}
	}
}

func TestTestSource_WrapsMidRead(t *testing.T) {
	src, err := newTestSource(1000)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}
	bufLen := 1000 * testNoiseSeconds

	big := make([]float64, bufLen+250)
	if n, err := src.ReadSamples(big); n != len(big) || err != nil {
		t.Fatalf("ReadSamples = (%d, %v), want (%d, nil)", n, err, len(big))
	}
	for i := 0; i < 250; i++ {
		if big[bufLen+i] != big[i] {
			t.Fatalf("wrapped tail differs at %d: %g vs %g", i, big[bufLen+i], big[i])
		}
	}
}

func TestTestSource_PeakAmplitude(t *testing.T) {
	src, err := newTestSource(1000)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}

	peak := 0.0
	for _, v := range src.buf {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-testNoiseAmplitude) > 1e-12 {
		t.Errorf("peak = %.15f, want %g", peak, testNoiseAmplitude)
	}
}

func TestTestSource_ReportsSampleRate(t *testing.T) {
	src, err := newTestSource(44100)
	if err != nil {
		t.Fatalf("newTestSource: %v", err)
	}
	if got := src.SampleRate(); got != 44100 {
		t.Errorf("SampleRate = %g, want 44100", got)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
