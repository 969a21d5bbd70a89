package loudness

import (
	"math"
	"testing"

	"github.com/LoganthP/EarVan/internal/testutil"
)

// A full-scale 1 kHz sine has mean square 0.5 (-3.01 dB). K-weighting
// adds about +0.67 dB at 1 kHz and the -0.691 offset takes most of it
// back out, landing at roughly -3.03 LUFS.
const sineLUFS = -3.031

func TestMeter_SineAtKnownLoudness(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.StartIntegration()
	m.ProcessBlock(testutil.Sine(1000, 48000, 1, 48000*4))

	const tol = 0.2
	if got := m.Momentary(); math.Abs(got-sineLUFS) > tol {
		t.Errorf("Momentary = %v LUFS, want %v", got, sineLUFS)
	}
	if got := m.ShortTerm(); math.Abs(got-sineLUFS) > tol {
		t.Errorf("ShortTerm = %v LUFS, want %v", got, sineLUFS)
	}
	if got := m.Integrated(); math.Abs(got-sineLUFS) > tol {
		t.Errorf("Integrated = %v LUFS, want %v", got, sineLUFS)
	}
}

func TestMeter_LevelTracksAmplitude(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.StartIntegration()
	// 20 dB below full scale.
	m.ProcessBlock(testutil.Sine(1000, 48000, 0.1, 48000*4))

	want := sineLUFS - 20
	if got := m.Integrated(); math.Abs(got-want) > 0.2 {
		t.Errorf("Integrated = %v LUFS, want %v", got, want)
	}
}

func TestMeter_Silence(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.StartIntegration()
	m.ProcessBlock(make([]float64, 48000))

	if got := m.Momentary(); got > -100 {
		t.Errorf("Momentary = %v LUFS for silence, want at the floor", got)
	}
	if got := m.Integrated(); !math.IsInf(got, -1) {
		t.Errorf("Integrated = %v for silence, want -Inf", got)
	}
}

func TestMeter_AbsoluteGateIgnoresQuietSpan(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.StartIntegration()

	m.ProcessBlock(testutil.Sine(1000, 48000, 1, 48000*10))
	loudOnly := m.Integrated()

	// -80 dBFS sits far below the -70 LUFS absolute gate.
	m.ProcessBlock(testutil.Sine(1000, 48000, 0.0001, 48000*10))
	withQuiet := m.Integrated()

	if math.Abs(loudOnly-withQuiet) > 0.1 {
		t.Errorf("gated loudness moved from %v to %v across a quiet span", loudOnly, withQuiet)
	}
}

func TestMeter_StopIntegrationFreezesBlocks(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.StartIntegration()
	m.ProcessBlock(testutil.Sine(1000, 48000, 1, 48000*2))
	m.StopIntegration()
	before := m.Integrated()

	// Audio at a very different level after stopping must not move the
	// integrated value.
	m.ProcessBlock(testutil.Sine(1000, 48000, 0.01, 48000*2))
	if got := m.Integrated(); got != before {
		t.Errorf("Integrated moved after StopIntegration: %v -> %v", before, got)
	}
}

func TestMeter_SamplePeak(t *testing.T) {
	m, err := NewMeter(48000)
	if err != nil {
		t.Fatalf("NewMeter: %v", err)
	}
	m.ProcessBlock([]float64{0.3, -0.9, 0.7})
	if got := m.SamplePeak(); got != 0.9 {
		t.Errorf("SamplePeak = %v, want 0.9", got)
	}
	m.Reset()
	if got := m.SamplePeak(); got != 0 {
		t.Errorf("SamplePeak after Reset = %v, want 0", got)
	}
}

func TestMeter_RejectsUnusableSampleRates(t *testing.T) {
	for _, sr := range []float64{0, -48000, 2000} {
		if _, err := NewMeter(sr); err == nil {
			t.Errorf("NewMeter(%g) accepted a rate that cannot host the K-weighting filters", sr)
		}
	}
}

func BenchmarkMeter_ProcessBlock(b *testing.B) {
	m, err := NewMeter(48000)
	if err != nil {
		b.Fatalf("NewMeter: %v", err)
	}
	block := testutil.Sine(1000, 48000, 0.5, 1024)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.ProcessBlock(block)
	}
}
