package enhance

import (
	"context"
	"fmt"

	"github.com/LoganthP/EarVan/dsp/core"
	"github.com/LoganthP/EarVan/dsp/signal"
)

// Source delivers mono samples to the engine. ReadSamples fills dst and
// returns the number of samples written; a short read is not an error.
// Implementations are read by the audio goroutine and must not block
// longer than the device requires.
type Source interface {
	SampleRate() float64
	ReadSamples(dst []float64) (int, error)
	Close() error
}

// SourceOpener acquires a live Source. Acquisition may take unbounded
// wall-clock time (permission prompts), so it carries a context.
type SourceOpener interface {
	Open(ctx context.Context) (Source, error)
}

// Built-in test source: a looped buffer of deterministic pink noise.
const (
	testNoiseSeconds   = 2
	testNoiseAmplitude = 0.5
)

// testSource loops a fixed pink-noise buffer indefinitely. Identical
// sample rates always produce the identical sample sequence.
type testSource struct {
	sampleRate float64
	buf        []float64
	pos        int
}

func newTestSource(sampleRate float64) (*testSource, error) {
	gen := signal.NewGenerator(core.WithSampleRate(sampleRate))
	buf, err := gen.PinkNoise(testNoiseAmplitude, int(sampleRate)*testNoiseSeconds)
	if err != nil {
		return nil, fmt.Errorf("enhance: generate test noise: %w", err)
	}
	return &testSource{sampleRate: sampleRate, buf: buf}, nil
}

func (s *testSource) SampleRate() float64 { return s.sampleRate }

func (s *testSource) ReadSamples(dst []float64) (int, error) {
	for i := range dst {
		dst[i] = s.buf[s.pos]
		s.pos++
		if s.pos == len(s.buf) {
			s.pos = 0
		}
	}
	return len(dst), nil
}

func (s *testSource) Close() error { return nil }
