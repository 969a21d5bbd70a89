package enhance

import (
	"runtime"
	"sync/atomic"

	"github.com/LoganthP/EarVan/dsp/spectrum"
)

// Tap feeds the post-compressor signal into a spectrum analyzer and
// publishes each finished frame across the audio/control boundary.
//
// Publication uses a generation-guarded copy: the writer bumps the
// generation to odd, copies the frame into the shared slab, and bumps
// it to even. Readers copy the slab and retry when the generation was
// odd or changed underneath them. The audio side never waits; retrying
// is the reader's cost.
type Tap struct {
	analyzer *spectrum.Analyzer

	gen   atomic.Uint64
	slab  []float64
	frame []float64
}

// NewTap builds a tap around an analyzer configured by opts.
func NewTap(sampleRate float64, opts ...spectrum.Option) (*Tap, error) {
	a, err := spectrum.NewAnalyzer(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	return &Tap{
		analyzer: a,
		slab:     make([]float64, a.Bins()),
		frame:    make([]float64, a.Bins()),
	}, nil
}

// Bins returns the number of values in a snapshot.
func (t *Tap) Bins() int { return t.analyzer.Bins() }

// BinFrequency returns the center frequency in Hz of snapshot bin i.
func (t *Tap) BinFrequency(i int) float64 { return t.analyzer.BinFrequency(i) }

// Push absorbs a processed block. When the analyzer completes a frame
// it is published for Snapshot readers. Audio-plane only; wait-free and
// allocation-free.
func (t *Tap) Push(block []float64) {
	if !t.analyzer.Push(block) {
		return
	}
	t.analyzer.Frame(t.frame)
	t.publish(t.frame)
}

func (t *Tap) publish(frame []float64) {
	t.gen.Add(1) // odd: write in progress
	copy(t.slab, frame)
	t.gen.Add(1) // even: frame consistent
}

// Snapshot copies the latest consistent frame into dst, returning the
// number of values copied, min(len(dst), Bins()). Values are in [0, 1].
// Before the first frame the snapshot is all zeros.
func (t *Tap) Snapshot(dst []float64) int {
	n := len(dst)
	if n > len(t.slab) {
		n = len(t.slab)
	}
	for {
		before := t.gen.Load()
		if before%2 != 0 {
			runtime.Gosched()
			continue
		}
		copy(dst[:n], t.slab[:n])
		if t.gen.Load() == before {
			return n
		}
	}
}
