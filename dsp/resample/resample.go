// Package resample converts audio between sample rates with a polyphase
// Kaiser-windowed sinc FIR, so file input at arbitrary rates can feed
// the fixed-rate processing chain and be written back out.
package resample

import (
	"errors"
	"math"
)

// ErrInvalidRate indicates a non-positive or non-finite sample rate.
var ErrInvalidRate = errors.New("resample: invalid sample rate")

const (
	defaultTapsPerPhase = 32
	cutoffScale         = 0.92
	kaiserBeta          = 7.5

	// Cap for the continued-fraction ratio approximation.
	maxRatioDenominator = 4096
)

// Option configures a Converter.
type Option func(*settings)

type settings struct {
	tapsPerPhase int
}

// WithTapsPerPhase overrides the FIR length per polyphase branch.
// More taps raise stopband attenuation at higher CPU cost.
func WithTapsPerPhase(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.tapsPerPhase = n
		}
	}
}

// Converter performs rational sample-rate conversion. It is streaming:
// Process may be called repeatedly with consecutive blocks, and Flush
// drains the filter tail at end of stream.
type Converter struct {
	up   int
	down int

	phases   [][]float64
	phaseLen int // longest polyphase branch

	phase   int
	nextIn  int // index of the next input sample to consume
	totalIn int
	history []float64
}

// New builds a converter from inRate to outRate. The ratio is
// approximated by a rational number with a bounded denominator, exact
// for common rate pairs.
func New(inRate, outRate float64, opts ...Option) (*Converter, error) {
	if inRate <= 0 || math.IsNaN(inRate) || math.IsInf(inRate, 0) {
		return nil, ErrInvalidRate
	}
	if outRate <= 0 || math.IsNaN(outRate) || math.IsInf(outRate, 0) {
		return nil, ErrInvalidRate
	}

	s := settings{tapsPerPhase: defaultTapsPerPhase}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	up, down := approximateRatio(outRate/inRate, maxRatioDenominator)
	phases, phaseLen := designPolyphase(up, down, s.tapsPerPhase)

	return &Converter{
		up:       up,
		down:     down,
		phases:   phases,
		phaseLen: phaseLen,
		history:  make([]float64, 0, phaseLen-1),
	}, nil
}

// Ratio returns the reduced up/down conversion factors.
func (c *Converter) Ratio() (up, down int) { return c.up, c.down }

// Unity reports whether the converter leaves the rate unchanged.
// Callers usually skip conversion entirely in that case.
func (c *Converter) Unity() bool { return c.up == 1 && c.down == 1 }

// Reset clears all streaming state.
func (c *Converter) Reset() {
	c.phase = 0
	c.nextIn = 0
	c.totalIn = 0
	c.history = c.history[:0]
}

// Process converts one block and returns the produced output samples.
// State carries over between calls, so chunked input yields the same
// stream as one large call.
func (c *Converter) Process(input []float64) []float64 {
	if len(input) == 0 {
		return nil
	}

	out := make([]float64, 0, c.OutLen(len(input)))

	work := make([]float64, len(c.history)+len(input))
	copy(work, c.history)
	copy(work[len(c.history):], input)

	base := c.totalIn - len(c.history)
	last := c.totalIn + len(input) - 1

	for c.nextIn <= last {
		taps := c.phases[c.phase]

		var y float64
		for k, h := range taps {
			idx := c.nextIn - k
			if idx < base || idx > last {
				continue
			}
			y += h * work[idx-base]
		}
		out = append(out, y)

		c.phase += c.down
		c.nextIn += c.phase / c.up
		c.phase %= c.up
	}

	c.totalIn += len(input)

	keep := min(max(0, c.phaseLen-1), len(work))
	c.history = append(c.history[:0], work[len(work)-keep:]...)

	return out
}

// Flush pushes silence through the filter to emit the samples still
// buffered in its tail. Call once at end of stream; Reset before
// converting another stream.
func (c *Converter) Flush() []float64 {
	if c.totalIn == 0 || c.phaseLen <= 1 {
		return nil
	}
	return c.Process(make([]float64, c.phaseLen-1))
}

// OutLen predicts how many samples the next Process call will produce
// for inputLen input samples.
func (c *Converter) OutLen(inputLen int) int {
	if inputLen <= 0 {
		return 0
	}

	last := c.totalIn + inputLen - 1
	i := c.nextIn
	phase := c.phase

	count := 0
	for i <= last {
		count++
		phase += c.down
		i += phase / c.up
		phase %= c.up
	}
	return count
}
