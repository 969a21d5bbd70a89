// Package dither quantizes floating-point audio to signed integer PCM
// with triangular (TPDF) dither, for writing fixed-point output files.
// An optional error-feedback filter spectrally shapes the residual
// quantization noise.
package dither

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	minBitDepth = 1
	maxBitDepth = 32

	// Triangular noise of one LSB peak-to-peak per uniform draw fully
	// decorrelates the quantization error from the signal.
	defaultAmplitude = 1.0
)

// Option configures a Quantizer.
type Option func(*settings)

type settings struct {
	amplitude float64
	coeffs    []float64
	seed      uint64
	seeded    bool
}

// WithAmplitude scales the triangular dither noise, in LSBs.
// Zero disables dithering; quantization then truncates.
func WithAmplitude(a float64) Option {
	return func(s *settings) {
		s.amplitude = a
	}
}

// WithShaping enables error-feedback noise shaping. The taps weight
// past quantization errors, most recent first, subtracted from the
// input before quantizing.
func WithShaping(coeffs []float64) Option {
	return func(s *settings) {
		s.coeffs = coeffs
	}
}

// WithSeed fixes the noise generator seed for reproducible output.
func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.seed = seed
		s.seeded = true
	}
}

// Quantizer converts samples in [-1, +1] to signed integers of a fixed
// bit depth. It is streaming: the error-feedback history survives
// across calls until Reset.
type Quantizer struct {
	bitDepth  int
	amplitude float64
	bitMul    float64
	bitDiv    float64
	limitLo   int
	limitHi   int

	rng    *rand.Rand
	coeffs []float64
	errs   []float64
	pos    int
}

// New builds a quantizer targeting the given bit depth (1 to 32).
func New(bitDepth int, opts ...Option) (*Quantizer, error) {
	if bitDepth < minBitDepth || bitDepth > maxBitDepth {
		return nil, fmt.Errorf("dither: bit depth must be in [%d, %d]: %d", minBitDepth, maxBitDepth, bitDepth)
	}

	s := settings{amplitude: defaultAmplitude}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	if s.amplitude < 0 || math.IsNaN(s.amplitude) || math.IsInf(s.amplitude, 0) {
		return nil, fmt.Errorf("dither: amplitude must be finite and >= 0: %v", s.amplitude)
	}

	for _, c := range s.coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("dither: shaping tap must be finite: %v", c)
		}
	}

	// Half-LSB offset mid-tread scaling: +1.0 lands exactly on the top
	// code after flooring, -1.0 exactly on the bottom one.
	bitMul := math.Exp2(float64(bitDepth-1)) - 0.5

	q := &Quantizer{
		bitDepth:  bitDepth,
		amplitude: s.amplitude,
		bitMul:    bitMul,
		bitDiv:    1 / bitMul,
		limitLo:   -int(math.Round(bitMul + 0.5)),
		limitHi:   int(math.Round(bitMul - 0.5)),
		coeffs:    append([]float64(nil), s.coeffs...),
	}
	if len(q.coeffs) > 0 {
		q.errs = make([]float64, len(q.coeffs))
	}

	seqLo, seqHi := rand.Uint64(), rand.Uint64()
	if s.seeded {
		seqLo, seqHi = s.seed, s.seed
	}
	q.rng = rand.New(rand.NewPCG(seqLo, seqHi))

	return q, nil
}

// BitDepth returns the target bit depth.
func (q *Quantizer) BitDepth() int { return q.bitDepth }

// ProcessInteger quantizes one sample, expected in [-1, +1], to the
// signed integer range of the configured bit depth. Out-of-range input
// clamps to the extreme codes.
func (q *Quantizer) ProcessInteger(x float64) int {
	shaped := q.bitMul * x

	n := len(q.coeffs)
	if n > 0 {
		for i, c := range q.coeffs {
			shaped -= c * q.errs[(n+q.pos-i)%n]
		}
	}

	v := shaped
	if q.amplitude > 0 {
		v += q.amplitude * (q.rng.Float64() - q.rng.Float64())
	}

	out := int(math.Floor(v))
	if out < q.limitLo {
		out = q.limitLo
	} else if out > q.limitHi {
		out = q.limitHi
	}

	if n > 0 {
		q.pos = (q.pos + 1) % n
		q.errs[q.pos] = float64(out) - shaped
	}

	return out
}

// ProcessSample quantizes one sample and returns it renormalized to
// [-1, +1]. The half-LSB offset cancels the floor bias, so dithered
// output has exactly the input's mean.
func (q *Quantizer) ProcessSample(x float64) float64 {
	return (float64(q.ProcessInteger(x)) + 0.5) * q.bitDiv
}

// ProcessInPlace quantizes every sample in buf.
func (q *Quantizer) ProcessInPlace(buf []float64) {
	for i, v := range buf {
		buf[i] = q.ProcessSample(v)
	}
}

// Reset clears the error-feedback history. The noise generator keeps
// its stream.
func (q *Quantizer) Reset() {
	for i := range q.errs {
		q.errs[i] = 0
	}
	q.pos = 0
}
