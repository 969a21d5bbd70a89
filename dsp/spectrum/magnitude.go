package spectrum

import (
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds reusable real/imaginary buffers for the conversion
// functions so repeated calls do not allocate.
type scratchBuf struct {
	re []float64
	im []float64
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratchBuf{}
	},
}

func getScratch(n int) *scratchBuf {
	s := scratchPool.Get().(*scratchBuf)
	if cap(s.re) < n {
		s.re = make([]float64, n)
		s.im = make([]float64, n)
	}
	s.re = s.re[:n]
	s.im = s.im[:n]
	return s
}

func putScratch(s *scratchBuf) {
	scratchPool.Put(s)
}

// Magnitude returns the magnitude of each complex bin.
func Magnitude(in []complex128) []float64 {
	out := make([]float64, len(in))
	s := getScratch(len(in))
	defer putScratch(s)

	for i, c := range in {
		s.re[i] = real(c)
		s.im[i] = imag(c)
	}
	vecmath.Magnitude(out, s.re, s.im)
	return out
}

// MagnitudeFromParts writes sqrt(re^2+im^2) per bin into dst. All three
// slices must have equal length. It performs no allocations.
func MagnitudeFromParts(dst, re, im []float64) {
	vecmath.Magnitude(dst, re, im)
}

// Power returns the squared magnitude of each complex bin.
func Power(in []complex128) []float64 {
	out := make([]float64, len(in))
	s := getScratch(len(in))
	defer putScratch(s)

	for i, c := range in {
		s.re[i] = real(c)
		s.im[i] = imag(c)
	}
	vecmath.Power(out, s.re, s.im)
	return out
}

// PowerFromParts writes re^2+im^2 per bin into dst. All three slices must
// have equal length. It performs no allocations.
func PowerFromParts(dst, re, im []float64) {
	vecmath.Power(dst, re, im)
}
