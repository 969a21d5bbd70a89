// Package levels computes time-domain level statistics for rendered
// audio: peak, RMS, crest factor, DC offset, and how many samples sit
// beyond full scale. The Accumulator form streams block by block and
// produces results bit-identical to the one-shot Measure.
package levels

import (
	"math"

	"github.com/LoganthP/EarVan/dsp/core"
)

// Summary holds the level statistics of a signal.
type Summary struct {
	Length int

	Peak    float64 // max absolute sample
	PeakDB  float64
	RMS     float64
	RMSDB   float64
	Crest   float64 // peak / RMS, 0 when RMS is 0
	CrestDB float64

	DC  float64 // mean
	Min float64
	Max float64

	ZeroCrossings int
	Clipped       int // samples with |x| > 1.0
}

func emptySummary() Summary {
	return Summary{
		PeakDB:  math.Inf(-1),
		RMSDB:   math.Inf(-1),
		CrestDB: math.Inf(-1),
	}
}

// Accumulator gathers level statistics incrementally across blocks.
// The zero value is ready to use.
type Accumulator struct {
	n     int
	sumSq float64

	// Kahan-compensated running sum for the mean.
	sum  float64
	comp float64

	maxVal  float64
	minVal  float64
	hasData bool

	zeroCrossings int
	clipped       int
	lastSample    float64
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Update folds a block of samples into the running statistics.
func (a *Accumulator) Update(samples []float64) {
	for _, x := range samples {
		a.n++

		a.sumSq += x * x

		y := x - a.comp
		t := a.sum + y
		a.comp = (t - a.sum) - y
		a.sum = t

		if !a.hasData {
			a.maxVal = x
			a.minVal = x
			a.hasData = true
		} else {
			if x > a.maxVal {
				a.maxVal = x
			}
			if x < a.minVal {
				a.minVal = x
			}
		}

		if a.n > 1 && a.lastSample*x < 0 {
			a.zeroCrossings++
		}
		a.lastSample = x

		if math.Abs(x) > 1.0 {
			a.clipped++
		}
	}
}

// Result computes the summary of everything accumulated so far.
func (a *Accumulator) Result() Summary {
	if a.n == 0 {
		return emptySummary()
	}

	nf := float64(a.n)
	rms := math.Sqrt(a.sumSq / nf)
	peak := math.Max(math.Abs(a.maxVal), math.Abs(a.minVal))

	var crest, crestDB float64
	if rms == 0 {
		crestDB = math.Inf(-1)
	} else {
		crest = peak / rms
		crestDB = core.LinearToDB(crest)
	}

	return Summary{
		Length:        a.n,
		Peak:          peak,
		PeakDB:        core.LinearToDB(peak),
		RMS:           rms,
		RMSDB:         core.LinearToDB(rms),
		Crest:         crest,
		CrestDB:       crestDB,
		DC:            a.sum / nf,
		Min:           a.minVal,
		Max:           a.maxVal,
		ZeroCrossings: a.zeroCrossings,
		Clipped:       a.clipped,
	}
}

// Reset clears the accumulator for reuse.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Measure computes the summary of a whole signal in one call.
func Measure(signal []float64) Summary {
	var a Accumulator
	a.Update(signal)
	return a.Result()
}
