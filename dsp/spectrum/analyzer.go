package spectrum

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/LoganthP/EarVan/dsp/core"
	"github.com/LoganthP/EarVan/dsp/window"
)

const (
	defaultFFTSize   = 1024
	defaultSmoothing = 0.8
	maxSmoothing     = 0.95
	defaultMinDB     = -100.0
	defaultMaxDB     = -30.0
)

type analyzerConfig struct {
	fftSize    int
	smoothing  float64
	windowType window.Type
	minDB      float64
	maxDB      float64
}

// Option configures an Analyzer.
type Option func(*analyzerConfig)

// WithFFTSize sets the transform length. Valid sizes are 256, 512, 1024,
// 2048, 4096 and 8192; anything else falls back to the default of 1024.
func WithFFTSize(n int) Option {
	return func(c *analyzerConfig) {
		c.fftSize = sanitizeFFTSize(n)
	}
}

// WithSmoothing sets the exponential smoothing factor applied to linear
// magnitudes between frames. Values are clamped to [0, 0.95]; 0 disables
// smoothing entirely.
func WithSmoothing(s float64) Option {
	return func(c *analyzerConfig) {
		c.smoothing = core.Clamp(s, 0, maxSmoothing)
	}
}

// WithWindow selects the analysis window type. The window is always
// generated in periodic form.
func WithWindow(t window.Type) Option {
	return func(c *analyzerConfig) {
		c.windowType = t
	}
}

// WithRangeDB sets the decibel window mapped onto [0, 1] by Frame.
// If minDB is not strictly below maxDB the defaults (-100, -30) apply.
func WithRangeDB(minDB, maxDB float64) Option {
	return func(c *analyzerConfig) {
		if minDB < maxDB {
			c.minDB = minDB
			c.maxDB = maxDB
		} else {
			c.minDB = defaultMinDB
			c.maxDB = defaultMaxDB
		}
	}
}

func sanitizeFFTSize(n int) int {
	switch n {
	case 256, 512, 1024, 2048, 4096, 8192:
		return n
	default:
		return defaultFFTSize
	}
}

// Analyzer computes a continuously smoothed magnitude spectrum from a
// stream of samples. Blocks of any length are absorbed into an internal
// ring buffer; every fftSize/2 samples a new windowed frame is
// transformed and blended into the running spectrum.
//
// Analyzer is not safe for concurrent use.
type Analyzer struct {
	sampleRate float64
	fftSize    int
	hop        int
	bins       int
	smoothing  float64
	minDB      float64
	maxDB      float64

	win     []float64
	winNorm float64

	plan *algofft.Plan[complex128]
	in   []complex128
	out  []complex128
	re   []float64
	im   []float64
	mags []float64

	ring     []float64
	writePos int
	filled   int
	toHop    int

	smoothed []float64
	primed   bool
}

// NewAnalyzer creates an analyzer for the given sample rate. The default
// configuration uses a periodic Blackman window, a 1024-point transform
// with 50% overlap, smoothing factor 0.8 and a display range of
// [-100, -30] dB.
func NewAnalyzer(sampleRate float64, opts ...Option) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("spectrum: sample rate must be positive, got %g", sampleRate)
	}

	cfg := analyzerConfig{
		fftSize:    defaultFFTSize,
		smoothing:  defaultSmoothing,
		windowType: window.TypeBlackman,
		minDB:      defaultMinDB,
		maxDB:      defaultMaxDB,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	win := window.Generate(cfg.windowType, cfg.fftSize, window.WithPeriodic())
	gain, err := window.CoherentGain(win)
	if err != nil {
		return nil, fmt.Errorf("spectrum: window gain: %w", err)
	}

	plan, err := algofft.NewPlan64(cfg.fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: create FFT plan: %w", err)
	}

	bins := cfg.fftSize / 2
	return &Analyzer{
		sampleRate: sampleRate,
		fftSize:    cfg.fftSize,
		hop:        cfg.fftSize / 2,
		bins:       bins,
		smoothing:  cfg.smoothing,
		minDB:      cfg.minDB,
		maxDB:      cfg.maxDB,
		win:        win,
		winNorm:    float64(cfg.fftSize) * gain,
		plan:       plan,
		in:         make([]complex128, cfg.fftSize),
		out:        make([]complex128, cfg.fftSize),
		re:         make([]float64, bins),
		im:         make([]float64, bins),
		mags:       make([]float64, bins),
		ring:       make([]float64, cfg.fftSize),
		toHop:      cfg.fftSize / 2,
		smoothed:   make([]float64, bins),
	}, nil
}

// Push absorbs a block of samples and reports whether at least one new
// spectrum frame was produced. It never allocates.
func (a *Analyzer) Push(block []float64) bool {
	produced := false
	for _, s := range block {
		a.ring[a.writePos] = s
		a.writePos++
		if a.writePos == a.fftSize {
			a.writePos = 0
		}
		if a.filled < a.fftSize {
			a.filled++
		}
		a.toHop--
		if a.toHop <= 0 && a.filled == a.fftSize {
			a.computeFrame()
			a.toHop = a.hop
			produced = true
		}
	}
	return produced
}

func (a *Analyzer) computeFrame() {
	// Unroll the ring in time order, oldest sample first, applying the
	// window on the way out.
	pos := a.writePos
	for i := 0; i < a.fftSize; i++ {
		a.in[i] = complex(a.ring[pos]*a.win[i], 0)
		pos++
		if pos == a.fftSize {
			pos = 0
		}
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return
	}

	for k := 0; k < a.bins; k++ {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}
	MagnitudeFromParts(a.mags, a.re, a.im)

	for k := 0; k < a.bins; k++ {
		m := a.mags[k] / a.winNorm
		if k > 0 {
			m *= 2
		}
		if a.primed {
			a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*m
		} else {
			a.smoothed[k] = m
		}
	}
	a.primed = true
}

// Frame writes the current spectrum into dst, one value per bin in
// [0, 1], where 0 corresponds to minDB and 1 to maxDB. It copies
// min(len(dst), Bins()) values and returns the count. Before the first
// frame is available the output is all zeros.
func (a *Analyzer) Frame(dst []float64) int {
	n := len(dst)
	if n > a.bins {
		n = a.bins
	}
	if !a.primed {
		for i := 0; i < n; i++ {
			dst[i] = 0
		}
		return n
	}
	scale := 1 / (a.maxDB - a.minDB)
	for i := 0; i < n; i++ {
		db := core.LinearToDB(a.smoothed[i])
		dst[i] = core.Clamp((db-a.minDB)*scale, 0, 1)
	}
	return n
}

// Bins returns the number of spectrum bins, fftSize/2.
func (a *Analyzer) Bins() int { return a.bins }

// FFTSize returns the transform length.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// BinFrequency returns the center frequency in Hz of bin i.
func (a *Analyzer) BinFrequency(i int) float64 {
	return float64(i) * a.sampleRate / float64(a.fftSize)
}

// Reset clears all buffered samples and the smoothed spectrum.
func (a *Analyzer) Reset() {
	for i := range a.ring {
		a.ring[i] = 0
	}
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
	a.writePos = 0
	a.filled = 0
	a.toHop = a.hop
	a.primed = false
}
