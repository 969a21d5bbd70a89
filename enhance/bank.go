package enhance

import (
	"fmt"

	"github.com/LoganthP/EarVan/dsp/filter/biquad"
	"github.com/LoganthP/EarVan/dsp/filter/design"
)

// bandQ is the fixed width of every EQ band. It is a musical width, not
// a tunable.
const bandQ = 1.4

// BandBank is the five-band peaking equalizer: one biquad section per
// canonical band, processed in series in ascending frequency order.
// The sections are created once and retuned in place; their delay state
// survives every gain change.
type BandBank struct {
	chain      *biquad.Chain
	sampleRate float64
	gainsDB    [NumBands]float64
}

// NewBandBank creates a bank with all bands at 0 dB. The sample rate
// must place the highest canonical band below Nyquist.
func NewBandBank(sampleRate float64) (*BandBank, error) {
	coeffs := make([]biquad.Coefficients, NumBands)
	for i, band := range CanonicalBands {
		c, err := design.Peak(float64(band), 0, bandQ, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("enhance: design %d Hz band: %w", band, err)
		}
		coeffs[i] = c
	}
	return &BandBank{
		chain:      biquad.NewChain(coeffs),
		sampleRate: sampleRate,
	}, nil
}

// SetBandGain retunes band i (ascending canonical order) to gainDB,
// preserving the section's delay state.
func (b *BandBank) SetBandGain(i int, gainDB float64) error {
	if i < 0 || i >= NumBands {
		return fmt.Errorf("enhance: band index %d outside [0, %d)", i, NumBands)
	}
	c, err := design.Peak(float64(CanonicalBands[i]), gainDB, bandQ, b.sampleRate)
	if err != nil {
		return err
	}
	b.chain.Section(i).Retune(c)
	b.gainsDB[i] = gainDB
	return nil
}

// Gains returns the currently applied gains in ascending band order.
func (b *BandBank) Gains() [NumBands]float64 { return b.gainsDB }

// ProcessBlock runs buf through all five bands in series, in place.
func (b *BandBank) ProcessBlock(buf []float64) {
	b.chain.ProcessBlock(buf)
}

// ProcessSample runs one sample through all five bands in series.
func (b *BandBank) ProcessSample(x float64) float64 {
	return b.chain.ProcessSample(x)
}

// MagnitudeDB returns the bank's combined magnitude response at freqHz.
func (b *BandBank) MagnitudeDB(freqHz float64) float64 {
	return b.chain.MagnitudeDB(freqHz, b.sampleRate)
}

// State returns the delay state of every section, for continuity checks.
func (b *BandBank) State() [][2]float64 { return b.chain.State() }

// Reset clears all section delay state; applied gains are kept.
func (b *BandBank) Reset() { b.chain.Reset() }
