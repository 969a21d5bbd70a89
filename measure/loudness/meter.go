// Package loudness implements ITU-R BS.1770-4 / EBU R128 loudness
// measurement for a mono signal: momentary and short-term levels over
// sliding windows plus gated integrated loudness.
package loudness

import (
	"math"

	"github.com/LoganthP/EarVan/dsp/filter/biquad"
	"github.com/LoganthP/EarVan/dsp/filter/design"
)

const (
	// K-weighting stage parameters from BS.1770.
	shelfFreqHz = 1500.0
	shelfGainDB = 4.0
	hpfFreqHz   = 38.0

	momentarySeconds = 0.4
	shortTermSeconds = 3.0

	// Gating thresholds for integrated loudness.
	absGateLUFS = -70.0
	relGateLU   = -10.0

	// Gating blocks are 400 ms at 75% overlap.
	blockStepSeconds = momentarySeconds / 4

	// Reported when a window holds no energy.
	floorLUFS = -120.0
)

// Meter measures the loudness of a mono stream. It is not safe for
// concurrent use; feed it from the goroutine that owns the samples.
type Meter struct {
	sampleRate float64

	shelf *biquad.Section
	hpf   *biquad.Section

	// Sliding windows of squared K-weighted samples.
	momWindow   []float64
	shortWindow []float64
	momIdx      int
	shortIdx    int
	momSum      float64
	shortSum    float64

	integrating bool
	stepSamples int
	sinceStep   int
	blocks      []float64 // gating block mean squares

	samplePeak float64
}

// NewMeter builds a loudness meter for the given sample rate.
func NewMeter(sampleRate float64) (*Meter, error) {
	q := 1 / math.Sqrt2
	shelfCoeffs, err := design.HighShelf(shelfFreqHz, shelfGainDB, q, sampleRate)
	if err != nil {
		return nil, err
	}
	hpfCoeffs, err := design.Highpass(hpfFreqHz, q, sampleRate)
	if err != nil {
		return nil, err
	}

	m := &Meter{
		sampleRate:  sampleRate,
		shelf:       biquad.NewSection(shelfCoeffs),
		hpf:         biquad.NewSection(hpfCoeffs),
		momWindow:   make([]float64, int(math.Round(momentarySeconds*sampleRate))),
		shortWindow: make([]float64, int(math.Round(shortTermSeconds*sampleRate))),
	}
	m.stepSamples = int(math.Round(blockStepSeconds * sampleRate))
	if m.stepSamples < 1 {
		m.stepSamples = 1
	}
	return m, nil
}

// SampleRate returns the configured sample rate in Hz.
func (m *Meter) SampleRate() float64 { return m.sampleRate }

// Reset clears filter state, windows, gating blocks and the peak.
func (m *Meter) Reset() {
	m.shelf.Reset()
	m.hpf.Reset()
	for i := range m.momWindow {
		m.momWindow[i] = 0
	}
	for i := range m.shortWindow {
		m.shortWindow[i] = 0
	}
	m.momIdx, m.shortIdx = 0, 0
	m.momSum, m.shortSum = 0, 0
	m.sinceStep = 0
	m.blocks = nil
	m.samplePeak = 0
}

// StartIntegration begins accumulating gating blocks for Integrated.
func (m *Meter) StartIntegration() { m.integrating = true }

// StopIntegration stops accumulating gating blocks.
func (m *Meter) StopIntegration() { m.integrating = false }

// ProcessSample feeds one sample through the K-weighting chain and the
// sliding windows.
func (m *Meter) ProcessSample(x float64) {
	if a := math.Abs(x); a > m.samplePeak {
		m.samplePeak = a
	}

	w := m.hpf.ProcessSample(m.shelf.ProcessSample(x))
	sq := w * w

	m.momSum += sq - m.momWindow[m.momIdx]
	m.momWindow[m.momIdx] = sq
	m.momIdx++
	if m.momIdx == len(m.momWindow) {
		m.momIdx = 0
	}
	if m.momSum < 0 {
		m.momSum = 0
	}

	m.shortSum += sq - m.shortWindow[m.shortIdx]
	m.shortWindow[m.shortIdx] = sq
	m.shortIdx++
	if m.shortIdx == len(m.shortWindow) {
		m.shortIdx = 0
	}
	if m.shortSum < 0 {
		m.shortSum = 0
	}

	if !m.integrating {
		return
	}
	m.sinceStep++
	if m.sinceStep >= m.stepSamples {
		m.sinceStep = 0
		m.blocks = append(m.blocks, m.momSum/float64(len(m.momWindow)))
	}
}

// ProcessBlock feeds a block of mono samples.
func (m *Meter) ProcessBlock(block []float64) {
	for _, x := range block {
		m.ProcessSample(x)
	}
}

// Momentary returns the loudness of the last 400 ms in LUFS.
func (m *Meter) Momentary() float64 {
	return toLUFS(m.momSum / float64(len(m.momWindow)))
}

// ShortTerm returns the loudness of the last 3 s in LUFS.
func (m *Meter) ShortTerm() float64 {
	return toLUFS(m.shortSum / float64(len(m.shortWindow)))
}

// Integrated returns the gated integrated loudness in LUFS over the
// span covered by StartIntegration. With no surviving blocks it returns
// negative infinity.
func (m *Meter) Integrated() float64 {
	if len(m.blocks) == 0 {
		return math.Inf(-1)
	}

	// Absolute gate at -70 LUFS.
	var (
		absGated []float64
		absSum   float64
	)
	for _, b := range m.blocks {
		if toLUFS(b) > absGateLUFS {
			absGated = append(absGated, b)
			absSum += b
		}
	}
	if len(absGated) == 0 {
		return math.Inf(-1)
	}

	// Relative gate 10 LU under the absolute-gated mean.
	relGate := toLUFS(absSum/float64(len(absGated))) + relGateLU

	var (
		relSum   float64
		relCount int
	)
	for _, b := range absGated {
		if toLUFS(b) > relGate {
			relSum += b
			relCount++
		}
	}
	if relCount == 0 {
		return math.Inf(-1)
	}
	return toLUFS(relSum / float64(relCount))
}

// SamplePeak returns the highest absolute input sample since Reset.
// The peak is taken before K-weighting.
func (m *Meter) SamplePeak() float64 { return m.samplePeak }

func toLUFS(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return floorLUFS
	}
	return -0.691 + 10*math.Log10(meanSquare)
}
