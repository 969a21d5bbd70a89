package enhance

import (
	"fmt"
	"math"
	"sync/atomic"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/LoganthP/EarVan/dsp/dynamics"
	"github.com/LoganthP/EarVan/dsp/filter/biquad"
	"github.com/LoganthP/EarVan/dsp/filter/design"
)

// rampTau is the parameter smoothing time constant in seconds. Ramped
// values reach within 1% of a new target after about five time
// constants (~250 ms).
const rampTau = 0.05

// Chain-fixed compressor shape. Only threshold and ratio follow the
// environment mode.
const (
	compAttackMs  = 3
	compReleaseMs = 150
	compKneeDB    = 30
)

const highpassQ = math.Sqrt2 / 2

// paramSnapEpsilon terminates a ramp: once a live value is this close
// to its target it snaps exactly, so per-block retunes stop.
const paramSnapEpsilon = 1e-6

// atomicFloat stores a float64 in a uint64 so the control plane can
// publish parameter targets without locks.
type atomicFloat struct{ bits atomic.Uint64 }

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// smoothedParam pairs a control-side target with the audio-side live
// value that chases it. Only the audio goroutine touches live.
type smoothedParam struct {
	target atomicFloat
	live   float64
}

func (p *smoothedParam) init(v float64) {
	p.target.Store(v)
	p.live = v
}

// step advances live one smoothing increment toward the target and
// reports whether it moved.
func (p *smoothedParam) step(alpha float64) bool {
	t := p.target.Load()
	if p.live == t {
		return false
	}
	next := p.live + (t-p.live)*alpha
	if math.Abs(next-t) <= paramSnapEpsilon {
		next = t
	}
	if next == p.live {
		return false
	}
	p.live = next
	return true
}

// Graph owns the fixed processing topology
//
//	input → master gain → high-pass → band bank → compressor → tap
//
// and the parameter ramps that keep every change free of zipper noise.
// SetTargets and SetMasterVolume are control-plane and lock-free;
// ProcessBlock is the audio plane and must run on a single goroutine.
//
// The live parameters power on at the bypass record (silent, flat,
// disabled high-pass, inert compressor) and ramp from there once the
// first targets arrive.
type Graph struct {
	sampleRate float64

	masterVolume smoothedParam
	gainOffset   smoothedParam
	bandGains    [NumBands]smoothedParam
	highpassHz   smoothedParam
	thresholdDB  smoothedParam
	ratio        smoothedParam

	highpass *biquad.Section
	bands    *BandBank
	comp     *dynamics.Compressor
	tap      *Tap

	meterGR atomicFloat
}

// NewGraph builds the chain for the given sample rate and attaches the
// spectrum tap after the compressor.
func NewGraph(sampleRate float64, tap *Tap) (*Graph, error) {
	bands, err := NewBandBank(sampleRate)
	if err != nil {
		return nil, err
	}
	comp, err := dynamics.NewCompressor(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("enhance: build compressor: %w", err)
	}
	if err := comp.SetAttack(compAttackMs); err != nil {
		return nil, fmt.Errorf("enhance: configure compressor: %w", err)
	}
	if err := comp.SetRelease(compReleaseMs); err != nil {
		return nil, fmt.Errorf("enhance: configure compressor: %w", err)
	}
	if err := comp.SetKnee(compKneeDB); err != nil {
		return nil, fmt.Errorf("enhance: configure compressor: %w", err)
	}

	g := &Graph{
		sampleRate: sampleRate,
		highpass:   biquad.NewSection(biquad.Passthrough()),
		bands:      bands,
		comp:       comp,
		tap:        tap,
	}

	inert := BypassParams()
	g.masterVolume.init(1)
	g.gainOffset.init(inert.GainOffset)
	for i := range g.bandGains {
		g.bandGains[i].init(inert.BandGainsDB[i])
	}
	g.highpassHz.init(inert.HighpassHz)
	g.thresholdDB.init(inert.ThresholdDB)
	g.ratio.init(inert.Ratio)

	if err := comp.SetThreshold(inert.ThresholdDB); err != nil {
		return nil, err
	}
	if err := comp.SetRatio(inert.Ratio); err != nil {
		return nil, err
	}
	return g, nil
}

// SetTargets publishes a resolved record as the new ramp targets.
func (g *Graph) SetTargets(p ResolvedParams) {
	g.gainOffset.target.Store(p.GainOffset)
	for i := range g.bandGains {
		g.bandGains[i].target.Store(p.BandGainsDB[i])
	}
	g.highpassHz.target.Store(p.HighpassHz)
	g.thresholdDB.target.Store(p.ThresholdDB)
	g.ratio.target.Store(p.Ratio)
}

// SetMasterVolume publishes a new master volume target. The caller
// validates the range.
func (g *Graph) SetMasterVolume(v float64) {
	g.masterVolume.target.Store(v)
}

// GainReductionDB reports the compressor's most recent gain reduction,
// safe to read from the control plane for metering.
func (g *Graph) GainReductionDB() float64 {
	return g.meterGR.Load()
}

// ProcessBlock advances the parameter ramps and runs one block through
// the chain in place. It performs no allocations and takes no locks.
func (g *Graph) ProcessBlock(buf []float64) {
	g.advance(len(buf))

	gain := g.masterVolume.live * g.gainOffset.live
	vecmath.ScaleBlock(buf, buf, gain)

	g.highpass.ProcessBlock(buf)
	g.bands.ProcessBlock(buf)
	g.comp.ProcessBlock(buf)
	g.meterGR.Store(g.comp.GainReductionDB())
	g.tap.Push(buf)
}

// advance moves every live parameter toward its target and retunes the
// stages whose values moved. Stage state survives every retune.
func (g *Graph) advance(blockLen int) {
	if blockLen <= 0 {
		return
	}
	alpha := 1 - math.Exp(-float64(blockLen)/(g.sampleRate*rampTau))

	g.masterVolume.step(alpha)
	g.gainOffset.step(alpha)

	// The retune calls below cannot fail: band frequencies are fixed
	// below Nyquist and resolver output stays inside the stage ranges.
	for i := range g.bandGains {
		if g.bandGains[i].step(alpha) {
			_ = g.bands.SetBandGain(i, g.bandGains[i].live)
		}
	}
	if g.highpassHz.step(alpha) {
		g.retuneHighpass(g.highpassHz.live)
	}
	if g.thresholdDB.step(alpha) {
		_ = g.comp.SetThreshold(g.thresholdDB.live)
	}
	if g.ratio.step(alpha) {
		_ = g.comp.SetRatio(g.ratio.live)
	}
}

func (g *Graph) retuneHighpass(freqHz float64) {
	if freqHz <= HighpassDisabledHz {
		g.highpass.Retune(biquad.Passthrough())
		return
	}
	c, err := design.Highpass(freqHz, highpassQ, g.sampleRate)
	if err != nil {
		return
	}
	g.highpass.Retune(c)
}
