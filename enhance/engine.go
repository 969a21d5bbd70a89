package enhance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/LoganthP/EarVan/dsp/core"
	"github.com/LoganthP/EarVan/dsp/filter/biquad"
	"github.com/LoganthP/EarVan/dsp/filter/design"
	"github.com/LoganthP/EarVan/dsp/spectrum"
)

// State is the engine lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateSuspended
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	defaultSampleRate = 48000
	defaultBlockSize  = 1024
)

// Master volume range accepted by SetMasterVolume.
const (
	masterVolumeMin = 0.0
	masterVolumeMax = 2.0
)

type config struct {
	sampleRate   float64
	blockSize    int
	opener       SourceOpener
	analyzerOpts []spectrum.Option
}

// Option configures an Engine at construction.
type Option func(*config)

// WithSampleRate sets the engine sample rate in Hz. Non-positive values
// are ignored; rates whose Nyquist sits at or below the 8 kHz canonical
// band are rejected by New.
func WithSampleRate(sampleRate float64) Option {
	return func(c *config) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the advisory processing block size in samples.
// Non-positive values are ignored.
func WithBlockSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// WithLiveSource attaches the opener Start uses to acquire the live
// input. Without one the engine runs on its built-in test source.
func WithLiveSource(o SourceOpener) Option {
	return func(c *config) { c.opener = o }
}

// WithAnalyzer forwards options to the spectrum analyzer tap.
func WithAnalyzer(opts ...spectrum.Option) Option {
	return func(c *config) { c.analyzerOpts = append(c.analyzerOpts, opts...) }
}

// sourceSlot wraps the active source so Process can pick it up with a
// single atomic load.
type sourceSlot struct{ src Source }

// Engine is the assistive listening engine. See the package
// documentation for the processing topology and concurrency contract.
type Engine struct {
	sampleRate float64
	blockSize  int

	graph *Graph
	tap   *Tap

	// Read by the audio plane without locks.
	stateAtomic atomic.Int32
	head        atomic.Pointer[sourceSlot]

	// Control plane, serialized by mu. The audio plane never takes mu.
	mu         sync.Mutex
	state      State
	starting   bool
	profile    *HearingProfile
	hasProfile bool
	mode       EnvironmentMode
	bypass     bool
	masterVol  float64
	resolved   ResolvedParams

	opener     SourceOpener
	liveSource Source
	testSource *testSource
	useTest    bool
}

// New constructs an engine in the Uninitialized state. No audio flows
// and no devices are touched until Start.
func New(opts ...Option) (*Engine, error) {
	cfg := config{sampleRate: defaultSampleRate, blockSize: defaultBlockSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	tap, err := NewTap(cfg.sampleRate, cfg.analyzerOpts...)
	if err != nil {
		return nil, err
	}
	graph, err := NewGraph(cfg.sampleRate, tap)
	if err != nil {
		return nil, err
	}

	return &Engine{
		sampleRate: cfg.sampleRate,
		blockSize:  cfg.blockSize,
		graph:      graph,
		tap:        tap,
		opener:     cfg.opener,
		mode:       ModeQuiet,
		masterVol:  1,
		resolved:   BypassParams(),
	}, nil
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the advisory processing block size in samples.
func (e *Engine) BlockSize() int { return e.blockSize }

// State returns the current lifecycle phase.
func (e *Engine) State() State { return State(e.stateAtomic.Load()) }

// Running reports whether the engine is currently processing audio.
func (e *Engine) Running() bool { return e.State() == StateRunning }

// callers hold e.mu
func (e *Engine) setStateLocked(s State) {
	e.state = s
	e.stateAtomic.Store(int32(s))
}

// Start moves the engine to Running. From Uninitialized it attaches the
// input head, acquiring the live source through the opener when one is
// configured and the test source is not selected; from Suspended it
// resumes instantly with all stage state intact. Start while Running is
// a no-op; a second Start while an acquisition is in flight fails with
// ErrStartPending.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateDestroyed:
		e.mu.Unlock()
		return ErrDestroyed
	case StateRunning:
		e.mu.Unlock()
		return nil
	}
	if e.starting {
		e.mu.Unlock()
		return ErrStartPending
	}

	// Without a live opener the engine always runs standalone on the
	// built-in noise source.
	if e.opener == nil {
		e.useTest = true
	}
	if e.useTest {
		if err := e.ensureTestSourceLocked(); err != nil {
			e.mu.Unlock()
			return err
		}
		e.head.Store(&sourceSlot{src: e.testSource})
		e.setStateLocked(StateRunning)
		e.mu.Unlock()
		return nil
	}
	if e.liveSource != nil {
		e.head.Store(&sourceSlot{src: e.liveSource})
		e.setStateLocked(StateRunning)
		e.mu.Unlock()
		return nil
	}

	// Acquire the live source without holding the control mutex;
	// permission prompts can take arbitrarily long.
	e.starting = true
	opener := e.opener
	e.mu.Unlock()

	src, err := opener.Open(ctx)

	e.mu.Lock()
	e.starting = false
	if e.state == StateDestroyed {
		e.mu.Unlock()
		if err == nil && src != nil {
			src.Close()
		}
		return ErrDestroyed
	}
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("enhance: acquire live source: %w", err)
	}
	e.liveSource = src
	e.head.Store(&sourceSlot{src: src})
	e.setStateLocked(StateRunning)
	e.mu.Unlock()
	return nil
}

// Suspend halts processing: Process zero-fills and Spectrum masks to
// silence, but every stage's state and all ramp targets are preserved
// so a subsequent Start resumes seamlessly. Suspend while Suspended is
// a no-op.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateDestroyed:
		return ErrDestroyed
	case StateUninitialized:
		return ErrNotStarted
	case StateSuspended:
		return nil
	}
	e.setStateLocked(StateSuspended)
	return nil
}

// Destroy releases the input sources and terminates the engine. It is
// idempotent and the Destroyed state is terminal; construct a new
// engine to process again.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return
	}
	e.setStateLocked(StateDestroyed)
	live := e.liveSource
	e.liveSource = nil
	e.testSource = nil
	e.head.Store(&sourceSlot{})
	e.mu.Unlock()

	if live != nil {
		live.Close()
	}
}

// SetProfile validates and installs a hearing profile, then re-resolves
// the chain targets. The profile is stored by reference and never
// mutated.
func (e *Engine) SetProfile(p *HearingProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.profile = p
	e.hasProfile = true
	e.applyLocked()
	return nil
}

// SetMode selects the environment preset and re-resolves the chain
// targets.
func (e *Engine) SetMode(m EnvironmentMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	if !validMode(m) {
		return fmt.Errorf("enhance: unknown environment mode %d", int(m))
	}
	e.mode = m
	e.applyLocked()
	return nil
}

// SetBypass toggles bypass. Bypassed, the chain ramps to the inert
// record: flat EQ, high-pass disabled, compressor inert, master gain
// zero.
func (e *Engine) SetBypass(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	e.bypass = on
	e.applyLocked()
	return nil
}

// SetMasterVolume sets the user volume in [0, 2]. It takes effect
// regardless of profile state and is not part of the resolved record.
func (e *Engine) SetMasterVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	if math.IsNaN(v) || v < masterVolumeMin || v > masterVolumeMax {
		return fmt.Errorf("enhance: master volume %g outside [%g, %g]",
			v, masterVolumeMin, masterVolumeMax)
	}
	e.masterVol = v
	e.graph.SetMasterVolume(v)
	return nil
}

// applyLocked re-resolves and publishes the ramp targets. Until a
// profile has been set at least once this is a benign no-op and the
// chain stays at its power-on silent state.
func (e *Engine) applyLocked() {
	if !e.hasProfile {
		return
	}
	e.resolved = Resolve(e.profile, e.mode, e.bypass)
	e.graph.SetTargets(e.resolved)
}

// Params returns the most recently resolved parameter record. Before a
// profile has been set it is the power-on bypass record.
func (e *Engine) Params() ResolvedParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolved
}

// Mode returns the currently selected environment mode.
func (e *Engine) Mode() EnvironmentMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Bypass reports whether bypass is enabled.
func (e *Engine) Bypass() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bypass
}

// MasterVolume returns the current user volume.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterVol
}

// Profile returns the installed hearing profile, nil before the first
// SetProfile.
func (e *Engine) Profile() *HearingProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

func (e *Engine) ensureTestSourceLocked() error {
	if e.testSource != nil {
		return nil
	}
	ts, err := newTestSource(e.sampleRate)
	if err != nil {
		return err
	}
	e.testSource = ts
	return nil
}

// UseTestSource swaps the chain head to the built-in deterministic
// pink-noise source. Filter, compressor and analyzer state are
// untouched. While not Running the choice is recorded and takes effect
// on the next Start.
func (e *Engine) UseTestSource() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	e.useTest = true
	if e.state == StateRunning {
		if err := e.ensureTestSourceLocked(); err != nil {
			return err
		}
		e.head.Store(&sourceSlot{src: e.testSource})
	}
	return nil
}

// UseLiveSource swaps the chain head back to the live source. It fails
// with ErrNoLiveSource when no opener was attached at construction.
// If the live source has not been acquired yet the swap takes effect on
// the next Start, which performs the acquisition.
func (e *Engine) UseLiveSource() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	if e.opener == nil {
		return ErrNoLiveSource
	}
	e.useTest = false
	if e.state == StateRunning && e.liveSource != nil {
		e.head.Store(&sourceSlot{src: e.liveSource})
	}
	return nil
}

// TestSourceActive reports whether the test source is selected.
func (e *Engine) TestSourceActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useTest
}

// LiveSourceAcquired reports whether the live source has been opened.
// False until the first Start on the live path completes, so callers
// can tell a deferred UseLiveSource swap from an immediate one.
func (e *Engine) LiveSourceAcquired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveSource != nil
}

// Process pulls one block from the active source, runs it through the
// chain, and leaves the enhanced samples in out. It is the audio-plane
// entry: wait-free, allocation-free, and must be called from a single
// goroutine. When the engine is not Running, out is zero-filled;
// Suspended returns nil, Destroyed returns ErrDestroyed, Uninitialized
// returns ErrNotStarted. A source read failure zero-fills and is
// surfaced to the caller; it is never retried internally.
func (e *Engine) Process(out []float64) error {
	switch State(e.stateAtomic.Load()) {
	case StateRunning:
	case StateSuspended:
		core.Zero(out)
		return nil
	case StateDestroyed:
		core.Zero(out)
		return ErrDestroyed
	default:
		core.Zero(out)
		return ErrNotStarted
	}

	slot := e.head.Load()
	if slot == nil || slot.src == nil {
		core.Zero(out)
		return nil
	}

	n, err := slot.src.ReadSamples(out)
	if err != nil {
		core.Zero(out)
		return fmt.Errorf("enhance: read source: %w", err)
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	e.graph.ProcessBlock(out)
	return nil
}

// Spectrum copies the latest consistent analyzer frame into dst, one
// value per bin in [0, 1], and returns the number of values copied.
// While not Running the frame is masked to zeros so callers never
// render stale data.
func (e *Engine) Spectrum(dst []float64) int {
	n := len(dst)
	if bins := e.tap.Bins(); n > bins {
		n = bins
	}
	if State(e.stateAtomic.Load()) != StateRunning {
		core.Zero(dst[:n])
		return n
	}
	return e.tap.Snapshot(dst[:n])
}

// SpectrumBins returns the number of analyzer bins.
func (e *Engine) SpectrumBins() int { return e.tap.Bins() }

// SpectrumBinFrequency returns the center frequency in Hz of bin i.
func (e *Engine) SpectrumBinFrequency(i int) float64 { return e.tap.BinFrequency(i) }

// GainReductionDB reports the compressor's current gain reduction in
// dB for metering; 0 when no reduction is applied.
func (e *Engine) GainReductionDB() float64 { return e.graph.GainReductionDB() }

// ResponseCurveDB writes the combined magnitude response in dB of the
// target high-pass and EQ settings at each frequency in freqs. It
// evaluates the resolved record rather than mid-ramp coefficients, so
// the curve is stable while parameters settle. Returns the number of
// values written, min(len(freqs), len(dst)).
func (e *Engine) ResponseCurveDB(freqs, dst []float64) int {
	e.mu.Lock()
	p := e.resolved
	e.mu.Unlock()

	coeffs := make([]biquad.Coefficients, 0, NumBands+1)
	if p.HighpassHz > HighpassDisabledHz {
		if c, err := design.Highpass(p.HighpassHz, highpassQ, e.sampleRate); err == nil {
			coeffs = append(coeffs, c)
		}
	}
	for i, band := range CanonicalBands {
		if c, err := design.Peak(float64(band), p.BandGainsDB[i], bandQ, e.sampleRate); err == nil {
			coeffs = append(coeffs, c)
		}
	}

	n := len(freqs)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		db := 0.0
		for j := range coeffs {
			db += coeffs[j].MagnitudeDB(freqs[i], e.sampleRate)
		}
		dst[i] = db
	}
	return n
}
