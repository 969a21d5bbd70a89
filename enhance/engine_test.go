package enhance

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/LoganthP/EarVan/dsp/spectrum"
)

// fakeSource feeds a constant fill value, or fails every read with err.
type fakeSource struct {
	sr     float64
	fill   float64
	limit  int // max samples per read when > 0
	err    error
	reads  int
	closed int
}

var _ Source = (*fakeSource)(nil)

func (s *fakeSource) SampleRate() float64 { return s.sr }

func (s *fakeSource) ReadSamples(dst []float64) (int, error) {
	s.reads++
	if s.err != nil {
		return 0, s.err
	}
	n := len(dst)
	if s.limit > 0 && s.limit < n {
		n = s.limit
	}
	for i := 0; i < n; i++ {
		dst[i] = s.fill
	}
	return n, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// fakeOpener hands out src or err. When gate is non-nil, Open blocks
// until the gate closes; entered signals that an Open is in flight.
type fakeOpener struct {
	mu      sync.Mutex
	src     Source
	err     error
	opens   int
	entered chan struct{}
	gate    chan struct{}
}

var _ SourceOpener = (*fakeOpener)(nil)

func (o *fakeOpener) Open(ctx context.Context) (Source, error) {
	o.mu.Lock()
	o.opens++
	src, err := o.src, o.err
	entered, gate := o.entered, o.gate
	o.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	return src, err
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func mustStart(t *testing.T, eng *Engine) {
	t.Helper()
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustSetProfile(t *testing.T, eng *Engine, p *HearingProfile) {
	t.Helper()
	if err := eng.SetProfile(p); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
}

func assertAllZero(t *testing.T, buf []float64) {
	t.Helper()
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %g, want 0", i, v)
		}
	}
}

func TestEngine_LifecycleTransitions(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	if got := eng.State(); got != StateUninitialized {
		t.Fatalf("initial state = %v, want uninitialized", got)
	}
	if err := eng.Suspend(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Suspend before Start = %v, want ErrNotStarted", err)
	}

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := eng.State(); got != StateRunning {
		t.Fatalf("state after Start = %v, want running", got)
	}
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start while running = %v, want nil", err)
	}

	if err := eng.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if got := eng.State(); got != StateSuspended {
		t.Fatalf("state after Suspend = %v, want suspended", got)
	}
	if err := eng.Suspend(); err != nil {
		t.Fatalf("Suspend while suspended = %v, want nil", err)
	}

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := eng.State(); got != StateRunning {
		t.Fatalf("state after resume = %v, want running", got)
	}

	eng.Destroy()
	if got := eng.State(); got != StateDestroyed {
		t.Fatalf("state after Destroy = %v, want destroyed", got)
	}
	eng.Destroy() // idempotent
	if got := eng.State(); got != StateDestroyed {
		t.Fatalf("state after second Destroy = %v, want destroyed", got)
	}
}

func TestEngine_DestroyedRejectsEverything(t *testing.T) {
	eng := newTestEngine(t)
	eng.Destroy()

	checks := []struct {
		name string
		err  error
	}{
		{"Start", eng.Start(context.Background())},
		{"Suspend", eng.Suspend()},
		{"SetProfile", eng.SetProfile(&HearingProfile{Name: "flat"})},
		{"SetMode", eng.SetMode(ModeNoisy)},
		{"SetBypass", eng.SetBypass(true)},
		{"SetMasterVolume", eng.SetMasterVolume(1)},
		{"UseTestSource", eng.UseTestSource()},
		{"UseLiveSource", eng.UseLiveSource()},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrDestroyed) {
			t.Errorf("%s after Destroy = %v, want ErrDestroyed", c.name, c.err)
		}
	}

	out := make([]float64, 64)
	for i := range out {
		out[i] = 1
	}
	if err := eng.Process(out); !errors.Is(err, ErrDestroyed) {
		t.Errorf("Process after Destroy = %v, want ErrDestroyed", err)
	}
	assertAllZero(t, out)
}

func TestEngine_ProcessStateMatrix(t *testing.T) {
	eng := newTestEngine(t)
	out := make([]float64, 128)
	ones := func() {
		for i := range out {
			out[i] = 1
		}
	}

	ones()
	if err := eng.Process(out); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Process while uninitialized = %v, want ErrNotStarted", err)
	}
	assertAllZero(t, out)

	mustStart(t, eng)
	if err := eng.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	ones()
	if err := eng.Process(out); err != nil {
		t.Fatalf("Process while suspended = %v, want nil", err)
	}
	assertAllZero(t, out)
}

func TestEngine_SilentUntilProfileSet(t *testing.T) {
	eng := newTestEngine(t)
	mustStart(t, eng)

	out := make([]float64, 512)
	for k := 0; k < 10; k++ {
		if err := eng.Process(out); err != nil {
			t.Fatalf("Process: %v", err)
		}
		assertAllZero(t, out)
	}

	// Mode and bypass changes alone do not wake the chain.
	if err := eng.SetMode(ModeNoisy); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := eng.SetBypass(true); err != nil {
		t.Fatalf("SetBypass: %v", err)
	}
	if err := eng.SetBypass(false); err != nil {
		t.Fatalf("SetBypass: %v", err)
	}
	eng.Process(out)
	assertAllZero(t, out)

	mustSetProfile(t, eng, &HearingProfile{Name: "flat"})
	peak := 0.0
	for k := 0; k < 50; k++ {
		eng.Process(out)
		if p := maxAbs(out); p > peak {
			peak = p
		}
	}
	if peak == 0 {
		t.Fatal("chain still silent after a profile was set")
	}
}

func TestEngine_ParamsLatentUntilProfile(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.SetMode(ModeConversation); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := eng.Params(); got != BypassParams() {
		t.Fatalf("Params before any profile = %+v, want power-on bypass record", got)
	}

	mustSetProfile(t, eng, &HearingProfile{Name: "flat"})
	want := Resolve(&HearingProfile{Name: "flat"}, ModeConversation, false)
	if got := eng.Params(); got != want {
		t.Fatalf("Params = %+v, want %+v", got, want)
	}
}

func TestEngine_SetProfileValidates(t *testing.T) {
	eng := newTestEngine(t)
	good := &HearingProfile{Name: "mine", BandGainsDB: map[int]float64{2000: 6}}
	mustSetProfile(t, eng, good)
	want := eng.Params()

	bad := []*HearingProfile{
		{Name: "off grid", BandGainsDB: map[int]float64{750: 3}},
		{Name: "too hot", BandGainsDB: map[int]float64{2000: 12.5}},
		{Name: "too cold", BandGainsDB: map[int]float64{2000: -13}},
	}
	for _, p := range bad {
		if err := eng.SetProfile(p); err == nil {
			t.Errorf("SetProfile(%q) accepted an invalid profile", p.Name)
		}
	}

	if got := eng.Params(); got != want {
		t.Errorf("rejected profiles changed Params: %+v -> %+v", want, got)
	}
	if eng.Profile() != good {
		t.Error("rejected profiles replaced the installed profile")
	}
}

func TestEngine_SetModeRejectsUnknown(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.SetMode(EnvironmentMode(99)); err == nil {
		t.Fatal("SetMode(99) accepted")
	}
	if got := eng.Mode(); got != ModeQuiet {
		t.Fatalf("Mode after rejected SetMode = %v, want quiet default", got)
	}
}

func TestEngine_SetMasterVolume(t *testing.T) {
	eng := newTestEngine(t)

	for _, v := range []float64{0, 1, 1.5, 2} {
		if err := eng.SetMasterVolume(v); err != nil {
			t.Errorf("SetMasterVolume(%g) = %v, want nil", v, err)
		}
	}
	if got := eng.MasterVolume(); got != 2 {
		t.Fatalf("MasterVolume = %g, want 2", got)
	}

	for _, v := range []float64{-0.1, 2.1, math.NaN()} {
		if err := eng.SetMasterVolume(v); err == nil {
			t.Errorf("SetMasterVolume(%g) accepted", v)
		}
	}
	if got := eng.MasterVolume(); got != 2 {
		t.Fatalf("rejected volume changed the setting: %g", got)
	}
}

func TestEngine_RejectsSampleRateBelowTopBand(t *testing.T) {
	if _, err := New(WithSampleRate(16000)); err == nil {
		t.Fatal("New accepted a sample rate whose Nyquist cannot host the 8 kHz band")
	}
	if _, err := New(WithSampleRate(44100)); err != nil {
		t.Fatalf("New(44100) = %v, want nil", err)
	}
}

func TestEngine_StartWithoutOpenerUsesTestSource(t *testing.T) {
	eng := newTestEngine(t)
	mustStart(t, eng)
	if !eng.TestSourceActive() {
		t.Fatal("engine without a live opener should fall back to the test source")
	}
	if err := eng.UseLiveSource(); !errors.Is(err, ErrNoLiveSource) {
		t.Fatalf("UseLiveSource without opener = %v, want ErrNoLiveSource", err)
	}
}

func TestEngine_StartSingleFlight(t *testing.T) {
	opener := &fakeOpener{
		src:     &fakeSource{sr: 48000, fill: 0.1},
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	eng := newTestEngine(t, WithLiveSource(opener))

	errc := make(chan error, 1)
	go func() { errc <- eng.Start(context.Background()) }()
	<-opener.entered

	if err := eng.Start(context.Background()); !errors.Is(err, ErrStartPending) {
		t.Fatalf("Start during acquisition = %v, want ErrStartPending", err)
	}

	close(opener.gate)
	if err := <-errc; err != nil {
		t.Fatalf("first Start = %v", err)
	}
	if got := eng.State(); got != StateRunning {
		t.Fatalf("state = %v, want running", got)
	}
	if n := opener.openCount(); n != 1 {
		t.Fatalf("opener invoked %d times, want 1", n)
	}
}

func TestEngine_DestroyDuringAcquisition(t *testing.T) {
	src := &fakeSource{sr: 48000}
	opener := &fakeOpener{
		src:     src,
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	eng := newTestEngine(t, WithLiveSource(opener))

	errc := make(chan error, 1)
	go func() { errc <- eng.Start(context.Background()) }()
	<-opener.entered

	eng.Destroy()
	close(opener.gate)

	if err := <-errc; !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Start completed after Destroy = %v, want ErrDestroyed", err)
	}
	if src.closed == 0 {
		t.Error("source acquired after Destroy was never closed")
	}
	if got := eng.State(); got != StateDestroyed {
		t.Fatalf("state = %v, want destroyed", got)
	}
}

func TestEngine_StartAcquireFailure(t *testing.T) {
	opener := &fakeOpener{err: DeviceNotFoundError(errors.New("no default input"))}
	eng := newTestEngine(t, WithLiveSource(opener))

	err := eng.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with a failing opener")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error %v does not match ErrSourceUnavailable", err)
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error %v does not match ErrDeviceNotFound", err)
	}
	if got := eng.State(); got != StateUninitialized {
		t.Fatalf("failed Start left state %v, want uninitialized", got)
	}

	// Once the device shows up, the same engine starts cleanly.
	opener.mu.Lock()
	opener.err = nil
	opener.src = &fakeSource{sr: 48000, fill: 0.1}
	opener.mu.Unlock()
	mustStart(t, eng)
	if got := eng.State(); got != StateRunning {
		t.Fatalf("state after retry = %v, want running", got)
	}
}

func TestEngine_ProcessReadErrorZeroFillsOnce(t *testing.T) {
	readErr := errors.New("stream stalled")
	src := &fakeSource{sr: 48000, err: readErr}
	eng := newTestEngine(t, WithLiveSource(&fakeOpener{src: src}))
	mustStart(t, eng)

	out := make([]float64, 64)
	for i := range out {
		out[i] = 1
	}
	err := eng.Process(out)
	if !errors.Is(err, readErr) {
		t.Fatalf("Process = %v, want wrapped %v", err, readErr)
	}
	assertAllZero(t, out)
	if src.reads != 1 {
		t.Errorf("source read %d times for one Process call, want 1 (no retry)", src.reads)
	}
	if got := eng.State(); got != StateRunning {
		t.Errorf("read failure changed state to %v, want running", got)
	}
}

func TestEngine_ProcessPadsShortReads(t *testing.T) {
	src := &fakeSource{sr: 48000, fill: 0.25, limit: 40}
	eng := newTestEngine(t, WithLiveSource(&fakeOpener{src: src}))
	mustStart(t, eng)
	mustSetProfile(t, eng, &HearingProfile{Name: "flat"})

	// Flat profile in quiet mode leaves no filter memory in the path, so
	// the padded tail comes out exactly zero.
	out := make([]float64, 64)
	for k := 0; k < 100; k++ {
		for i := range out {
			out[i] = 7
		}
		if err := eng.Process(out); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if out[0] == 0 {
		t.Fatal("head of a short read should carry audio")
	}
	assertAllZero(t, out[40:])
}

func TestEngine_SourceSwitchKeepsChainState(t *testing.T) {
	live := &fakeSource{sr: 48000, fill: 0.25}
	eng := newTestEngine(t, WithLiveSource(&fakeOpener{src: live}))
	mustStart(t, eng)
	mustSetProfile(t, eng, &HearingProfile{Name: "flat"})
	if eng.TestSourceActive() {
		t.Fatal("live source should be active after Start with an opener")
	}

	out := make([]float64, 512)
	for k := 0; k < 5; k++ {
		eng.Process(out)
	}

	gainBefore := eng.graph.gainOffset.live
	compBefore := eng.graph.comp.State()
	bankBefore := eng.graph.bands.State()

	if err := eng.UseTestSource(); err != nil {
		t.Fatalf("UseTestSource: %v", err)
	}
	if !eng.TestSourceActive() {
		t.Fatal("TestSourceActive = false after UseTestSource")
	}

	// The swap itself must not touch any stage state.
	if got := eng.graph.gainOffset.live; got != gainBefore {
		t.Errorf("gain ramp reset by source switch: %g -> %g", gainBefore, got)
	}
	if got := eng.graph.comp.State(); got != compBefore {
		t.Errorf("compressor envelope reset by source switch: %g -> %g", compBefore, got)
	}
	for i, st := range eng.graph.bands.State() {
		if st != bankBefore[i] {
			t.Errorf("band %d state reset by source switch", i)
		}
	}

	// Processing continues the same ramp from the same point.
	reads := live.reads
	eng.Process(out)
	if live.reads != reads {
		t.Error("live source still being read after switching to test noise")
	}
	if got := eng.graph.gainOffset.live; got <= gainBefore {
		t.Errorf("ramp did not continue across the switch: %g -> %g", gainBefore, got)
	}

	if err := eng.UseLiveSource(); err != nil {
		t.Fatalf("UseLiveSource: %v", err)
	}
	eng.Process(out)
	if live.reads != reads+1 {
		t.Error("live source not read after switching back")
	}
}

func TestEngine_LiveAcquiredOnRestartAfterSwitch(t *testing.T) {
	live := &fakeSource{sr: 48000, fill: 0.5}
	opener := &fakeOpener{src: live}
	eng := newTestEngine(t, WithLiveSource(opener))

	if err := eng.UseTestSource(); err != nil {
		t.Fatalf("UseTestSource: %v", err)
	}
	mustStart(t, eng)
	if n := opener.openCount(); n != 0 {
		t.Fatalf("opener invoked %d times while the test source is selected, want 0", n)
	}

	// Switching back before acquisition defers to the next Start.
	if err := eng.UseLiveSource(); err != nil {
		t.Fatalf("UseLiveSource: %v", err)
	}
	if eng.LiveSourceAcquired() {
		t.Fatal("LiveSourceAcquired = true before any acquisition")
	}
	if err := eng.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	mustStart(t, eng)
	if n := opener.openCount(); n != 1 {
		t.Fatalf("opener invoked %d times after restart, want 1", n)
	}
	if !eng.LiveSourceAcquired() {
		t.Fatal("LiveSourceAcquired = false after the acquiring Start")
	}

	reads := live.reads
	eng.Process(make([]float64, 64))
	if live.reads != reads+1 {
		t.Error("live source not attached after restart")
	}
}

func TestEngine_SuspendResumeSeamless(t *testing.T) {
	profile := &HearingProfile{Name: "speech focus"}
	mk := func() *Engine {
		eng := newTestEngine(t)
		mustStart(t, eng)
		mustSetProfile(t, eng, profile)
		if err := eng.SetMode(ModeConversation); err != nil {
			t.Fatalf("SetMode: %v", err)
		}
		return eng
	}
	ref, sus := mk(), mk()

	outRef := make([]float64, 256)
	outSus := make([]float64, 256)
	for k := 0; k < 20; k++ {
		ref.Process(outRef)
		sus.Process(outSus)
	}

	// Suspension consumes nothing: zero-filled calls leave the source
	// position and every stage untouched.
	if err := sus.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	scratch := make([]float64, 256)
	for k := 0; k < 7; k++ {
		if err := sus.Process(scratch); err != nil {
			t.Fatalf("Process while suspended: %v", err)
		}
	}
	mustStart(t, sus)

	for k := 0; k < 20; k++ {
		ref.Process(outRef)
		sus.Process(outSus)
		for i := range outRef {
			if outRef[i] != outSus[i] {
				t.Fatalf("block %d sample %d diverged after resume: %g vs %g",
					k, i, outRef[i], outSus[i])
			}
		}
	}
}

func TestEngine_SpectrumMaskedWhenNotRunning(t *testing.T) {
	eng := newTestEngine(t)
	dst := make([]float64, eng.SpectrumBins())

	if n := eng.Spectrum(dst); n != len(dst) {
		t.Fatalf("Spectrum = %d, want %d", n, len(dst))
	}
	assertAllZero(t, dst)

	mustStart(t, eng)
	mustSetProfile(t, eng, &HearingProfile{Name: "flat"})
	out := make([]float64, 1024)
	for k := 0; k < 60; k++ {
		eng.Process(out)
	}
	eng.Spectrum(dst)
	if maxAbs(dst) < 0.05 {
		t.Fatal("no spectral content while running on the noise source")
	}

	if err := eng.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	for i := range dst {
		dst[i] = -1
	}
	eng.Spectrum(dst)
	assertAllZero(t, dst)

	// Resume unmasks the retained frame without processing a sample.
	mustStart(t, eng)
	eng.Spectrum(dst)
	if maxAbs(dst) < 0.05 {
		t.Fatal("spectrum lost across suspend/resume")
	}

	eng.Destroy()
	eng.Spectrum(dst)
	assertAllZero(t, dst)
}

func TestEngine_SpectrumBins(t *testing.T) {
	eng := newTestEngine(t)
	if got := eng.SpectrumBins(); got != 512 {
		t.Fatalf("SpectrumBins = %d, want 512", got)
	}
	if got := eng.SpectrumBinFrequency(1); got != 46.875 {
		t.Fatalf("SpectrumBinFrequency(1) = %g, want 46.875", got)
	}

	wide := newTestEngine(t, WithAnalyzer(spectrum.WithFFTSize(2048)))
	if got := wide.SpectrumBins(); got != 1024 {
		t.Fatalf("SpectrumBins with 2048-point FFT = %d, want 1024", got)
	}
}

func TestEngine_ResponseCurveDB(t *testing.T) {
	eng := newTestEngine(t)
	mustSetProfile(t, eng, &HearingProfile{
		Name:        "plain",
		Class:       ClassGeneric,
		BandGainsDB: map[int]float64{1000: 6},
	})

	freqs := []float64{100, 1000}
	dst := make([]float64, 2)
	if n := eng.ResponseCurveDB(freqs, dst); n != 2 {
		t.Fatalf("ResponseCurveDB = %d, want 2", n)
	}
	if math.Abs(dst[1]-6) > 0.7 {
		t.Errorf("response at 1 kHz = %g dB, want about +6", dst[1])
	}
	if math.Abs(dst[0]) > 0.5 {
		t.Errorf("response at 100 Hz = %g dB, want about 0 (quiet mode has no high-pass)", dst[0])
	}

	if err := eng.SetMode(ModeConversation); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	low := make([]float64, 1)
	eng.ResponseCurveDB([]float64{30}, low)
	if low[0] > -15 {
		t.Errorf("response at 30 Hz = %g dB with a 100 Hz high-pass, want below -15", low[0])
	}
}

func TestEngine_ProcessNoAllocations(t *testing.T) {
	eng := newTestEngine(t)
	mustStart(t, eng)
	mustSetProfile(t, eng, &HearingProfile{Name: "speech focus"})

	out := make([]float64, 512)
	allocs := testing.AllocsPerRun(200, func() {
		if err := eng.Process(out); err != nil {
			t.Fatalf("Process: %v", err)
		}
	})
	if allocs != 0 {
		t.Errorf("Process allocated %.1f times per run, want 0", allocs)
	}
}
