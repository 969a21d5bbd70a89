package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LoganthP/EarVan/device"
	"github.com/LoganthP/EarVan/enhance"
	"github.com/LoganthP/EarVan/measure/loudness"
)

// LiveCmd runs the microphone-to-speaker enhancement loop with an
// interactive terminal view.
type LiveCmd struct {
	Input  string `placeholder:"DEVICE" help:"Input device index or name (default: system default)."`
	Output string `placeholder:"DEVICE" help:"Output device index or name (default: system default)."`

	Profile string  `default:"flat" help:"Hearing profile (see 'earvan profiles')."`
	Mode    string  `default:"conversation" enum:"quiet,conversation,noisy" help:"Environment preset."`
	Volume  float64 `default:"1.0" help:"Master volume, 0 to 2."`

	TestNoise bool `help:"Start on the built-in test noise instead of the microphone."`

	Rate  float64 `default:"48000" help:"Sample rate in Hz."`
	Block int     `default:"512" help:"Block size in samples."`
}

func (c *LiveCmd) Run() error {
	prof, err := profileByName(c.Profile)
	if err != nil {
		return err
	}
	mode, err := enhance.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	eng, err := enhance.New(
		enhance.WithSampleRate(c.Rate),
		enhance.WithBlockSize(c.Block),
		enhance.WithLiveSource(&device.Opener{
			Device:          c.Input,
			SampleRate:      c.Rate,
			FramesPerBuffer: c.Block,
		}),
	)
	if err != nil {
		return err
	}
	defer eng.Destroy()

	if c.TestNoise {
		// Recorded now, takes effect on Start; the mic stays available
		// behind the t key.
		if err := eng.UseTestSource(); err != nil {
			return err
		}
	}
	if err := eng.Start(context.Background()); err != nil {
		return err
	}
	if err := eng.SetProfile(prof); err != nil {
		return err
	}
	if err := eng.SetMode(mode); err != nil {
		return err
	}
	if err := eng.SetMasterVolume(c.Volume); err != nil {
		return err
	}

	out, err := device.OpenOutput(c.Output, c.Rate, c.Block)
	if err != nil {
		return err
	}
	defer out.Close()

	meters, err := newLiveMeters(c.Rate)
	if err != nil {
		return err
	}

	pumpDone := make(chan error, 1)
	go pump(eng, out, meters, pumpDone)

	prog := tea.NewProgram(newLiveModel(eng, meters, prof), tea.WithAltScreen())
	_, uiErr := prog.Run()

	eng.Destroy()
	pumpErr := <-pumpDone
	out.Flush()

	if uiErr != nil {
		return uiErr
	}
	if pumpErr != nil {
		return fmt.Errorf("audio loop: %w", pumpErr)
	}
	return nil
}

// pump moves blocks from the engine to the playback device until the
// engine is destroyed. The blocking device write paces the loop; a
// suspended engine keeps the loop alive with silence.
func pump(eng *enhance.Engine, out *device.Output, meters *liveMeters, done chan<- error) {
	block := make([]float64, eng.BlockSize())
	for {
		err := eng.Process(block)
		if errors.Is(err, enhance.ErrDestroyed) {
			done <- nil
			return
		}
		// Read errors leave a zeroed block; keep the stream going.
		meters.push(block)
		if werr := out.WriteSamples(block); werr != nil {
			done <- werr
			return
		}
	}
}

// liveMeters shares a loudness meter between the audio loop and the
// terminal view.
type liveMeters struct {
	mu    sync.Mutex
	meter *loudness.Meter
}

func newLiveMeters(rate float64) (*liveMeters, error) {
	m, err := loudness.NewMeter(rate)
	if err != nil {
		return nil, err
	}
	return &liveMeters{meter: m}, nil
}

func (l *liveMeters) push(block []float64) {
	l.mu.Lock()
	l.meter.ProcessBlock(block)
	l.mu.Unlock()
}

func (l *liveMeters) momentary() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meter.Momentary()
}

func (l *liveMeters) peak() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meter.SamplePeak()
}
