// Package device captures and plays mono audio through PortAudio. Its
// Opener adapts an input device into the engine's Source interface;
// Output is the matching blocking playback sink.
package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio initialization is reference-counted so that independent
// inputs, outputs, and listings can overlap freely.
var (
	initMu    sync.Mutex
	initCount int
)

func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initCount == 0 {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
	}
	initCount++
	return nil
}

func release() {
	initMu.Lock()
	defer initMu.Unlock()
	if initCount == 0 {
		return
	}
	initCount--
	if initCount == 0 {
		_ = portaudio.Terminate()
	}
}

// Info describes one audio device. Index is the position used to
// address the device on the command line.
type Info struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// List returns all audio devices known to PortAudio.
func List() ([]Info, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	defer release()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	defIn, _ := portaudio.DefaultInputDevice()
	defOut, _ := portaudio.DefaultOutputDevice()

	infos := make([]Info, len(devices))
	for i, d := range devices {
		infos[i] = Info{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      d == defIn,
			DefaultOutput:     d == defOut,
		}
	}
	return infos, nil
}

// matchDevice resolves a device query against a device list. A numeric
// query addresses by index; anything else matches the name, first by
// prefix, then by substring, both case-insensitive.
func matchDevice(devices []*portaudio.DeviceInfo, query string) (*portaudio.DeviceInfo, error) {
	if idx, err := strconv.Atoi(query); err == nil {
		if idx < 0 || idx >= len(devices) {
			return nil, fmt.Errorf("device index %d out of range (%d devices)", idx, len(devices))
		}
		return devices[idx], nil
	}

	q := strings.ToLower(query)
	for _, d := range devices {
		if strings.HasPrefix(strings.ToLower(d.Name), q) {
			return d, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), q) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no device matching %q", query)
}

func toFloat64(dst []float64, src []float32) {
	for i, v := range src {
		dst[i] = float64(v)
	}
}

func toFloat32(dst []float32, src []float64) {
	for i, v := range src {
		dst[i] = float32(v)
	}
}
