package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/LoganthP/EarVan/dsp/buffer"
	"github.com/LoganthP/EarVan/enhance"
)

const defaultFramesPerBuffer = 512

// Opener acquires a microphone as an engine source. The zero value
// opens the default input device at its default sample rate.
type Opener struct {
	// Device selects the input by list index or name fragment.
	// Empty means the system default input.
	Device string

	// SampleRate the stream is opened at. Zero means the device default.
	SampleRate float64

	// FramesPerBuffer per blocking read. Zero means 512.
	FramesPerBuffer int
}

var _ enhance.SourceOpener = (*Opener)(nil)

// Open acquires the input device and starts its stream.
func (o *Opener) Open(ctx context.Context) (enhance.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := acquire(); err != nil {
		return nil, &enhance.DeviceError{Op: "initialize", Err: err}
	}

	dev, err := o.pickDevice()
	if err != nil {
		release()
		return nil, err
	}

	frames := o.FramesPerBuffer
	if frames <= 0 {
		frames = defaultFramesPerBuffer
	}

	p := portaudio.LowLatencyParameters(dev, nil)
	p.Input.Channels = 1
	p.FramesPerBuffer = frames
	if o.SampleRate > 0 {
		p.SampleRate = o.SampleRate
	}

	if err := ctx.Err(); err != nil {
		release()
		return nil, err
	}

	in := &Input{
		sampleRate: p.SampleRate,
		buf:        make([]float32, frames),
		scratch:    make([]float64, frames),
		ring:       buffer.NewRing(4 * frames),
	}

	in.stream, err = portaudio.OpenStream(p, in.buf)
	if err != nil {
		release()
		return nil, &enhance.DeviceError{Op: "open", Err: err}
	}
	if err := in.stream.Start(); err != nil {
		_ = in.stream.Close()
		release()
		return nil, &enhance.DeviceError{Op: "start", Err: err}
	}
	return in, nil
}

func (o *Opener) pickDevice() (*portaudio.DeviceInfo, error) {
	if o.Device == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, enhance.DeviceNotFoundError(err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, &enhance.DeviceError{Op: "list", Err: err}
	}
	dev, err := matchDevice(devices, o.Device)
	if err != nil {
		return nil, enhance.DeviceNotFoundError(err)
	}
	if dev.MaxInputChannels < 1 {
		return nil, enhance.DeviceNotFoundError(fmt.Errorf("device %q has no input channels", dev.Name))
	}
	return dev, nil
}

// Input is a started microphone stream. ReadSamples blocks for at most
// one device buffer at a time.
type Input struct {
	sampleRate float64
	stream     *portaudio.Stream
	buf        []float32
	scratch    []float64
	ring       *buffer.Ring

	closeOnce sync.Once
	closeErr  error
}

var _ enhance.Source = (*Input)(nil)

// SampleRate returns the rate the stream was opened at.
func (in *Input) SampleRate() float64 { return in.sampleRate }

// ReadSamples fills dst from the device, buffering the remainder of
// odd-sized device reads for the next call. Input overflow is not an
// error; the device keeps whatever it managed to capture.
func (in *Input) ReadSamples(dst []float64) (int, error) {
	filled := in.ring.Read(dst)
	for filled < len(dst) {
		if err := in.stream.Read(); err != nil && err != portaudio.InputOverflowed {
			if filled > 0 {
				return filled, nil
			}
			return 0, &enhance.DeviceError{Op: "read", Err: err}
		}
		toFloat64(in.scratch, in.buf)

		n := copy(dst[filled:], in.scratch)
		filled += n
		in.ring.Write(in.scratch[n:])
	}
	return filled, nil
}

// Close stops the stream and releases the device. Safe to call more
// than once.
func (in *Input) Close() error {
	in.closeOnce.Do(func() {
		err := in.stream.Stop()
		if cerr := in.stream.Close(); err == nil {
			err = cerr
		}
		release()
		if err != nil {
			in.closeErr = &enhance.DeviceError{Op: "close", Err: err}
		}
	})
	return in.closeErr
}
