package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Output plays mono samples on an output device. WriteSamples blocks
// while the device drains, which paces a render loop in real time.
type Output struct {
	sampleRate float64
	stream     *portaudio.Stream
	buf        []float32
	fill       int

	closeOnce sync.Once
	closeErr  error
}

// OpenOutput opens and starts an output stream. An empty device query
// selects the system default output.
func OpenOutput(deviceQuery string, sampleRate float64, framesPerBuffer int) (*Output, error) {
	if err := acquire(); err != nil {
		return nil, fmt.Errorf("device: initialize: %w", err)
	}

	dev, err := pickOutput(deviceQuery)
	if err != nil {
		release()
		return nil, err
	}

	frames := framesPerBuffer
	if frames <= 0 {
		frames = defaultFramesPerBuffer
	}

	p := portaudio.LowLatencyParameters(nil, dev)
	p.Output.Channels = 1
	p.FramesPerBuffer = frames
	if sampleRate > 0 {
		p.SampleRate = sampleRate
	}

	out := &Output{
		sampleRate: p.SampleRate,
		buf:        make([]float32, frames),
	}
	out.stream, err = portaudio.OpenStream(p, out.buf)
	if err != nil {
		release()
		return nil, fmt.Errorf("device: open output: %w", err)
	}
	if err := out.stream.Start(); err != nil {
		_ = out.stream.Close()
		release()
		return nil, fmt.Errorf("device: start output: %w", err)
	}
	return out, nil
}

func pickOutput(query string) (*portaudio.DeviceInfo, error) {
	if query == "" {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("device: no default output: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("device: list: %w", err)
	}
	dev, err := matchDevice(devices, query)
	if err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}
	if dev.MaxOutputChannels < 1 {
		return nil, fmt.Errorf("device: %q has no output channels", dev.Name)
	}
	return dev, nil
}

// SampleRate returns the rate the stream was opened at.
func (o *Output) SampleRate() float64 { return o.sampleRate }

// WriteSamples queues src for playback, writing to the device whenever
// a full buffer accumulates. Underflow is not an error.
func (o *Output) WriteSamples(src []float64) error {
	for len(src) > 0 {
		n := len(o.buf) - o.fill
		if n > len(src) {
			n = len(src)
		}
		toFloat32(o.buf[o.fill:o.fill+n], src[:n])
		o.fill += n
		src = src[n:]

		if o.fill == len(o.buf) {
			o.fill = 0
			if err := o.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
				return fmt.Errorf("device: write: %w", err)
			}
		}
	}
	return nil
}

// Flush zero-pads and plays any partially filled buffer.
func (o *Output) Flush() error {
	if o.fill == 0 {
		return nil
	}
	for i := o.fill; i < len(o.buf); i++ {
		o.buf[i] = 0
	}
	o.fill = 0
	if err := o.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
		return fmt.Errorf("device: write: %w", err)
	}
	return nil
}

// Close stops playback and releases the device. Safe to call more
// than once.
func (o *Output) Close() error {
	o.closeOnce.Do(func() {
		err := o.stream.Stop()
		if cerr := o.stream.Close(); err == nil {
			err = cerr
		}
		release()
		if err != nil {
			o.closeErr = fmt.Errorf("device: close output: %w", err)
		}
	})
	return o.closeErr
}
