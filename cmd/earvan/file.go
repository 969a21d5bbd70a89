package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/LoganthP/EarVan/dsp/dither"
	"github.com/LoganthP/EarVan/dsp/resample"
	"github.com/LoganthP/EarVan/enhance"
	"github.com/LoganthP/EarVan/measure/levels"
	"github.com/LoganthP/EarVan/measure/loudness"
)

// FileCmd renders a WAV file through the enhancement chain and writes
// a dithered PCM result plus a level report.
type FileCmd struct {
	In  string `arg:"" type:"existingfile" help:"Input WAV file."`
	Out string `short:"o" placeholder:"PATH" help:"Output WAV path (default: <in>-enhanced.wav)."`

	Profile string  `default:"flat" help:"Hearing profile (see 'earvan profiles')."`
	Mode    string  `default:"conversation" enum:"quiet,conversation,noisy" help:"Environment preset."`
	Volume  float64 `default:"1.0" help:"Master volume, 0 to 2."`

	Rate     float64 `default:"48000" help:"Processing sample rate in Hz."`
	Block    int     `default:"512" help:"Processing block size in samples."`
	OutRate  int     `placeholder:"HZ" help:"Output sample rate (default: the input file's rate)."`
	BitDepth int     `default:"16" help:"Output PCM bit depth."`
}

func (c *FileCmd) Run() error {
	prof, err := profileByName(c.Profile)
	if err != nil {
		return err
	}
	mode, err := enhance.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	mono, inRate, err := decodeMonoWAV(c.In)
	if err != nil {
		return err
	}
	if len(mono) == 0 {
		return fmt.Errorf("%s: no audio samples", c.In)
	}

	inStats := levels.Measure(mono)
	inLUFS, err := integratedLoudness(mono, inRate)
	if err != nil {
		return err
	}

	work := mono
	if inRate != c.Rate {
		if work, err = resampleAll(inRate, c.Rate, mono); err != nil {
			return err
		}
	}

	rendered, maxGR, err := c.render(prof, mode, work)
	if err != nil {
		return err
	}

	outStats := levels.Measure(rendered)
	outLUFS, err := integratedLoudness(rendered, c.Rate)
	if err != nil {
		return err
	}

	outRate := c.OutRate
	if outRate <= 0 {
		outRate = int(inRate)
	}
	if float64(outRate) != c.Rate {
		if rendered, err = resampleAll(c.Rate, float64(outRate), rendered); err != nil {
			return err
		}
	}

	outPath := c.Out
	if outPath == "" {
		outPath = defaultOutPath(c.In)
	}
	if err := writeWAV(outPath, rendered, outRate, c.BitDepth); err != nil {
		return err
	}

	printRenderReport(renderReport{
		inPath:  c.In,
		outPath: outPath,
		in:      inStats,
		out:     outStats,
		inLUFS:  inLUFS,
		outLUFS: outLUFS,
		maxGR:   maxGR,
		profile: prof.Name,
		mode:    mode.String(),
	})
	return nil
}

// render drives the engine over the prepared samples. The chain ramps
// from power-on silence to its targets, so a second of silent lead
// runs first and is cut from the result.
func (c *FileCmd) render(prof *enhance.HearingProfile, mode enhance.EnvironmentMode, in []float64) ([]float64, float64, error) {
	lead := int(c.Rate)
	src := &memorySource{rate: c.Rate, lead: lead, data: in}

	eng, err := enhance.New(
		enhance.WithSampleRate(c.Rate),
		enhance.WithBlockSize(c.Block),
		enhance.WithLiveSource(memoryOpener{src}),
	)
	if err != nil {
		return nil, 0, err
	}
	defer eng.Destroy()

	if err := eng.Start(context.Background()); err != nil {
		return nil, 0, err
	}
	if err := eng.SetProfile(prof); err != nil {
		return nil, 0, err
	}
	if err := eng.SetMode(mode); err != nil {
		return nil, 0, err
	}
	if err := eng.SetMasterVolume(c.Volume); err != nil {
		return nil, 0, err
	}

	total := lead + len(in)
	out := make([]float64, 0, total+c.Block)
	block := make([]float64, c.Block)

	var maxGR float64
	for len(out) < total {
		if err := eng.Process(block); err != nil {
			return nil, 0, fmt.Errorf("render: %w", err)
		}
		out = append(out, block...)
		if len(out) > lead {
			if gr := eng.GainReductionDB(); gr > maxGR {
				maxGR = gr
			}
		}
	}
	return out[lead:total], maxGR, nil
}

// memorySource feeds a fixed buffer to the engine, preceded by lead
// samples of silence. Reads past the end are short reads.
type memorySource struct {
	rate float64
	lead int
	data []float64
	pos  int
}

func (s *memorySource) SampleRate() float64 { return s.rate }

func (s *memorySource) ReadSamples(dst []float64) (int, error) {
	n := 0
	for n < len(dst) && s.pos < s.lead {
		dst[n] = 0
		n++
		s.pos++
	}
	off := s.pos - s.lead
	copied := copy(dst[n:], s.data[min(off, len(s.data)):])
	s.pos += copied
	return n + copied, nil
}

func (s *memorySource) Close() error { return nil }

// memoryOpener hands the engine a prepared in-memory source.
type memoryOpener struct{ src *memorySource }

func (o memoryOpener) Open(ctx context.Context) (enhance.Source, error) {
	return o.src, nil
}

// decodeMonoWAV reads a PCM WAV file and mixes it down to mono by
// averaging channels.
func decodeMonoWAV(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}

	format := dec.Format()
	bits := int(dec.BitDepth)
	if bits == 0 {
		return nil, 0, fmt.Errorf("%s: missing bit depth", path)
	}

	buf := &audio.IntBuffer{Format: format, Data: make([]int, 8192)}
	var mono []float64
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			return nil, 0, fmt.Errorf("%s: decode: %w", path, err)
		}
		if n == 0 {
			break
		}
		mono = appendMixdown(mono, buf.Data[:n], format.NumChannels, bits)
	}
	return mono, float64(format.SampleRate), nil
}

// appendMixdown converts interleaved integer frames to normalized mono
// float64 samples, averaging across channels.
func appendMixdown(dst []float64, data []int, channels, bits int) []float64 {
	if channels < 1 {
		channels = 1
	}
	scale := 1.0 / (float64(int64(1)<<(bits-1)) * float64(channels))
	frames := len(data) / channels
	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(data[f*channels+ch])
		}
		dst = append(dst, sum*scale)
	}
	return dst
}

// resampleAll converts a whole buffer between rates, draining the
// filter tail.
func resampleAll(from, to float64, in []float64) ([]float64, error) {
	conv, err := resample.New(from, to)
	if err != nil {
		return nil, err
	}
	out := conv.Process(in)
	return append(out, conv.Flush()...), nil
}

// integratedLoudness measures gated program loudness over the whole
// signal.
func integratedLoudness(signal []float64, rate float64) (float64, error) {
	meter, err := loudness.NewMeter(rate)
	if err != nil {
		return 0, err
	}
	meter.StartIntegration()
	meter.ProcessBlock(signal)
	return meter.Integrated(), nil
}

func writeWAV(path string, samples []float64, rate, bitDepth int) error {
	q, err := dither.New(bitDepth)
	if err != nil {
		return err
	}
	ints := make([]int, len(samples))
	for i, v := range samples {
		ints[i] = q.ProcessInteger(v)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%s: encode: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%s: finalize: %w", path, err)
	}
	return nil
}

func defaultOutPath(in string) string {
	ext := filepath.Ext(in)
	if ext == "" {
		ext = ".wav"
	}
	return strings.TrimSuffix(in, ext) + "-enhanced" + ext
}
