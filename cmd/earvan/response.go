package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/LoganthP/EarVan/enhance"
)

// ResponseCmd prints the target magnitude response of the high-pass
// and EQ stages for a profile/mode pair, without touching any audio
// device.
type ResponseCmd struct {
	Profile string  `default:"flat" help:"Hearing profile (see 'earvan profiles')."`
	Mode    string  `default:"conversation" enum:"quiet,conversation,noisy" help:"Environment preset."`
	Rate    float64 `default:"48000" help:"Sample rate the response is evaluated at."`
}

func (c *ResponseCmd) Run() error {
	prof, err := profileByName(c.Profile)
	if err != nil {
		return err
	}
	mode, err := enhance.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	eng, err := enhance.New(enhance.WithSampleRate(c.Rate))
	if err != nil {
		return err
	}
	defer eng.Destroy()
	if err := eng.SetProfile(prof); err != nil {
		return err
	}
	if err := eng.SetMode(mode); err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("EarVan") + " " +
		keyStyle.Render(fmt.Sprintf("response of %q in %s mode", prof.Name, mode)))

	const points = 48
	hi := 16000.0
	if limit := c.Rate * 0.45; hi > limit {
		hi = limit
	}
	freqs := logSpacedFreqs(40, hi, points)
	curve := make([]float64, points)
	eng.ResponseCurveDB(freqs, curve)
	fmt.Printf(" 40Hz %s %.1fkHz\n", valueStyle.Render(renderCurve(curve)), hi/1000)

	bandFreqs := make([]float64, enhance.NumBands)
	for i, hz := range enhance.CanonicalBands {
		bandFreqs[i] = float64(hz)
	}
	bandDB := make([]float64, enhance.NumBands)
	eng.ResponseCurveDB(bandFreqs, bandDB)
	for i, hz := range enhance.CanonicalBands {
		fmt.Printf(" %5s  %+6.1f dB\n", formatBand(hz), bandDB[i])
	}
	return nil
}

// logSpacedFreqs returns n frequencies from lo to hi, evenly spaced on
// a log scale.
func logSpacedFreqs(lo, hi float64, n int) []float64 {
	freqs := make([]float64, n)
	ratio := hi / lo
	for i := range freqs {
		freqs[i] = lo * math.Pow(ratio, float64(i)/float64(n-1))
	}
	return freqs
}

// renderCurve maps dB values onto glyph heights over a ±24 dB window.
func renderCurve(db []float64) string {
	glyphs := []rune("▁▂▃▄▅▆▇█")
	var b strings.Builder
	for _, v := range db {
		frac := (v + 24) / 48
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		idx := int(frac * float64(len(glyphs)-1))
		b.WriteRune(glyphs[idx])
	}
	return b.String()
}
