package design

import (
	"errors"
	"fmt"
	"math"

	"github.com/LoganthP/EarVan/dsp/filter/biquad"
)

// ErrInvalidParams is returned when filter parameters are out of range.
var ErrInvalidParams = errors.New("design: invalid parameters")

// Highpass designs a highpass biquad at freq (Hz) with quality factor q.
func Highpass(freq, q, sampleRate float64) (biquad.Coefficients, error) {
	w0, err := normalizedW0(freq, sampleRate)
	if err != nil {
		return biquad.Coefficients{}, err
	}
	if err := validateQ(q); err != nil {
		return biquad.Coefficients{}, err
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := (1 + cw) / 2
	b1 := -(1 + cw)
	b2 := (1 + cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// Peak designs a peaking-EQ biquad with gain in dB. Zero gain yields
// passthrough coefficients.
func Peak(freq, gainDB, q, sampleRate float64) (biquad.Coefficients, error) {
	w0, err := normalizedW0(freq, sampleRate)
	if err != nil {
		return biquad.Coefficients{}, err
	}
	if err := validateQ(q); err != nil {
		return biquad.Coefficients{}, err
	}
	if math.IsNaN(gainDB) || math.IsInf(gainDB, 0) {
		return biquad.Coefficients{}, fmt.Errorf("%w: gain %f dB is not finite", ErrInvalidParams, gainDB)
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)

	b0 := 1 + alpha*a
	b1 := -2 * cw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw
	a2 := 1 - alpha/a

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

// HighShelf designs a high-shelf biquad with shelf gain in dB above
// the corner frequency.
func HighShelf(freq, gainDB, q, sampleRate float64) (biquad.Coefficients, error) {
	w0, err := normalizedW0(freq, sampleRate)
	if err != nil {
		return biquad.Coefficients{}, err
	}
	if err := validateQ(q); err != nil {
		return biquad.Coefficients{}, err
	}
	if math.IsNaN(gainDB) || math.IsInf(gainDB, 0) {
		return biquad.Coefficients{}, fmt.Errorf("%w: gain %f dB is not finite", ErrInvalidParams, gainDB)
	}

	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)
	a := math.Pow(10, gainDB/40)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cw + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cw)
	b2 := a * ((a + 1) + (a-1)*cw - beta)
	a0 := (a + 1) - (a-1)*cw + beta
	a1 := 2 * ((a - 1) - (a+1)*cw)
	a2 := (a + 1) - (a-1)*cw - beta

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

func normalizedW0(freq, sampleRate float64) (float64, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, fmt.Errorf("%w: sample rate %f must be positive and finite", ErrInvalidParams, sampleRate)
	}

	nyquist := sampleRate / 2
	if freq <= 0 || freq >= nyquist || math.IsNaN(freq) {
		return 0, fmt.Errorf("%w: frequency %f Hz outside (0, %f)", ErrInvalidParams, freq, nyquist)
	}

	return 2 * math.Pi * freq / sampleRate, nil
}

func validateQ(q float64) error {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return fmt.Errorf("%w: Q %f must be positive and finite", ErrInvalidParams, q)
	}

	return nil
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) (biquad.Coefficients, error) {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return biquad.Coefficients{}, fmt.Errorf("%w: degenerate denominator a0=%f", ErrInvalidParams, a0)
	}

	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}, nil
}
