// Package biquad provides biquad (second-order IIR) filter runtime primitives.
//
// A [Section] implements Direct Form II Transposed processing for a single
// second-order section defined by [Coefficients]. Multiple sections can be
// cascaded via [Chain]; the enhancement pipeline runs its parametric bands
// as one cascade. Sections retune in place: swapping coefficients keeps the
// delay-line state so a running filter can follow parameter ramps without
// output discontinuities.
//
// This package provides the processing runtime only. Coefficient design
// (high-pass, peaking EQ) lives in dsp/filter/design.
package biquad
