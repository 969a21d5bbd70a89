// Package spectrum provides frequency-domain analysis for audio streams.
//
// The central type is Analyzer, a streaming FFT analyzer that accepts
// sample blocks of any size, assembles overlapping windowed frames, and
// maintains an exponentially smoothed magnitude spectrum. Output frames
// are normalized to [0, 1] through a configurable decibel window so they
// can drive meters and spectrum displays directly.
//
// The package also exposes the underlying magnitude and power conversions
// as free functions for callers that run their own transforms.
//
// All hot-path operations are allocation-free after construction.
package spectrum
