// Package enhance implements a real-time assistive listening engine: a
// mono chain of master gain, high-pass filter, five-band parametric EQ,
// soft-knee compressor and a spectrum analyzer tap.
//
// The chain's parameters are not set directly. Callers provide a
// HearingProfile and an EnvironmentMode; the resolver combines them into
// a ResolvedParams record, and the signal graph ramps every live
// parameter toward that record with a 50 ms time constant so changes are
// inaudible.
//
// Engine is the public entry point. It owns the lifecycle
// (Uninitialized → Running ⇄ Suspended, → Destroyed), switches the chain
// head between a live source and a built-in deterministic test-noise
// source without disturbing filter state, and exposes consistent
// spectrum snapshots to a concurrent reader.
//
// Concurrency contract: Process is the audio-thread entry and never
// blocks on locks, allocates, or waits; all other methods form the
// control plane and may be called from any goroutine.
package enhance
