// Package buffer provides a lock-free single-producer single-consumer
// ring for float64 samples, bridging an audio device callback to a
// pull-based processing loop without blocking either side.
package buffer

import "sync/atomic"

// Ring is a single-producer single-consumer ring buffer. Exactly one
// goroutine may call Write and one may call Read; neither ever blocks
// or allocates. Capacity is rounded up to a power of two.
type Ring struct {
	buf  []float64
	mask int64

	// head and tail count samples monotonically; buffered = tail - head.
	head    atomic.Int64 // advanced by Read
	tail    atomic.Int64 // advanced by Write
	dropped atomic.Int64
}

// NewRing returns a ring holding at least capacity samples.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring{
		buf:  make([]float64, size),
		mask: int64(size - 1),
	}
}

// Cap returns the ring capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Free returns the number of samples Write can accept without dropping.
func (r *Ring) Free() int {
	return len(r.buf) - r.Len()
}

// Dropped returns the total number of samples discarded by Write
// because the ring was full.
func (r *Ring) Dropped() int64 { return r.dropped.Load() }

// Write copies src into the ring and returns the number of samples
// stored. Samples that do not fit are dropped and counted; buffered
// data is never overwritten.
func (r *Ring) Write(src []float64) int {
	head := r.head.Load()
	tail := r.tail.Load()

	n := len(src)
	if free := len(r.buf) - int(tail-head); n > free {
		r.dropped.Add(int64(n - free))
		n = free
	}
	if n == 0 {
		return 0
	}

	// At most two contiguous spans around the wrap point.
	idx := tail & r.mask
	first := copy(r.buf[idx:], src[:n])
	copy(r.buf, src[first:n])

	r.tail.Store(tail + int64(n))
	return n
}

// Read copies buffered samples into dst in write order and returns the
// number copied, at most min(len(dst), Len()).
func (r *Ring) Read(dst []float64) int {
	head := r.head.Load()
	tail := r.tail.Load()

	n := int(tail - head)
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}

	idx := head & r.mask
	first := copy(dst[:n], r.buf[idx:])
	copy(dst[first:n], r.buf)

	r.head.Store(head + int64(n))
	return n
}

// Reset discards all buffered samples. It is safe to call from the
// consumer side while the producer keeps writing.
func (r *Ring) Reset() {
	r.head.Store(r.tail.Load())
}
