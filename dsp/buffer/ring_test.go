package buffer

import (
	"runtime"
	"testing"
)

func TestNewRingRoundsCapacity(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -3, want: 1},
		{in: 0, want: 1},
		{in: 1, want: 1},
		{in: 2, want: 2},
		{in: 3, want: 4},
		{in: 500, want: 512},
		{in: 4096, want: 4096},
	}
	for _, tt := range tests {
		if got := NewRing(tt.in).Cap(); got != tt.want {
			t.Errorf("NewRing(%d).Cap() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRingRoundTrip(t *testing.T) {
	r := NewRing(16)

	src := []float64{1, 2, 3, 4, 5}
	if n := r.Write(src); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}

	dst := make([]float64, 5)
	if n := r.Read(dst); n != 5 {
		t.Fatalf("Read = %d, want 5", n)
	}
	for i, v := range dst {
		if v != src[i] {
			t.Fatalf("dst[%d] = %v, want %v", i, v, src[i])
		}
	}
	if r.Len() != 0 {
		t.Fatalf("Len() after drain = %d, want 0", r.Len())
	}
}

func TestRingWrapAroundKeepsOrder(t *testing.T) {
	r := NewRing(8)

	write := func(vals ...float64) {
		t.Helper()
		if n := r.Write(vals); n != len(vals) {
			t.Fatalf("Write = %d, want %d", n, len(vals))
		}
	}

	write(0, 1, 2, 3, 4, 5)
	got := make([]float64, 4)
	if n := r.Read(got); n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}
	write(6, 7, 8, 9, 10) // crosses the wrap point

	rest := make([]float64, 8)
	n := r.Read(rest)
	if n != 7 {
		t.Fatalf("Read = %d, want 7", n)
	}
	for i, want := range []float64{4, 5, 6, 7, 8, 9, 10} {
		if rest[i] != want {
			t.Fatalf("rest[%d] = %v, want %v", i, rest[i], want)
		}
	}
}

func TestRingDropsNewestWhenFull(t *testing.T) {
	r := NewRing(4)

	if n := r.Write([]float64{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Fatalf("Write = %d, want 4", n)
	}
	if got := r.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}

	dst := make([]float64, 4)
	r.Read(dst)
	for i, want := range []float64{1, 2, 3, 4} {
		if dst[i] != want {
			t.Fatalf("dst[%d] = %v, want %v (oldest samples must survive)", i, dst[i], want)
		}
	}

	// Free again after draining.
	if n := r.Write([]float64{7}); n != 1 {
		t.Fatalf("Write after drain = %d, want 1", n)
	}
}

func TestRingPartialRead(t *testing.T) {
	r := NewRing(8)
	r.Write([]float64{1, 2, 3})

	dst := make([]float64, 8)
	if n := r.Read(dst); n != 3 {
		t.Fatalf("Read = %d, want 3", n)
	}
	if dst[3] != 0 {
		t.Fatalf("dst[3] = %v, want untouched 0", dst[3])
	}
}

func TestRingEmptyOperations(t *testing.T) {
	r := NewRing(8)
	if n := r.Write(nil); n != 0 {
		t.Fatalf("Write(nil) = %d, want 0", n)
	}
	if n := r.Read(nil); n != 0 {
		t.Fatalf("Read(nil) = %d, want 0", n)
	}
	if n := r.Read(make([]float64, 4)); n != 0 {
		t.Fatalf("Read on empty = %d, want 0", n)
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(8)
	r.Write([]float64{1, 2, 3, 4, 5})
	r.Reset()

	if r.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", r.Len())
	}
	if r.Free() != 8 {
		t.Fatalf("Free() after Reset = %d, want 8", r.Free())
	}

	r.Write([]float64{9})
	dst := make([]float64, 1)
	if n := r.Read(dst); n != 1 || dst[0] != 9 {
		t.Fatalf("Read after Reset = %d, %v; want 1, [9]", n, dst)
	}
}

// One producer, one consumer, chunk sizes chosen to cross the wrap
// point constantly. Every sample must arrive exactly once, in order.
func TestRingConcurrentTransfer(t *testing.T) {
	const total = 1 << 16

	r := NewRing(64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		src := make([]float64, total)
		for i := range src {
			src[i] = float64(i)
		}
		for len(src) > 0 {
			chunk := 37
			if chunk > len(src) {
				chunk = len(src)
			}
			n := r.Write(src[:chunk])
			src = src[n:]
			if n == 0 {
				runtime.Gosched()
			}
		}
	}()

	got := make([]float64, 0, total)
	dst := make([]float64, 29)
	for len(got) < total {
		n := r.Read(dst)
		got = append(got, dst[:n]...)
		if n == 0 {
			runtime.Gosched()
		}
	}
	<-done

	if r.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", r.Dropped())
	}
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("sample %d = %v, want %v", i, v, float64(i))
		}
	}
}

func BenchmarkRingWriteRead(b *testing.B) {
	r := NewRing(4096)
	block := make([]float64, 512)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Write(block)
		r.Read(block)
	}
}
