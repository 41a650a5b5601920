// ABOUTME: Tests for the SPSC ring buffer
// ABOUTME: Covers FIFO order, capacity semantics, and the one-writer-one-reader contract

package engine

import (
	"testing"
)

func TestRingBufferFIFO(t *testing.T) {
	rb, err := NewRingBuffer[int](8)
	if err != nil {
		t.Fatalf("NewRingBuffer failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if !rb.Write(i) {
			t.Fatalf("write %d failed unexpectedly", i)
		}
	}

	for i := 0; i < 5; i++ {
		got, ok := rb.Read()
		if !ok {
			t.Fatalf("read %d failed unexpectedly", i)
		}
		if got != i {
			t.Errorf("read %d: got %d, want %d", i, got, i)
		}
	}

	if _, ok := rb.Read(); ok {
		t.Error("expected empty buffer after draining")
	}
}

func TestRingBufferCapacity(t *testing.T) {
	rb, err := NewRingBuffer[string](4)
	if err != nil {
		t.Fatalf("NewRingBuffer failed: %v", err)
	}

	if rb.Cap() != 3 {
		t.Errorf("Cap: got %d, want 3 (one slot sacrificed)", rb.Cap())
	}

	// Usable capacity is capacity-1.
	for i, item := range []string{"a", "b", "c"} {
		if !rb.Write(item) {
			t.Fatalf("write %d failed before buffer was full", i)
		}
	}

	if !rb.IsFull() {
		t.Error("expected full buffer at capacity-1 items")
	}
	if rb.Write("d") {
		t.Error("write succeeded on full buffer")
	}
	if rb.Len() != 3 {
		t.Errorf("Len after failed write: got %d, want 3", rb.Len())
	}

	// A failed write must not disturb FIFO order.
	got, _ := rb.Read()
	if got != "a" {
		t.Errorf("head after failed write: got %q, want %q", got, "a")
	}
}

func TestRingBufferClear(t *testing.T) {
	rb, _ := NewRingBuffer[int](4)

	rb.Write(1)
	rb.Write(2)
	rb.Clear()

	if !rb.IsEmpty() {
		t.Error("expected empty buffer after Clear")
	}

	if !rb.Write(42) {
		t.Fatal("write after Clear failed")
	}
	got, ok := rb.Read()
	if !ok || got != 42 {
		t.Errorf("round-trip after Clear: got (%d, %v), want (42, true)", got, ok)
	}
}

func TestRingBufferBatch(t *testing.T) {
	rb, _ := NewRingBuffer[int](4)

	// Only 3 of 5 fit; batch stops at first failure.
	written := rb.WriteBatch([]int{10, 20, 30, 40, 50})
	if written != 3 {
		t.Errorf("WriteBatch: got %d written, want 3", written)
	}

	dst := make([]int, 2)
	if n := rb.ReadBatch(dst); n != 2 {
		t.Fatalf("ReadBatch: got %d, want 2", n)
	}
	if dst[0] != 10 || dst[1] != 20 {
		t.Errorf("ReadBatch order: got %v, want [10 20]", dst)
	}

	// Partial read when fewer items remain than dst holds.
	dst = make([]int, 4)
	if n := rb.ReadBatch(dst); n != 1 {
		t.Errorf("ReadBatch on near-empty buffer: got %d, want 1", n)
	}
	if dst[0] != 30 {
		t.Errorf("ReadBatch remainder: got %d, want 30", dst[0])
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb, _ := NewRingBuffer[int](4)

	// Cycle enough items through to wrap the indices several times.
	next := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !rb.Write(round*3 + i) {
				t.Fatalf("round %d write %d failed", round, i)
			}
		}
		for i := 0; i < 3; i++ {
			got, ok := rb.Read()
			if !ok || got != next {
				t.Fatalf("round %d: got (%d, %v), want (%d, true)", round, got, ok, next)
			}
			next++
		}
	}
}

func TestRingBufferInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{-1, 0, 1} {
		if _, err := NewRingBuffer[int](capacity); err == nil {
			t.Errorf("capacity %d: expected construction error", capacity)
		}
	}
}

func TestRingBufferSingleProducerSingleConsumer(t *testing.T) {
	rb, _ := NewRingBuffer[int](64)
	const total = 100000

	done := make(chan struct{})

	go func() {
		defer close(done)
		next := 0
		for next < total {
			got, ok := rb.Read()
			if !ok {
				continue
			}
			if got != next {
				t.Errorf("out of order: got %d, want %d", got, next)
				return
			}
			next++
		}
	}()

	for i := 0; i < total; {
		if rb.Write(i) {
			i++
		}
	}

	<-done
}
