// ABOUTME: Lock-free single-producer single-consumer ring buffer
// ABOUTME: The only sanctioned channel across the control/render boundary

package engine

import (
	"fmt"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity FIFO over T for exactly one writer
// goroutine and one reader goroutine. Any other usage is undefined
// behavior; it is not a general MPMC queue and does not try to be.
//
// It uses atomic head/tail index loads and stores only, no mutexes and no
// CAS loops, so neither side ever blocks the other.
//
// Capacity semantics: a buffer created with capacity N holds at most N-1
// live items. One slot is sacrificed so that full and empty are
// distinguishable from the indices alone (head==tail means empty,
// (tail+1)%N==head means full). This is deliberate; do not "fix" the
// off-by-one.
type RingBuffer[T any] struct {
	head atomic.Uint64 // next read index, owned by the reader
	_    [56]byte      // keep head and tail on separate cache lines
	tail atomic.Uint64 // next write index, owned by the writer
	_    [56]byte

	slots    []T
	capacity uint64
}

// NewRingBuffer creates a ring buffer with the given slot count. Usable
// capacity is capacity-1 items. Capacity below 2 is a construction error.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 2 {
		return nil, fmt.Errorf("engine: ring buffer capacity %d too small (need >= 2)", capacity)
	}

	return &RingBuffer[T]{
		slots:    make([]T, capacity),
		capacity: uint64(capacity),
	}, nil
}

// Write appends item if the buffer is not full. Returns false, with the
// buffer unmutated, when full. Producer side only.
func (r *RingBuffer[T]) Write(item T) bool {
	tail := r.tail.Load()
	next := (tail + 1) % r.capacity

	if next == r.head.Load() {
		return false
	}

	r.slots[tail] = item
	r.tail.Store(next)

	return true
}

// WriteBatch writes items in order until the buffer fills, returning how
// many were written. Producer side only.
func (r *RingBuffer[T]) WriteBatch(items []T) int {
	for i, item := range items {
		if !r.Write(item) {
			return i
		}
	}

	return len(items)
}

// Read removes and returns the head item. The second return is false when
// the buffer is empty. Consumer side only.
func (r *RingBuffer[T]) Read() (T, bool) {
	head := r.head.Load()

	if head == r.tail.Load() {
		var zero T
		return zero, false
	}

	item := r.slots[head]
	r.head.Store((head + 1) % r.capacity)

	return item, true
}

// ReadBatch fills dst with up to len(dst) items in FIFO order, removing
// them, and returns the count read. The caller supplies dst so the render
// context can reuse a preallocated slice. Consumer side only.
func (r *RingBuffer[T]) ReadBatch(dst []T) int {
	for i := range dst {
		item, ok := r.Read()
		if !ok {
			return i
		}
		dst[i] = item
	}

	return len(dst)
}

// Clear resets the buffer to empty in O(1) by aligning the read index
// with the write index. Consumer side only.
func (r *RingBuffer[T]) Clear() {
	r.head.Store(r.tail.Load())
}

// Len returns the number of live items.
func (r *RingBuffer[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()

	if tail >= head {
		return int(tail - head)
	}

	return int(r.capacity - head + tail)
}

// Cap returns the usable capacity (slot count minus one).
func (r *RingBuffer[T]) Cap() int {
	return int(r.capacity - 1)
}

// IsEmpty reports whether no items are buffered.
func (r *RingBuffer[T]) IsEmpty() bool {
	return r.head.Load() == r.tail.Load()
}

// IsFull reports whether a Write would fail.
func (r *RingBuffer[T]) IsFull() bool {
	return (r.tail.Load()+1)%r.capacity == r.head.Load()
}
