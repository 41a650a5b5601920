// ABOUTME: Priority event queue, the scheduling substrate
// ABOUTME: Orders events by priority, then time, then insertion

package engine

import (
	"container/heap"
	"sort"
)

// EventQueue stores timestamped, prioritized events. Pop order is highest
// priority first, then earliest time, then FIFO among exact ties.
//
// Internally the queue keeps the same entries in two heaps: one keyed for
// pop order and one keyed by time, with cancelled/popped entries left as
// tombstones until a heap operation skips past them. The time heap is what
// lets EventsBefore run in time proportional to the number of events it
// removes rather than the queue size, which the scheduler relies on in the
// render context.
//
// The queue itself is not safe for concurrent use; it is designed to be
// owned by one context at a time, with the ring buffer carrying events
// across the boundary.
type EventQueue struct {
	byPriority popOrderHeap
	byTime     timeOrderHeap
	byID       map[string]*queueEntry
	seq        uint64
	live       int

	// Reused by EventsBefore so steady-state calls allocate nothing.
	scratch popSorted
	due     []AudioEvent
}

type queueEntry struct {
	event   AudioEvent
	seq     uint64
	removed bool
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{byID: make(map[string]*queueEntry)}
}

// Insert adds an event to the queue. Event IDs are expected to be unique;
// inserting a duplicate ID keeps both events but only the newer one is
// addressable by Cancel.
func (q *EventQueue) Insert(event AudioEvent) {
	entry := &queueEntry{event: event, seq: q.seq}
	q.seq++

	heap.Push(&q.byPriority, entry)
	heap.Push(&q.byTime, entry)
	q.byID[event.ID] = entry
	q.live++
}

// Pop removes and returns the most urgent event. The second return is
// false when the queue is empty.
func (q *EventQueue) Pop() (AudioEvent, bool) {
	for q.byPriority.Len() > 0 {
		entry := heap.Pop(&q.byPriority).(*queueEntry)
		if entry.removed {
			continue
		}

		q.retire(entry)

		return entry.event, true
	}

	return AudioEvent{}, false
}

// Peek returns the most urgent event without removing it. The second
// return is false when the queue is empty.
func (q *EventQueue) Peek() (AudioEvent, bool) {
	for q.byPriority.Len() > 0 {
		if entry := q.byPriority[0]; !entry.removed {
			return entry.event, true
		}
		heap.Pop(&q.byPriority)
	}

	return AudioEvent{}, false
}

// EventsBefore removes and returns, in pop order, every event with
// Time < t. Events at or after t stay queued. Cost is O(k log n) in the
// number of events removed, and once the internal buffers have grown to
// the working-set size no call allocates, so it is safe on the render
// path. The returned slice is reused by the next call; consume it first.
func (q *EventQueue) EventsBefore(t int64) []AudioEvent {
	q.scratch = q.scratch[:0]

	for q.byTime.Len() > 0 {
		top := q.byTime[0]
		if top.removed {
			heap.Pop(&q.byTime)
			continue
		}
		if top.event.Time >= t {
			break
		}

		heap.Pop(&q.byTime)
		q.retire(top)
		q.scratch = append(q.scratch, top)
	}

	if len(q.scratch) == 0 {
		return nil
	}

	// Re-establish pop order among the removed set.
	sort.Sort(&q.scratch)

	q.due = q.due[:0]
	for _, entry := range q.scratch {
		q.due = append(q.due, entry.event)
	}

	return q.due
}

// Cancel removes the event with the given ID. Returns false if no such
// event is pending; an unknown ID is not an error.
func (q *EventQueue) Cancel(id string) bool {
	entry, ok := q.byID[id]
	if !ok || entry.removed {
		return false
	}

	q.retire(entry)

	return true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return q.live
}

// IsEmpty reports whether no events are pending.
func (q *EventQueue) IsEmpty() bool {
	return q.live == 0
}

// Clear drops all pending events.
func (q *EventQueue) Clear() {
	q.byPriority = nil
	q.byTime = nil
	q.byID = make(map[string]*queueEntry)
	q.live = 0
}

// retire tombstones an entry so both heaps skip it lazily. The ID map is
// only unmapped when it still points at this entry; after a duplicate-ID
// insert it addresses the newer event, which must stay cancellable.
func (q *EventQueue) retire(entry *queueEntry) {
	entry.removed = true
	if q.byID[entry.event.ID] == entry {
		delete(q.byID, entry.event.ID)
	}
	q.live--
}

// popSorted sorts entries by pop order. Pointer receivers keep the
// sort.Interface conversion in EventsBefore allocation-free.
type popSorted []*queueEntry

func (s *popSorted) Len() int           { return len(*s) }
func (s *popSorted) Less(i, j int) bool { return lessPopOrder((*s)[i], (*s)[j]) }
func (s *popSorted) Swap(i, j int)      { (*s)[i], (*s)[j] = (*s)[j], (*s)[i] }

// lessPopOrder is the queue's pop ordering: highest priority first, then
// earliest time, then insertion order.
func lessPopOrder(a, b *queueEntry) bool {
	if a.event.Priority != b.event.Priority {
		return a.event.Priority > b.event.Priority
	}
	if a.event.Time != b.event.Time {
		return a.event.Time < b.event.Time
	}
	return a.seq < b.seq
}

// popOrderHeap implements heap.Interface over pop order.
type popOrderHeap []*queueEntry

func (h popOrderHeap) Len() int           { return len(h) }
func (h popOrderHeap) Less(i, j int) bool { return lessPopOrder(h[i], h[j]) }
func (h popOrderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *popOrderHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueEntry))
}

func (h *popOrderHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// timeOrderHeap implements heap.Interface keyed by event time, with pop
// order breaking ties.
type timeOrderHeap []*queueEntry

func (h timeOrderHeap) Len() int { return len(h) }

func (h timeOrderHeap) Less(i, j int) bool {
	if h[i].event.Time != h[j].event.Time {
		return h[i].event.Time < h[j].event.Time
	}
	return lessPopOrder(h[i], h[j])
}

func (h timeOrderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timeOrderHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueEntry))
}

func (h *timeOrderHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
