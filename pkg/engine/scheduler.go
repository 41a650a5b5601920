// ABOUTME: Sample-accurate event scheduler
// ABOUTME: Tracks the render clock and releases events due each block

package engine

import (
	"fmt"
)

// Scheduler wraps an EventQueue with a "current rendered sample" clock.
// Each Process call answers "which events are due this block?" and then
// advances the clock by exactly the block size, whether or not anything
// was due; the clock tracks render position, not event traffic.
type Scheduler struct {
	queue            *EventQueue
	sampleRate       int
	lookaheadSamples int64
	currentSample    int64

	stats SchedulerStats
}

// SchedulerStats tracks scheduler metrics.
type SchedulerStats struct {
	Scheduled int64 // events accepted
	Delivered int64 // events released inside their block window
	Missed    int64 // events whose time was already behind the clock
}

// NewScheduler creates a scheduler. lookaheadMs sets the advisory horizon
// within which callers may safely prepare time-critical state; the
// scheduler imposes no additional buffering on top of it.
func NewScheduler(sampleRate int, lookaheadMs float64) (*Scheduler, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("engine: invalid sample rate %d", sampleRate)
	}
	if lookaheadMs < 0 {
		return nil, fmt.Errorf("engine: negative lookahead %.1fms", lookaheadMs)
	}

	return &Scheduler{
		queue:            NewEventQueue(),
		sampleRate:       sampleRate,
		lookaheadSamples: int64(float64(sampleRate) * lookaheadMs / 1000.0),
	}, nil
}

// ScheduleEvent inserts an event; Time is an absolute sample position.
func (s *Scheduler) ScheduleEvent(event AudioEvent) {
	s.queue.Insert(event)
	s.stats.Scheduled++
}

// Process returns and removes every event due in
// [currentSample, currentSample+bufferSize), in queue pop order, then
// advances the clock by bufferSize. Events already behind the clock are
// removed and counted as missed, never delivered late. Runs in time
// bounded by the number of events it removes and allocates nothing at
// steady state. The returned slice is reused by the next Process call;
// consume it before then.
func (s *Scheduler) Process(bufferSize int) []AudioEvent {
	if bufferSize <= 0 {
		return nil
	}

	blockEnd := s.currentSample + int64(bufferSize)
	due := s.queue.EventsBefore(blockEnd)

	// Drop events whose time the clock has already passed (a backward
	// Seek cannot resurrect them, and a forward Seek strands them).
	n := 0
	for _, event := range due {
		if event.Time < s.currentSample {
			s.stats.Missed++
			continue
		}
		due[n] = event
		n++
	}
	due = due[:n]

	s.stats.Delivered += int64(n)
	s.currentSample = blockEnd

	return due
}

// CancelEvent removes a pending event by ID. Returns false when no such
// event is pending.
func (s *Scheduler) CancelEvent(id string) bool {
	return s.queue.Cancel(id)
}

// Seek repositions the clock. It never un-delivers already-returned
// events and never purges still-pending ones; an event the clock jumps
// past simply never fires unless rescheduled. Negative positions clamp
// to zero.
func (s *Scheduler) Seek(position int64) {
	if position < 0 {
		position = 0
	}
	s.currentSample = position
}

// Clear drops all pending events. The clock is untouched.
func (s *Scheduler) Clear() {
	s.queue.Clear()
}

// CurrentSample returns the render clock position.
func (s *Scheduler) CurrentSample() int64 {
	return s.currentSample
}

// LookaheadSamples returns the advisory preparation horizon in samples.
func (s *Scheduler) LookaheadSamples() int64 {
	return s.lookaheadSamples
}

// SampleRate returns the configured sample rate.
func (s *Scheduler) SampleRate() int {
	return s.sampleRate
}

// Pending returns the number of scheduled events not yet released.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}
