// ABOUTME: AudioEvent record and constructors
// ABOUTME: Plain, behavior-free event passed between control and render

package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// AudioEvent is a timed, prioritized performance event. It is a plain
// record constructible by any upstream producer (MIDI parser, automation
// engine, project loader) and is immutable once enqueued.
type AudioEvent struct {
	// ID uniquely identifies the event for cancellation.
	ID string

	// Type is an opaque tag interpreted by the consumer (e.g. "note-on").
	Type string

	// Time is the absolute sample position at which the event is due.
	Time int64

	// Priority orders events within a block; higher is more urgent.
	Priority int

	// Data is an opaque payload handed to the synthesis collaborator.
	Data any
}

// NewEvent builds an AudioEvent with a fresh unique ID. Returns an error
// for a negative time, which is a caller error detected in the control
// context.
func NewEvent(eventType string, time int64, priority int, data any) (AudioEvent, error) {
	if time < 0 {
		return AudioEvent{}, fmt.Errorf("engine: negative event time %d", time)
	}

	return AudioEvent{
		ID:       uuid.New().String(),
		Type:     eventType,
		Time:     time,
		Priority: priority,
		Data:     data,
	}, nil
}
