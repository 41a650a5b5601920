// ABOUTME: Control protocol message type definitions
// ABOUTME: JSON vocabulary for remote event injection and transport control

package protocol

// Message is the top-level wrapper for all control messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ControllerHello is sent by a controller to initiate the handshake.
type ControllerHello struct {
	ControllerID string `json:"controller_id"`
	Name         string `json:"name"`
	Version      int    `json:"version"`
}

// EngineHello is the engine's response to controller/hello. It carries
// the scheduling metadata a controller needs to place events safely.
type EngineHello struct {
	EngineID         string `json:"engine_id"`
	Name             string `json:"name"`
	Version          int    `json:"version"`
	SampleRate       int    `json:"sample_rate"`
	LookaheadSamples int64  `json:"lookahead_samples"`
}

// ScheduleEvent asks the engine to schedule a performance event. Time is
// an absolute sample position; the engine echoes the assigned event ID in
// an EventAck so the controller can cancel later.
type ScheduleEvent struct {
	EventType string             `json:"event_type"`
	Time      int64              `json:"time"`
	Priority  int                `json:"priority"`
	Params    map[string]float64 `json:"params,omitempty"`
}

// EventAck confirms a scheduled event.
type EventAck struct {
	EventID string `json:"event_id"`
	Time    int64  `json:"time"`
}

// CancelEvent asks the engine to remove a pending event by ID.
type CancelEvent struct {
	EventID string `json:"event_id"`
}

// CancelAck reports whether the cancel request was accepted for the
// render thread. Acceptance does not guarantee the event was still
// pending when the request landed.
type CancelAck struct {
	EventID   string `json:"event_id"`
	Cancelled bool   `json:"cancelled"`
}

// Seek repositions the engine's render clock.
type Seek struct {
	Position int64 `json:"position"`
}

// EngineStats is pushed periodically to connected controllers.
type EngineStats struct {
	CurrentSample int64   `json:"current_sample"`
	BufferSize    int     `json:"buffer_size"`
	AverageLoad   float64 `json:"average_load"`
	PeakLoad      float64 `json:"peak_load"`
	Underruns     int64   `json:"underruns"`
	Scheduled     int64   `json:"scheduled"`
	Delivered     int64   `json:"delivered"`
	Missed        int64   `json:"missed"`
	Pending       int     `json:"pending"`
}
