// ABOUTME: Fixed-slot voice bank for render-thread synthesis
// ABOUTME: Maps delivered events onto sine and clip voices without allocating

package host

import (
	"math"

	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

const maxVoices = 32

// EventNoteOn starts a sine voice. Data may be a NoteData or a
// map[string]float64 with "freq", "amp", and "duration_ms" keys (the
// shape remote controllers send).
const EventNoteOn = "note-on"

// EventClipStart plays a pre-decoded clip. Data must be a ClipData.
const EventClipStart = "clip-start"

// EventAllOff silences every active voice.
const EventAllOff = "all-off"

// NoteData parameterizes a note-on event.
type NoteData struct {
	Freq     float64
	Amp      float64
	Duration int64 // samples; <= 0 means until all-off
}

// ClipData parameterizes a clip-start event. Samples must be mono at the
// engine sample rate; decode and resample on the control side.
type ClipData struct {
	Samples []float64
	Gain    float64
}

type voiceKind int

const (
	voiceSine voiceKind = iota
	voiceClip
)

// voiceState is one preallocated voice slot. Slots are reused in place;
// nothing here allocates after the bank is built.
type voiceState struct {
	active bool
	kind   voiceKind
	delay  int // samples to skip before the voice sounds, within-block offset

	// sine
	phase     float64
	increment float64
	amp       float64
	remaining int64 // -1 = unbounded

	// clip
	clip     []float64
	position int
	gain     float64
}

// voiceBank renders all active voices additively into the master block.
// Render context only.
type voiceBank struct {
	sampleRate int
	voices     [maxVoices]voiceState
}

func newVoiceBank(sampleRate int) *voiceBank {
	return &voiceBank{sampleRate: sampleRate}
}

// trigger maps a delivered event onto a free voice slot. delay is the
// event's offset into the current block, so onsets stay sample-accurate
// even when the event lands mid-block. Unknown event types and exhausted
// banks are silently ignored; the scheduler already counted the delivery.
func (b *voiceBank) trigger(event engine.AudioEvent, delay int) {
	if delay < 0 {
		delay = 0
	}

	switch event.Type {
	case EventNoteOn:
		note, ok := b.noteFromEvent(event)
		if !ok {
			return
		}
		slot := b.freeSlot()
		if slot == nil {
			return
		}
		slot.active = true
		slot.kind = voiceSine
		slot.delay = delay
		slot.phase = 0
		slot.increment = 2 * math.Pi * note.Freq / float64(b.sampleRate)
		slot.amp = note.Amp
		slot.remaining = note.Duration
		if slot.remaining <= 0 {
			slot.remaining = -1
		}

	case EventClipStart:
		data, ok := event.Data.(ClipData)
		if !ok || len(data.Samples) == 0 {
			return
		}
		slot := b.freeSlot()
		if slot == nil {
			return
		}
		gain := data.Gain
		if gain == 0 {
			gain = 1.0
		}
		slot.active = true
		slot.kind = voiceClip
		slot.delay = delay
		slot.clip = data.Samples
		slot.position = 0
		slot.gain = gain

	case EventAllOff:
		for i := range b.voices {
			b.voices[i].active = false
			b.voices[i].clip = nil
		}
	}
}

func (b *voiceBank) freeSlot() *voiceState {
	for i := range b.voices {
		if !b.voices[i].active {
			return &b.voices[i]
		}
	}
	return nil
}

// active reports how many voices are sounding.
func (b *voiceBank) active() int {
	n := 0
	for i := range b.voices {
		if b.voices[i].active {
			n++
		}
	}
	return n
}

// render adds every active voice into dst.
func (b *voiceBank) render(dst []float64) {
	for i := range b.voices {
		v := &b.voices[i]
		if !v.active {
			continue
		}

		start := 0
		if v.delay > 0 {
			start = v.delay
			if start >= len(dst) {
				v.delay -= len(dst)
				continue
			}
			v.delay = 0
		}

		switch v.kind {
		case voiceSine:
			v.renderSine(dst[start:])
		case voiceClip:
			v.renderClip(dst[start:])
		}
	}
}

func (v *voiceState) renderSine(dst []float64) {
	for i := range dst {
		if v.remaining == 0 {
			v.active = false
			return
		}
		dst[i] += v.amp * math.Sin(v.phase)
		v.phase += v.increment
		if v.phase >= 2*math.Pi {
			v.phase -= 2 * math.Pi
		}
		if v.remaining > 0 {
			v.remaining--
		}
	}
}

func (v *voiceState) renderClip(dst []float64) {
	for i := range dst {
		if v.position >= len(v.clip) {
			v.active = false
			v.clip = nil
			return
		}
		dst[i] += v.gain * v.clip[v.position]
		v.position++
	}
}

// noteFromEvent accepts both native NoteData payloads and the flat
// parameter maps produced by the control protocol.
func (b *voiceBank) noteFromEvent(event engine.AudioEvent) (NoteData, bool) {
	switch data := event.Data.(type) {
	case NoteData:
		if data.Freq <= 0 {
			return NoteData{}, false
		}
		if data.Amp == 0 {
			data.Amp = 0.5
		}
		return data, true
	case map[string]float64:
		note := NoteData{Freq: data["freq"], Amp: data["amp"]}
		if note.Freq <= 0 {
			return NoteData{}, false
		}
		if note.Amp == 0 {
			note.Amp = 0.5
		}
		if ms, ok := data["duration_ms"]; ok && ms > 0 {
			note.Duration = int64(ms / 1000.0 * float64(b.sampleRate))
		}
		return note, true
	default:
		return NoteData{}, false
	}
}
