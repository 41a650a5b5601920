// ABOUTME: Tests for the voice bank
// ABOUTME: Covers triggering, in-block offsets, clip playback, and all-off

package host

import (
	"math"
	"testing"

	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

func noteEvent(t *testing.T, data interface{}) engine.AudioEvent {
	t.Helper()
	event, err := engine.NewEvent(EventNoteOn, 0, 0, data)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	return event
}

func TestSineVoiceProducesSound(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.5, Duration: 1000}), 0)

	dst := make([]float64, 128)
	bank.render(dst)

	energy := 0.0
	for _, s := range dst {
		energy += s * s
	}
	if energy == 0 {
		t.Error("expected non-silent output")
	}
}

func TestVoiceDelayKeepsOnsetSampleAccurate(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.5, Duration: 1000}), 32)

	dst := make([]float64, 128)
	bank.render(dst)

	for i := 0; i < 32; i++ {
		if dst[i] != 0 {
			t.Fatalf("expected silence before sample 32, got %f at %d", dst[i], i)
		}
	}
	// Sine starts at phase 0; the first audible sample is index 33.
	sounding := false
	for i := 33; i < 64; i++ {
		if dst[i] != 0 {
			sounding = true
			break
		}
	}
	if !sounding {
		t.Error("expected sound after the delay")
	}
}

func TestVoiceDelaySpanningBlocks(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.5, Duration: 1000}), 200)

	first := make([]float64, 128)
	bank.render(first)
	for i, s := range first {
		if s != 0 {
			t.Fatalf("expected silent first block, got %f at %d", s, i)
		}
	}

	second := make([]float64, 128)
	bank.render(second)
	// Remaining delay is 72 samples into the second block.
	for i := 0; i < 72; i++ {
		if second[i] != 0 {
			t.Fatalf("expected silence before sample 72, got %f at %d", second[i], i)
		}
	}
}

func TestSineVoiceEndsAfterDuration(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.5, Duration: 64}), 0)

	dst := make([]float64, 128)
	bank.render(dst)

	if bank.active() != 0 {
		t.Errorf("expected voice to finish, %d active", bank.active())
	}
	for i := 64; i < 128; i++ {
		if dst[i] != 0 {
			t.Fatalf("expected silence after duration, got %f at %d", dst[i], i)
		}
	}
}

func TestClipVoicePlaysSamples(t *testing.T) {
	bank := newVoiceBank(44100)
	samples := []float64{0.1, 0.2, 0.3}

	event, err := engine.NewEvent(EventClipStart, 0, 0, ClipData{Samples: samples})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	bank.trigger(event, 0)

	dst := make([]float64, 8)
	bank.render(dst)

	for i, want := range samples {
		if math.Abs(dst[i]-want) > 1e-12 {
			t.Errorf("dst[%d] = %f, want %f", i, dst[i], want)
		}
	}
	if dst[3] != 0 {
		t.Errorf("expected silence after clip end, got %f", dst[3])
	}
	if bank.active() != 0 {
		t.Error("expected clip voice to finish")
	}
}

func TestAllOffSilencesEverything(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.5}), 0)
	bank.trigger(noteEvent(t, NoteData{Freq: 880, Amp: 0.5}), 0)

	if bank.active() != 2 {
		t.Fatalf("expected 2 active voices, got %d", bank.active())
	}

	off, err := engine.NewEvent(EventAllOff, 0, 0, nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	bank.trigger(off, 0)

	if bank.active() != 0 {
		t.Errorf("expected 0 active voices, got %d", bank.active())
	}
}

func TestBankExhaustionDropsExtraVoices(t *testing.T) {
	bank := newVoiceBank(44100)
	for i := 0; i < maxVoices+5; i++ {
		bank.trigger(noteEvent(t, NoteData{Freq: 440, Amp: 0.1}), 0)
	}

	if bank.active() != maxVoices {
		t.Errorf("expected %d active voices, got %d", maxVoices, bank.active())
	}
}

func TestNoteFromParamsMap(t *testing.T) {
	bank := newVoiceBank(48000)

	note, ok := bank.noteFromEvent(noteEvent(t, map[string]float64{
		"freq":        220,
		"amp":         0.25,
		"duration_ms": 1000,
	}))
	if !ok {
		t.Fatal("expected params map to parse")
	}
	if note.Freq != 220 || note.Amp != 0.25 {
		t.Errorf("note = %+v", note)
	}
	if note.Duration != 48000 {
		t.Errorf("Duration = %d, want 48000", note.Duration)
	}
}

func TestInvalidNotePayloadIgnored(t *testing.T) {
	bank := newVoiceBank(44100)
	bank.trigger(noteEvent(t, "not a note"), 0)
	bank.trigger(noteEvent(t, map[string]float64{"amp": 0.5}), 0)

	if bank.active() != 0 {
		t.Errorf("expected no voices for bad payloads, got %d", bank.active())
	}
}
