// ABOUTME: Tests for the render host
// ABOUTME: Covers block rendering, carry-over, command routing, and stats

package host

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(Config{SampleRate: 44100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func TestReadFillsRequestedBytes(t *testing.T) {
	h := newTestHost(t)

	// Not a multiple of the block size; carry-over must cover the rest.
	p := make([]byte, 1000)
	n, err := h.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 1000 {
		t.Errorf("Read returned %d, want 1000", n)
	}
}

func TestReadAdvancesClockByWholeBlocks(t *testing.T) {
	h := newTestHost(t)
	blockBytes := h.blockSize * bytesPerFrame

	p := make([]byte, blockBytes*3)
	if _, err := h.Read(p); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if got := h.Stats().CurrentSample; got != int64(h.blockSize*3) {
		t.Errorf("CurrentSample = %d, want %d", got, h.blockSize*3)
	}
}

func TestCarryOverPreservesSamples(t *testing.T) {
	h := newTestHost(t)

	event, err := engine.NewEvent(EventClipStart, 0, 0, ClipData{
		Samples: rampClip(h.blockSize),
	})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if err := h.ScheduleEvent(event); err != nil {
		t.Fatalf("ScheduleEvent failed: %v", err)
	}

	// Read the first block in two unaligned pieces and compare against a
	// single contiguous read of a fresh host with the same clip.
	first := make([]byte, 100)
	second := make([]byte, h.blockSize*bytesPerFrame-100)
	h.Read(first)
	h.Read(second)

	ref := newTestHost(t)
	refEvent, _ := engine.NewEvent(EventClipStart, 0, 0, ClipData{
		Samples: rampClip(ref.blockSize),
	})
	ref.ScheduleEvent(refEvent)
	whole := make([]byte, ref.blockSize*bytesPerFrame)
	ref.Read(whole)

	combined := append(append([]byte{}, first...), second...)
	for i := range whole {
		if combined[i] != whole[i] {
			t.Fatalf("byte %d differs: split=%d whole=%d", i, combined[i], whole[i])
		}
	}
}

func TestScheduledNoteRendersAtOffset(t *testing.T) {
	h := newTestHost(t)

	event, err := engine.NewEvent(EventNoteOn, 64, 0, NoteData{Freq: 440, Amp: 0.5, Duration: 1000})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if err := h.ScheduleEvent(event); err != nil {
		t.Fatalf("ScheduleEvent failed: %v", err)
	}

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	// Left channel, first 65 frames must be silent (sine starts at phase 0).
	for frame := 0; frame <= 64; frame++ {
		v := int16(binary.LittleEndian.Uint16(p[frame*4:]))
		if v != 0 {
			t.Fatalf("expected silence at frame %d, got %d", frame, v)
		}
	}
	sounding := false
	for frame := 65; frame < h.blockSize; frame++ {
		if int16(binary.LittleEndian.Uint16(p[frame*4:])) != 0 {
			sounding = true
			break
		}
	}
	if !sounding {
		t.Error("expected sound after the event offset")
	}
}

func TestSeekCommandAppliesBetweenBlocks(t *testing.T) {
	h := newTestHost(t)

	if !h.Seek(44100) {
		t.Fatal("Seek command rejected")
	}

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	want := int64(44100 + h.blockSize)
	if got := h.Stats().CurrentSample; got != want {
		t.Errorf("CurrentSample = %d, want %d", got, want)
	}
}

func TestCancelledEventNeverRenders(t *testing.T) {
	h := newTestHost(t)

	event, err := engine.NewEvent(EventNoteOn, 10, 0, NoteData{Freq: 440, Amp: 0.5})
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	h.ScheduleEvent(event)
	h.CancelEvent(event.ID)

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	for i := 0; i < len(p); i += 2 {
		if int16(binary.LittleEndian.Uint16(p[i:])) != 0 {
			t.Fatal("expected silence for cancelled event")
		}
	}
	if got := h.Stats().Delivered; got != 0 {
		t.Errorf("Delivered = %d, want 0", got)
	}
}

func TestEventRingFullReportsError(t *testing.T) {
	h, err := New(Config{SampleRate: 44100, EventRingSize: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	e1, _ := engine.NewEvent(EventNoteOn, 0, 0, NoteData{Freq: 440})
	e2, _ := engine.NewEvent(EventNoteOn, 0, 0, NoteData{Freq: 440})

	if err := h.ScheduleEvent(e1); err != nil {
		t.Fatalf("first event rejected: %v", err)
	}
	if err := h.ScheduleEvent(e2); err == nil {
		t.Error("expected error when event ring is full")
	}
	if got := h.Stats().DroppedControl; got != 1 {
		t.Errorf("DroppedControl = %d, want 1", got)
	}
}

func TestGainScalesOutput(t *testing.T) {
	h := newTestHost(t)
	h.SetGain(0)

	event, _ := engine.NewEvent(EventNoteOn, 0, 0, NoteData{Freq: 440, Amp: 0.9})
	h.ScheduleEvent(event)

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	for i := 0; i < len(p); i += 2 {
		if int16(binary.LittleEndian.Uint16(p[i:])) != 0 {
			t.Fatal("expected silence at zero gain")
		}
	}
}

func TestWriteStereo16Clips(t *testing.T) {
	dst := make([]byte, 12)
	writeStereo16(dst, []float64{2.0, -2.0, 0.0})

	if v := int16(binary.LittleEndian.Uint16(dst[0:])); v != 32767 {
		t.Errorf("over-range sample = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(dst[4:])); v != -32767 {
		t.Errorf("under-range sample = %d, want -32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(dst[8:])); v != 0 {
		t.Errorf("zero sample = %d, want 0", v)
	}
	// Stereo duplication
	if dst[0] != dst[2] || dst[1] != dst[3] {
		t.Error("expected left and right channels to match")
	}
}

func TestSetPlanDerivesGainStages(t *testing.T) {
	h := newTestHost(t)

	g := engine.NewGraph()
	g.AddNode(engine.Node{ID: "src", Type: engine.NodeSource, Connections: []string{"fx"}})
	g.AddNode(engine.Node{ID: "fx", Type: engine.NodeEffect, Connections: []string{"out"}, Parameters: map[string]float64{"gain": 0.5}})
	g.AddNode(engine.Node{ID: "out", Type: engine.NodeDestination})

	plan, err := engine.NewGraphCompiler().Compile(g)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	h.SetPlan(g, plan)

	if len(h.stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(h.stages))
	}
	if h.stages[1].id != "fx" || h.stages[1].gain != 0.5 {
		t.Errorf("stage[1] = %+v, want fx at 0.5", h.stages[1])
	}
}

func TestConcurrentEventProducersLoseNothing(t *testing.T) {
	h := newTestHost(t)

	// Several control goroutines (controller connections) schedule at
	// once; every accepted event must reach the scheduler.
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				event, err := engine.NewEvent(EventNoteOn, 1<<40, 0, NoteData{Freq: 440})
				if err != nil {
					t.Errorf("NewEvent failed: %v", err)
					return
				}
				if err := h.ScheduleEvent(event); err != nil {
					t.Errorf("ScheduleEvent failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	if got := h.Stats().Scheduled; got != producers*perProducer {
		t.Errorf("Scheduled = %d, want %d", got, producers*perProducer)
	}
}

func TestConcurrentCancelCommandsLoseNothing(t *testing.T) {
	h := newTestHost(t)

	ids := make([]string, 50)
	for i := range ids {
		event, err := engine.NewEvent(EventNoteOn, 1<<40, 0, NoteData{Freq: 440})
		if err != nil {
			t.Fatalf("NewEvent failed: %v", err)
		}
		if err := h.ScheduleEvent(event); err != nil {
			t.Fatalf("ScheduleEvent failed: %v", err)
		}
		ids[i] = event.ID
	}

	// Cancel everything from several goroutines at once. Every accepted
	// cancel must land; a lost command would leave an event pending.
	var wg sync.WaitGroup
	for p := 0; p < 5; p++ {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			for _, id := range chunk {
				if !h.CancelEvent(id) {
					t.Errorf("CancelEvent(%s) rejected", id)
				}
			}
		}(ids[p*10 : (p+1)*10])
	}
	wg.Wait()

	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	if got := h.Stats().Pending; got != 0 {
		t.Errorf("Pending = %d, want 0", got)
	}
}

func TestResizeNotCommittedWhenRingFull(t *testing.T) {
	h := newTestHost(t)

	// Saturate the command ring so the resize command cannot be sent.
	for h.Seek(0) {
	}

	if h.tryResize(256) {
		t.Error("tryResize succeeded with a full command ring")
	}
	if got := h.controller.CurrentSize(); got != 128 {
		t.Errorf("controller size = %d, want 128 (uncommitted)", got)
	}

	// After the render side drains the ring, the retry goes through and
	// both sides agree.
	p := make([]byte, h.blockSize*bytesPerFrame)
	h.Read(p)

	if !h.tryResize(256) {
		t.Fatal("tryResize failed with a drained ring")
	}
	if got := h.controller.CurrentSize(); got != 256 {
		t.Errorf("controller size = %d, want 256", got)
	}

	p = make([]byte, 256*bytesPerFrame)
	h.Read(p)
	if got := h.Stats().BlockSize; got != 256 {
		t.Errorf("render block size = %d, want 256", got)
	}
}

func rampClip(n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(i%100) / 200.0
	}
	return samples
}
