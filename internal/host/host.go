// ABOUTME: Render host binding the engine core to a pull-based audio callback
// ABOUTME: Owns the control rings, scheduler, controller, and voice bank

package host

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tonewheel-Audio/tonewheel-go/pkg/dsp"
	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

const bytesPerFrame = 4 // stereo, 16-bit

// Config holds host configuration. Zero fields take defaults.
type Config struct {
	SampleRate    int     // default 44100
	LookaheadMs   float64 // default 10
	EventRingSize int     // default 1024
	Controller    engine.ControllerConfig
}

// commandKind selects a render-side command.
type commandKind int

const (
	cmdResize commandKind = iota
	cmdSeek
	cmdCancel
	cmdClear
)

// command crosses the control/render boundary via its own ring so state
// changes land strictly between blocks.
type command struct {
	kind     commandKind
	size     int
	position int64
	eventID  string
}

// Host drives the engine core from a host render callback. It implements
// io.Reader so a pull-based output (oto) can clock it: every Read renders
// whole blocks at the current block size.
//
// Exactly one goroutine may call Read (the render context). All other
// methods are control-context and communicate with the render side only
// through the event and command rings. Control methods are safe to call
// from multiple goroutines: the rings are single-producer, so writeMu
// serializes the producer side (the governor, every controller
// connection). The render-side reader never takes the lock.
type Host struct {
	sampleRate int

	scheduler  *engine.Scheduler
	controller *engine.BufferController
	events     *engine.RingBuffer[engine.AudioEvent]
	commands   *engine.RingBuffer[command]
	voices     *voiceBank

	writeMu sync.Mutex

	stages []renderStage

	// Render-side state, untouched by control goroutines.
	blockSize    int
	master       []float64
	eventScratch []engine.AudioEvent
	carry        []byte
	carryLen     int

	// Control-readable snapshots published by the render side.
	statCurrentSample atomic.Int64
	statBlockSize     atomic.Int64
	statScheduled     atomic.Int64
	statDelivered     atomic.Int64
	statMissed        atomic.Int64
	statPending       atomic.Int64

	droppedControl atomic.Int64
	gain           atomic.Uint64 // float64 bits
}

// renderStage is one graph node's contribution to the render pass. The
// engine core supplies ordering only; the host applies the node gains.
type renderStage struct {
	id   string
	gain float64
}

// Stats is a control-side snapshot of engine activity.
type Stats struct {
	CurrentSample  int64
	BlockSize      int
	Scheduled      int64
	Delivered      int64
	Missed         int64
	Pending        int
	Underruns      int64
	AverageLoad    float64
	PeakLoad       float64
	Adjustments    int64
	DroppedControl int64
}

// New creates a host.
func New(cfg Config) (*Host, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.LookaheadMs == 0 {
		cfg.LookaheadMs = 10
	}
	if cfg.EventRingSize == 0 {
		cfg.EventRingSize = 1024
	}

	scheduler, err := engine.NewScheduler(cfg.SampleRate, cfg.LookaheadMs)
	if err != nil {
		return nil, err
	}

	controller, err := engine.NewBufferControllerConfig(cfg.Controller)
	if err != nil {
		return nil, err
	}

	events, err := engine.NewRingBuffer[engine.AudioEvent](cfg.EventRingSize)
	if err != nil {
		return nil, err
	}

	commands, err := engine.NewRingBuffer[command](64)
	if err != nil {
		return nil, err
	}

	maxBlock := controller.Stats().CurrentSize
	if max := controllerMax(cfg.Controller); max > maxBlock {
		maxBlock = max
	}

	h := &Host{
		sampleRate:   cfg.SampleRate,
		scheduler:    scheduler,
		controller:   controller,
		events:       events,
		commands:     commands,
		voices:       newVoiceBank(cfg.SampleRate),
		blockSize:    controller.CurrentSize(),
		master:       make([]float64, maxBlock),
		eventScratch: make([]engine.AudioEvent, 256),
		carry:        make([]byte, maxBlock*bytesPerFrame),
	}
	h.gain.Store(floatBits(1.0))
	h.statBlockSize.Store(int64(h.blockSize))

	return h, nil
}

func controllerMax(cfg engine.ControllerConfig) int {
	if cfg.MaxSize != 0 {
		return cfg.MaxSize
	}
	return 2048
}

// SetPlan installs a compiled graph. The host derives one gain stage per
// node in execution order; nodes without a gain parameter pass through.
// Control context; call before starting playback or between sessions.
func (h *Host) SetPlan(g *engine.Graph, plan engine.CompiledGraph) {
	stages := make([]renderStage, 0, len(plan.ExecutionOrder))
	for _, id := range plan.ExecutionOrder {
		node, ok := g.Node(id)
		if !ok {
			continue
		}
		gain := 1.0
		if v, ok := node.Parameters["gain"]; ok {
			gain = v
		}
		stages = append(stages, renderStage{id: id, gain: gain})
	}
	h.stages = stages
}

// ScheduleEvent hands an event to the render side. Returns an error when
// the control ring is full; the event is not queued and the caller may
// retry later.
func (h *Host) ScheduleEvent(event engine.AudioEvent) error {
	h.writeMu.Lock()
	ok := h.events.Write(event)
	h.writeMu.Unlock()

	if !ok {
		h.droppedControl.Add(1)
		return fmt.Errorf("host: event ring full, %q dropped", event.ID)
	}
	return nil
}

// CancelEvent requests best-effort removal of a pending event. The
// request crosses to the render thread asynchronously; a false return
// means the command ring was full and nothing was sent.
func (h *Host) CancelEvent(id string) bool {
	return h.writeCommand(command{kind: cmdCancel, eventID: id})
}

// Seek repositions the render clock between blocks.
func (h *Host) Seek(position int64) bool {
	return h.writeCommand(command{kind: cmdSeek, position: position})
}

// ClearPending drops all scheduled events between blocks.
func (h *Host) ClearPending() bool {
	return h.writeCommand(command{kind: cmdClear})
}

// writeCommand is the single producer path onto the command ring.
func (h *Host) writeCommand(cmd command) bool {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.commands.Write(cmd)
}

// SetGain sets the master output gain (control context).
func (h *Host) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	h.gain.Store(floatBits(gain))
}

// SampleRate returns the configured sample rate.
func (h *Host) SampleRate() int {
	return h.sampleRate
}

// LookaheadSamples returns the scheduler's advisory horizon.
func (h *Host) LookaheadSamples() int64 {
	return h.scheduler.LookaheadSamples()
}

// Controller exposes the buffer controller for the governor loop.
func (h *Host) Controller() *engine.BufferController {
	return h.controller
}

// Stats assembles a control-side snapshot.
func (h *Host) Stats() Stats {
	cs := h.controller.Stats()

	return Stats{
		CurrentSample:  h.statCurrentSample.Load(),
		BlockSize:      int(h.statBlockSize.Load()),
		Scheduled:      h.statScheduled.Load(),
		Delivered:      h.statDelivered.Load(),
		Missed:         h.statMissed.Load(),
		Pending:        int(h.statPending.Load()),
		Underruns:      cs.Underruns,
		AverageLoad:    cs.AverageLoad,
		PeakLoad:       cs.PeakLoad,
		Adjustments:    cs.Adjustments,
		DroppedControl: h.droppedControl.Load(),
	}
}

// Governor polls the controller and commits recommended block sizes.
// Control context; run it as a goroutine alongside playback.
func (h *Host) Governor(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if size := h.controller.ShouldAdjustSize(); size != 0 {
				h.tryResize(size)
			}
		}
	}
}

// tryResize sends a resize command and commits it to the controller.
// The command goes out first: if the ring is full nothing is committed,
// so the controller's size never diverges from the render-side block
// size, and the governor simply retries on its next tick.
func (h *Host) tryResize(size int) bool {
	if !h.writeCommand(command{kind: cmdResize, size: size}) {
		return false
	}
	if err := h.controller.ApplyBufferSize(size); err != nil {
		return false
	}
	return true
}

// Read renders audio for the output device. Render context: the single
// reader of both rings and the only goroutine touching the scheduler.
func (h *Host) Read(p []byte) (int, error) {
	n := 0

	// Flush any partial block left over from the previous Read.
	if h.carryLen > 0 {
		copied := copy(p, h.carry[:h.carryLen])
		copy(h.carry, h.carry[copied:h.carryLen])
		h.carryLen -= copied
		n += copied
	}

	for n < len(p) {
		block := h.renderBlock()

		copied := copy(p[n:], block)
		n += copied
		if copied < len(block) {
			h.carryLen = copy(h.carry, block[copied:])
		}
	}

	return n, nil
}

// renderBlock produces one block at the current block size and returns
// its interleaved 16-bit stereo bytes. Runs on the render goroutine; no
// allocation, no locks.
func (h *Host) renderBlock() []byte {
	start := time.Now()

	// Drain control-side events into the scheduler before commands so a
	// cancel sent after a schedule can still find its target.
	for {
		count := h.events.ReadBatch(h.eventScratch)
		for _, event := range h.eventScratch[:count] {
			h.scheduler.ScheduleEvent(event)
		}
		if count < len(h.eventScratch) {
			break
		}
	}

	h.applyCommands()

	blockStart := h.scheduler.CurrentSample()
	due := h.scheduler.Process(h.blockSize)
	for _, event := range due {
		h.voices.trigger(event, int(event.Time-blockStart))
	}

	master := h.master[:h.blockSize]
	dsp.Clear(master)
	h.voices.render(master)

	for _, stage := range h.stages {
		if stage.gain != 1.0 {
			dsp.MultiplyScalar(master, stage.gain)
		}
	}
	if gain := floatFromBits(h.gain.Load()); gain != 1.0 {
		dsp.MultiplyScalar(master, gain)
	}

	out := h.carry[:h.blockSize*bytesPerFrame]
	writeStereo16(out, master)

	// Load is render time over the block's real-time budget.
	period := time.Duration(h.blockSize) * time.Second / time.Duration(h.sampleRate)
	load := float64(time.Since(start)) / float64(period)
	h.controller.RecordLoad(load)
	if load > 1.0 {
		h.controller.RecordUnderrun()
	}

	h.publishStats()

	return out
}

// applyCommands drains the command ring at a block boundary. Size changes
// therefore never land mid-block.
func (h *Host) applyCommands() {
	for {
		cmd, ok := h.commands.Read()
		if !ok {
			return
		}

		switch cmd.kind {
		case cmdResize:
			if cmd.size > 0 && cmd.size <= len(h.master) {
				h.blockSize = cmd.size
			}
		case cmdSeek:
			h.scheduler.Seek(cmd.position)
		case cmdCancel:
			h.scheduler.CancelEvent(cmd.eventID)
		case cmdClear:
			h.scheduler.Clear()
		}
	}
}

func (h *Host) publishStats() {
	stats := h.scheduler.Stats()
	h.statCurrentSample.Store(h.scheduler.CurrentSample())
	h.statBlockSize.Store(int64(h.blockSize))
	h.statScheduled.Store(stats.Scheduled)
	h.statDelivered.Store(stats.Delivered)
	h.statMissed.Store(stats.Missed)
	h.statPending.Store(int64(h.scheduler.Pending()))
}

// writeStereo16 converts a mono float64 block to interleaved 16-bit
// stereo little-endian bytes with clipping.
func writeStereo16(dst []byte, src []float64) {
	for i, sample := range src {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		value := uint16(int16(sample * 32767))
		binary.LittleEndian.PutUint16(dst[i*4:], value)
		binary.LittleEndian.PutUint16(dst[i*4+2:], value)
	}
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func floatFromBits(b uint64) float64 {
	return math.Float64frombits(b)
}
