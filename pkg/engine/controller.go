// ABOUTME: Adaptive buffer-size controller with hysteresis
// ABOUTME: Observes render load and underruns, recommends block sizes

package engine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// ControllerConfig tunes the buffer controller. Zero fields take the
// defaults documented on each field.
type ControllerConfig struct {
	// InitialSize is the starting block size in frames (default 128).
	InitialSize int

	// MinSize and MaxSize bound recommendations (defaults 32 and 2048).
	MinSize int
	MaxSize int

	// WindowSize is the rolling load window length (default 64).
	WindowSize int

	// MinSamples is the minimum window fill before any recommendation
	// (default 10).
	MinSamples int

	// UnderrunThreshold is the cumulative underrun count that forces a
	// doubling recommendation (default 3).
	UnderrunThreshold int

	// RaiseAvg and RaisePeak are the load levels that together trigger a
	// doubling recommendation (defaults 0.8 and 0.9).
	RaiseAvg  float64
	RaisePeak float64

	// LowerAvg is the average load below which, over a full window, the
	// controller recommends halving (default 0.3).
	LowerAvg float64

	// Cooldown is the minimum wait between recommendations (default 500ms).
	Cooldown time.Duration

	// Now supplies the current time; defaults to time.Now. Injecting it
	// makes cooldown behavior deterministic in tests.
	Now func() time.Time
}

// BufferController observes per-block render load and underruns and
// recommends block-size changes. It is a recommender, never an actuator:
// the host decides when to call ApplyBufferSize, strictly between blocks.
//
// RecordLoad and RecordUnderrun are O(1), allocation-free, and safe to
// call from the render context. ShouldAdjustSize may be called from
// either context; its cost is bounded by the window length.
type BufferController struct {
	cfg ControllerConfig
	now func() time.Time

	currentSize atomic.Int64
	underruns   atomic.Int64

	// window slots hold float64 bits so the render writer and a control
	// reader never tear a sample.
	window      []atomic.Uint64
	loadCount   atomic.Int64
	lastAdjust  atomic.Int64 // unix nanos; zero means never
	adjustments atomic.Int64
}

// ControllerStats is a snapshot of controller state.
type ControllerStats struct {
	CurrentSize   int
	AverageLoad   float64
	PeakLoad      float64
	WindowSamples int
	Underruns     int64
	Adjustments   int64
}

// NewBufferController creates a controller with default tuning.
func NewBufferController() *BufferController {
	c, err := NewBufferControllerConfig(ControllerConfig{})
	if err != nil {
		// Defaults are valid by construction.
		panic(err)
	}
	return c
}

// NewBufferControllerConfig creates a controller with explicit tuning.
// Sizes must be powers of two with MinSize <= InitialSize <= MaxSize.
func NewBufferControllerConfig(cfg ControllerConfig) (*BufferController, error) {
	if cfg.InitialSize == 0 {
		cfg.InitialSize = 128
	}
	if cfg.MinSize == 0 {
		cfg.MinSize = 32
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 2048
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 64
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 10
	}
	if cfg.UnderrunThreshold == 0 {
		cfg.UnderrunThreshold = 3
	}
	if cfg.RaiseAvg == 0 {
		cfg.RaiseAvg = 0.8
	}
	if cfg.RaisePeak == 0 {
		cfg.RaisePeak = 0.9
	}
	if cfg.LowerAvg == 0 {
		cfg.LowerAvg = 0.3
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	for _, size := range []int{cfg.InitialSize, cfg.MinSize, cfg.MaxSize} {
		if size < 1 || size&(size-1) != 0 {
			return nil, fmt.Errorf("engine: buffer size %d is not a power of two", size)
		}
	}
	if cfg.MinSize > cfg.InitialSize || cfg.InitialSize > cfg.MaxSize {
		return nil, fmt.Errorf("engine: buffer size %d outside [%d, %d]",
			cfg.InitialSize, cfg.MinSize, cfg.MaxSize)
	}

	c := &BufferController{
		cfg:    cfg,
		now:    cfg.Now,
		window: make([]atomic.Uint64, cfg.WindowSize),
	}
	c.currentSize.Store(int64(cfg.InitialSize))

	return c, nil
}

// RecordLoad appends a load sample (0..1, where 1 means the block took a
// full block period to render) to the rolling window.
func (c *BufferController) RecordLoad(load float64) {
	if load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}

	pos := c.loadCount.Load() % int64(len(c.window))
	c.window[pos].Store(math.Float64bits(load))
	c.loadCount.Add(1)
}

// RecordUnderrun increments the cumulative underrun counter.
func (c *BufferController) RecordUnderrun() {
	c.underruns.Add(1)
}

// ShouldAdjustSize returns a recommended new block size, or 0 for no
// recommendation. During the cooldown after the previous recommendation
// it always returns 0. Any non-zero return starts the cooldown
// immediately, whether or not the caller applies it.
func (c *BufferController) ShouldAdjustSize() int {
	last := c.lastAdjust.Load()
	if last != 0 && c.now().Sub(time.Unix(0, last)) < c.cfg.Cooldown {
		return 0
	}

	samples := int(c.loadCount.Load())
	if samples > len(c.window) {
		samples = len(c.window)
	}
	if samples < c.cfg.MinSamples {
		return 0
	}

	avg, peak := c.windowLoad(samples)
	current := int(c.currentSize.Load())

	var recommended int
	switch {
	case c.underruns.Load() >= int64(c.cfg.UnderrunThreshold):
		recommended = clampSize(current*2, c.cfg.MinSize, c.cfg.MaxSize)
	case avg > c.cfg.RaiseAvg && peak > c.cfg.RaisePeak:
		recommended = clampSize(current*2, c.cfg.MinSize, c.cfg.MaxSize)
	case avg < c.cfg.LowerAvg && samples >= len(c.window):
		recommended = clampSize(current/2, c.cfg.MinSize, c.cfg.MaxSize)
	default:
		return 0
	}

	if recommended == current {
		// Already pinned at a bound; nothing to recommend.
		return 0
	}

	c.lastAdjust.Store(c.now().UnixNano())

	return recommended
}

// ApplyBufferSize commits a new block size, resetting the load window and
// underrun counter and refreshing the cooldown. The actual swap to the
// new size is the caller's job, between blocks and never mid-block.
func (c *BufferController) ApplyBufferSize(size int) error {
	if size < 1 || size&(size-1) != 0 {
		return fmt.Errorf("engine: buffer size %d is not a power of two", size)
	}
	if size < c.cfg.MinSize || size > c.cfg.MaxSize {
		return fmt.Errorf("engine: buffer size %d outside [%d, %d]",
			size, c.cfg.MinSize, c.cfg.MaxSize)
	}

	c.currentSize.Store(int64(size))
	c.loadCount.Store(0)
	c.underruns.Store(0)
	c.lastAdjust.Store(c.now().UnixNano())
	c.adjustments.Add(1)

	return nil
}

// CurrentSize returns the committed block size.
func (c *BufferController) CurrentSize() int {
	return int(c.currentSize.Load())
}

// Stats returns a snapshot of controller state.
func (c *BufferController) Stats() ControllerStats {
	samples := int(c.loadCount.Load())
	if samples > len(c.window) {
		samples = len(c.window)
	}
	avg, peak := c.windowLoad(samples)

	return ControllerStats{
		CurrentSize:   int(c.currentSize.Load()),
		AverageLoad:   avg,
		PeakLoad:      peak,
		WindowSamples: samples,
		Underruns:     c.underruns.Load(),
		Adjustments:   c.adjustments.Load(),
	}
}

// Reset clears the load window, underrun counter, and cooldown without
// changing the committed size.
func (c *BufferController) Reset() {
	c.loadCount.Store(0)
	c.underruns.Store(0)
	c.lastAdjust.Store(0)
}

// windowLoad computes average and peak over the filled window slots.
func (c *BufferController) windowLoad(samples int) (avg, peak float64) {
	if samples == 0 {
		return 0, 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		load := math.Float64frombits(c.window[i].Load())
		sum += load
		if load > peak {
			peak = load
		}
	}

	return sum / float64(samples), peak
}

func clampSize(size, min, max int) int {
	if size < min {
		return min
	}
	if size > max {
		return max
	}
	return size
}
