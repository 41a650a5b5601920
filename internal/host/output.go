// ABOUTME: Oto-based audio device output
// ABOUTME: Clocks the host's render loop through oto's pull-mode player

package host

import (
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"
)

// Output owns the oto context and player. oto allows one context per
// process, so a second Open with a different sample rate keeps the first.
type Output struct {
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	ready      bool
}

// NewOutput creates an idle output.
func NewOutput() *Output {
	return &Output{}
}

// Open initializes the audio device. The device pulls 16-bit stereo LE,
// which is the format the host's Read produces.
func (o *Output) Open(sampleRate int) error {
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate {
			log.Printf("Warning: oto context already at %dHz, ignoring %dHz", o.sampleRate, sampleRate)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.ready = true

	log.Printf("Audio output initialized: %dHz, 2 channels", sampleRate)

	return nil
}

// Play starts pulling audio from src on oto's render goroutine. src is
// normally the Host itself.
func (o *Output) Play(src io.Reader) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}
	if o.player != nil {
		return fmt.Errorf("output already playing")
	}

	o.player = o.otoCtx.NewPlayer(src)
	o.player.Play()

	return nil
}

// Close stops playback and suspends the device.
func (o *Output) Close() error {
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}
