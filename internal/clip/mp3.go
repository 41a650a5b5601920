// ABOUTME: MP3 clip loader
// ABOUTME: Decodes a whole file to mono float64 samples for clip voices

package clip

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// Clip is a fully decoded audio clip ready for the render thread.
type Clip struct {
	Samples    []float64 // mono, normalized to [-1, 1]
	SampleRate int
}

// Duration returns the clip length in samples.
func (c *Clip) Duration() int64 {
	return int64(len(c.Samples))
}

// LoadMP3 decodes an MP3 file into a mono clip. Stereo sources are
// downmixed by averaging channels. Decoding happens entirely on the
// control side; the render thread only ever sees the finished slice.
func LoadMP3(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always emits 16-bit stereo LE at the source sample rate.
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	frames := len(raw) / 4
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	clip := &Clip{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
	}

	log.Printf("Loaded clip %s: %d samples at %dHz", path, frames, clip.SampleRate)

	return clip, nil
}

// Resample converts the clip to the target rate with linear
// interpolation. Returns the receiver unchanged when rates match.
func (c *Clip) Resample(targetRate int) *Clip {
	if targetRate == c.SampleRate || len(c.Samples) == 0 {
		return c
	}

	ratio := float64(c.SampleRate) / float64(targetRate)
	outLen := int(float64(len(c.Samples)) / ratio)
	out := make([]float64, outLen)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		if idx+1 < len(c.Samples) {
			out[i] = c.Samples[idx]*(1-frac) + c.Samples[idx+1]*frac
		} else {
			out[i] = c.Samples[idx]
		}
	}

	return &Clip{Samples: out, SampleRate: targetRate}
}
