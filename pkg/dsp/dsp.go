// ABOUTME: Bulk sample-buffer arithmetic for the render path
// ABOUTME: SIMD-dispatched via algo-vecmath with a bit-identical scalar fallback

// Package dsp provides the small set of bulk buffer operations the engine
// core needs: accumulate, scale, copy, and clear over equal-length
// float64 buffers. The heavy lifting is delegated to algo-vecmath, which
// selects a vectorized kernel when the CPU supports one and an equivalent
// scalar loop otherwise. All operations are elementwise, so results are
// bit-identical whichever path runs.
package dsp

import (
	"github.com/cwbudde/algo-vecmath"
	"github.com/cwbudde/algo-vecmath/cpu"
)

// IsAvailable reports whether a vectorized execution path is active on
// this CPU. When false, the same operations run as scalar loops with
// identical numeric results.
func IsAvailable() bool {
	features := cpu.DetectFeatures()
	if features.ForceGeneric {
		return false
	}
	return features.HasAVX2 || features.HasSSE2 || features.HasNEON
}

// Add accumulates src into dst element-wise: dst[i] += src[i].
// Panics if lengths differ.
func Add(dst, src []float64) {
	vecmath.AddBlockInPlace(dst, src)
}

// Multiply scales dst element-wise by src: dst[i] *= src[i].
// Panics if lengths differ.
func Multiply(dst, src []float64) {
	vecmath.MulBlockInPlace(dst, src)
}

// MultiplyScalar scales every element of buf in place: buf[i] *= k.
func MultiplyScalar(buf []float64, k float64) {
	vecmath.ScaleBlock(buf, buf, k)
}

// Copy copies src into dst. Panics if lengths differ.
func Copy(dst, src []float64) {
	if len(dst) != len(src) {
		panic("dsp: buffer length mismatch")
	}
	copy(dst, src)
}

// Clear zero-fills buf. A plain loop rather than a multiply by zero so
// NaN and Inf inputs still clear to exactly zero.
func Clear(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
