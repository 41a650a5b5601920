// ABOUTME: Tests for the buffer utilities
// ABOUTME: Verifies numeric parity between dispatched and reference loops

package dsp

import (
	"runtime"
	"testing"

	"github.com/cwbudde/algo-vecmath/cpu"
)

var testLengths = []int{1, 3, 8, 17, 64, 128, 1000}

func makeBuffers(n int) (a, b []float64) {
	a = make([]float64, n)
	b = make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i)*0.25 - 10
		b[i] = float64(n-i) * 0.5
	}
	return a, b
}

func TestAddMatchesReference(t *testing.T) {
	for _, n := range testLengths {
		dst, src := makeBuffers(n)

		want := make([]float64, n)
		for i := range want {
			want[i] = dst[i] + src[i]
		}

		Add(dst, src)

		for i := range want {
			if dst[i] != want[i] {
				t.Fatalf("len %d: Add[%d] = %v, want %v", n, i, dst[i], want[i])
			}
		}
	}
}

func TestMultiplyMatchesReference(t *testing.T) {
	for _, n := range testLengths {
		dst, src := makeBuffers(n)

		want := make([]float64, n)
		for i := range want {
			want[i] = dst[i] * src[i]
		}

		Multiply(dst, src)

		for i := range want {
			if dst[i] != want[i] {
				t.Fatalf("len %d: Multiply[%d] = %v, want %v", n, i, dst[i], want[i])
			}
		}
	}
}

func TestMultiplyScalarMatchesReference(t *testing.T) {
	for _, n := range testLengths {
		buf, _ := makeBuffers(n)

		want := make([]float64, n)
		for i := range want {
			want[i] = buf[i] * 0.75
		}

		MultiplyScalar(buf, 0.75)

		for i := range want {
			if buf[i] != want[i] {
				t.Fatalf("len %d: MultiplyScalar[%d] = %v, want %v", n, i, buf[i], want[i])
			}
		}
	}
}

func TestCopyAndClear(t *testing.T) {
	dst, src := makeBuffers(64)

	Copy(dst, src)
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("Copy[%d] = %v, want %v", i, dst[i], src[i])
		}
	}

	Clear(dst)
	for i := range dst {
		if dst[i] != 0 {
			t.Fatalf("Clear[%d] = %v, want 0", i, dst[i])
		}
	}
}

func TestCopyLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()

	Copy(make([]float64, 4), make([]float64, 5))
}

func TestGenericPathParity(t *testing.T) {
	// Run the same operations with the vectorized path disabled and
	// confirm bit-identical results.
	dst1, src := makeBuffers(128)
	dst2 := make([]float64, len(dst1))
	copy(dst2, dst1)

	Add(dst1, src)
	MultiplyScalar(dst1, 0.5)

	cpu.SetForcedFeatures(cpu.Features{ForceGeneric: true, Architecture: runtime.GOARCH})
	defer cpu.ResetDetection()

	if IsAvailable() {
		t.Error("IsAvailable true with generic execution forced")
	}

	Add(dst2, src)
	MultiplyScalar(dst2, 0.5)

	for i := range dst1 {
		if dst1[i] != dst2[i] {
			t.Fatalf("path divergence at %d: %v vs %v", i, dst1[i], dst2[i])
		}
	}
}
