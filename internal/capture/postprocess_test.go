package capture_test

import (
	"math"
	"testing"

	"github.com/wrenvoice/wren/internal/capture"
)

const testRate = 16000

// span returns n samples of constant amplitude v.
func span(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(spans ...[]float32) []float32 {
	var out []float32
	for _, s := range spans {
		out = append(out, s...)
	}
	return out
}

func TestTrimKeepsMargins(t *testing.T) {
	p := capture.NewPostProcessor(0.01) // trim threshold 0.005
	// Half a second of near-silence, one second of signal, half a second of
	// near-silence.
	in := concat(span(8000, 0.001), span(16000, 0.1), span(8000, 0.001))

	got := p.Trim(in, testRate)

	// 100 ms lead-in plus 200 ms tail around the 1 s signal.
	if want := 16000 + 1600 + 3200; len(got) != want {
		t.Fatalf("Trim() len = %d, want %d", len(got), want)
	}
	if got[0] != 0.001 {
		t.Errorf("Trim()[0] = %v, want lead-in sample 0.001", got[0])
	}
	if got[1600] != 0.1 {
		t.Errorf("Trim()[1600] = %v, want first signal sample 0.1", got[1600])
	}
}

func TestTrimIdempotent(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	in := concat(span(8000, 0.001), span(16000, 0.1), span(8000, 0.001))

	once := p.Trim(in, testRate)
	twice := p.Trim(once, testRate)

	if len(once) != len(twice) {
		t.Fatalf("second Trim() len = %d, want %d", len(twice), len(once))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("second Trim() diverges at sample %d: %v != %v", i, twice[i], once[i])
		}
	}
}

func TestTrimAllBelowThreshold(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	in := span(16000, 0.001)

	if got := p.Trim(in, testRate); got != nil {
		t.Errorf("Trim() = %d samples, want nil for buffer below threshold", len(got))
	}
	if got := p.Trim(nil, testRate); got != nil {
		t.Errorf("Trim(nil) = %v, want nil", got)
	}
}

func TestTrimClampsMarginsToBuffer(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	// Signal starts at sample zero and runs to the end; margins have
	// nothing to extend into.
	in := span(4000, 0.1)

	got := p.Trim(in, testRate)
	if len(got) != len(in) {
		t.Errorf("Trim() len = %d, want %d", len(got), len(in))
	}
}

func TestNormalizePeak(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	in := []float32{0.1, -0.05, 0.025, 0}

	got := p.Normalize(in)

	if in[0] != 0.1 {
		t.Error("Normalize mutated its input")
	}
	var peak float32
	for _, s := range got {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if math.Abs(float64(peak)-0.8) > 1e-6 {
		t.Errorf("peak after Normalize = %v, want 0.8", peak)
	}
	// Relative amplitudes are preserved.
	if math.Abs(float64(got[1]/got[0])-(-0.5)) > 1e-6 {
		t.Errorf("got[1]/got[0] = %v, want -0.5", got[1]/got[0])
	}
}

func TestNormalizeSilentBuffer(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	got := p.Normalize([]float32{0, 0, 0})
	for i, s := range got {
		if s != 0 {
			t.Errorf("Normalize()[%d] = %v, want 0", i, s)
		}
	}
}

func TestProcessRemovesDCOffset(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	// A biased signal: 0.5 DC offset with a 0.2 ripple on top.
	in := make([]float32, 8000)
	for i := range in {
		if i%2 == 0 {
			in[i] = 0.7
		} else {
			in[i] = 0.3
		}
	}

	got := p.Process(in, testRate)
	if len(got) == 0 {
		t.Fatal("Process() = empty, want samples")
	}
	// After removing the 0.5 mean the ripple is +/-0.2, normalized to
	// +/-0.8.
	for i := 0; i < 4; i++ {
		want := float32(0.8)
		if i%2 == 1 {
			want = -0.8
		}
		if math.Abs(float64(got[i]-want)) > 1e-5 {
			t.Errorf("Process()[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestProcessEmptyAfterTrim(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	got := p.Process(span(4000, 0.001), testRate)
	if len(got) != 0 {
		t.Errorf("Process() = %d samples, want empty when nothing exceeds the trim threshold", len(got))
	}
}

func TestQuantize(t *testing.T) {
	p := capture.NewPostProcessor(0.01)
	got := p.Quantize([]float32{0.8, -0.8, 0})
	if len(got) != 3 {
		t.Fatalf("Quantize() len = %d, want 3", len(got))
	}
	if got[0] <= 0 || got[1] >= 0 || got[2] != 0 {
		t.Errorf("Quantize() = %v, want positive, negative, zero", got)
	}
	if got[0] != -got[1] {
		t.Errorf("Quantize() not symmetric: %d vs %d", got[0], got[1])
	}
}
