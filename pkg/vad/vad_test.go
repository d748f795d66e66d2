package vad_test

import (
	"errors"
	"math"
	"testing"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/vad"
	"github.com/wrenvoice/wren/pkg/vad/mock"
)

// constFrame returns a frame whose every sample has the given amplitude, so
// its RMS energy equals that amplitude exactly.
func constFrame(amplitude float32, n int) audio.Frame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

func TestEnergy(t *testing.T) {
	tests := []struct {
		name  string
		frame audio.Frame
		want  float64
	}{
		{"empty", audio.Frame{}, 0},
		{"silence", constFrame(0, 320), 0},
		{"constant amplitude", constFrame(0.5, 320), 0.5},
		{"negative amplitude", constFrame(-0.25, 320), 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vad.Energy(tt.frame)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Energy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnergy_MixedSamples(t *testing.T) {
	// RMS of {0.6, -0.8} is sqrt((0.36+0.64)/2) = sqrt(0.5).
	frame := audio.Frame{Samples: []float32{0.6, -0.8}, SampleRate: 16000}
	want := math.Sqrt(0.5)
	if got := vad.Energy(frame); math.Abs(got-want) > 1e-6 {
		t.Errorf("Energy() = %v, want %v", got, want)
	}
}

func TestEnergyDetector_Boundary(t *testing.T) {
	const threshold = 0.01
	d := vad.NewEnergyDetector(threshold)

	tests := []struct {
		name      string
		amplitude float32
		want      bool
	}{
		{"well below", 0.001, false},
		{"exactly at threshold", 0.01, false},
		{"just above", 0.0101, true},
		{"well above", 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := d.Detect(constFrame(tt.amplitude, 320))
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if v.Speech != tt.want {
				t.Errorf("amplitude %v: Speech = %v, want %v", tt.amplitude, v.Speech, tt.want)
			}
		})
	}
}

func TestEnergyDetector_SetThreshold(t *testing.T) {
	d := vad.NewEnergyDetector(0.01)
	frame := constFrame(0.05, 320)

	v, _ := d.Detect(frame)
	if !v.Speech {
		t.Fatal("expected speech below raised threshold")
	}

	d.SetThreshold(0.1)
	if got := d.Threshold(); got != 0.1 {
		t.Fatalf("Threshold() = %v, want 0.1", got)
	}
	v, _ = d.Detect(frame)
	if v.Speech {
		t.Error("expected non-speech after threshold was raised above frame energy")
	}
}

// fixedDetector returns a constant verdict, or an error.
type fixedDetector struct {
	verdict vad.Verdict
	err     error
}

func (f fixedDetector) Detect(audio.Frame) (vad.Verdict, error) {
	return f.verdict, f.err
}

func TestConjunction_BothMustAgree(t *testing.T) {
	frame := constFrame(0.5, 320)
	tests := []struct {
		name             string
		primary, second  bool
		want             bool
	}{
		{"both speech", true, true, true},
		{"only primary", true, false, false},
		{"only secondary", false, true, false},
		{"neither", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := vad.Conjunction(
				fixedDetector{verdict: vad.Verdict{Speech: tt.primary, Energy: 0.5}},
				fixedDetector{verdict: vad.Verdict{Speech: tt.second, Probability: 0.8}},
			)
			v, err := d.Detect(frame)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if v.Speech != tt.want {
				t.Errorf("Speech = %v, want %v", v.Speech, tt.want)
			}
		})
	}
}

func TestConjunction_GatesSecondaryOnPrimary(t *testing.T) {
	secondary := &mock.Detector{Script: []bool{true}}
	d := vad.Conjunction(
		fixedDetector{verdict: vad.Verdict{Speech: false, Energy: 0.001}},
		secondary,
	)
	v, err := d.Detect(constFrame(0.001, 320))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if v.Speech {
		t.Error("Speech = true, want false from the gate alone")
	}
	if n := len(secondary.DetectCalls); n != 0 {
		t.Errorf("secondary consulted %d times on a gated frame, want 0", n)
	}
}

func TestConjunction_SecondaryFailureDegrades(t *testing.T) {
	d := vad.Conjunction(
		fixedDetector{verdict: vad.Verdict{Speech: true, Energy: 0.4}},
		fixedDetector{err: errors.New("engine gone")},
	)
	v, err := d.Detect(constFrame(0.4, 320))
	if err != nil {
		t.Fatalf("expected degradation, got error: %v", err)
	}
	if !v.Speech {
		t.Error("expected primary verdict to stand when secondary fails")
	}
}

func TestConjunction_PrimaryFailureSurfaces(t *testing.T) {
	wantErr := errors.New("driver fault")
	d := vad.Conjunction(
		fixedDetector{err: wantErr},
		fixedDetector{verdict: vad.Verdict{Speech: true}},
	)
	if _, err := d.Detect(constFrame(0.4, 320)); !errors.Is(err, wantErr) {
		t.Errorf("got err %v, want %v", err, wantErr)
	}
}

func TestConjunction_MergesMetrics(t *testing.T) {
	d := vad.Conjunction(
		fixedDetector{verdict: vad.Verdict{Speech: true, Energy: 0.3}},
		fixedDetector{verdict: vad.Verdict{Speech: true, Probability: 0.7}},
	)
	v, err := d.Detect(constFrame(0.3, 320))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if v.Energy != 0.3 {
		t.Errorf("Energy = %v, want 0.3", v.Energy)
	}
	if v.Probability != 0.7 {
		t.Errorf("Probability = %v, want 0.7", v.Probability)
	}
}

func TestConjunction_ForwardsThreshold(t *testing.T) {
	primary := vad.NewEnergyDetector(0.003)
	d := vad.Conjunction(primary, fixedDetector{verdict: vad.Verdict{Speech: true}})

	type thresholder interface {
		Threshold() float64
		SetThreshold(float64)
	}
	th, ok := d.(thresholder)
	if !ok {
		t.Fatal("conjunction does not expose the primary threshold")
	}
	if got := th.Threshold(); got != 0.003 {
		t.Errorf("Threshold() = %v, want 0.003", got)
	}
	th.SetThreshold(0.05)
	if got := primary.Threshold(); got != 0.05 {
		t.Errorf("primary threshold = %v, want forwarded 0.05", got)
	}
}

func TestConjunction_ThresholdWithoutPrimarySupport(t *testing.T) {
	d := vad.Conjunction(
		fixedDetector{verdict: vad.Verdict{Speech: true}},
		fixedDetector{verdict: vad.Verdict{Speech: true}},
	)
	th, ok := d.(interface {
		Threshold() float64
		SetThreshold(float64)
	})
	if !ok {
		t.Fatal("conjunction does not expose threshold methods")
	}
	if got := th.Threshold(); got != 0 {
		t.Errorf("Threshold() = %v, want 0", got)
	}
	th.SetThreshold(0.1) // must not panic
}
