package capture

import (
	"time"

	"github.com/wrenvoice/wren/pkg/audio"
)

// PostProcessor turns a raw recorded buffer into the persisted artifact
// shape: silence trimmed from both ends, amplitude normalized to a target
// peak, then quantized to 16-bit PCM.
//
// All methods are pure with respect to the processor; the input slice is
// never mutated.
type PostProcessor struct {
	// TrimThreshold is the absolute amplitude above which a sample counts
	// as signal when scanning for the utterance boundaries. Typically half
	// the detection threshold, so quiet speech tails survive the trim.
	TrimThreshold float64

	// LeadIn is how much audio to keep before the first loud sample, so
	// onset consonants are not clipped.
	LeadIn time.Duration

	// TailMargin is how much audio to keep after the last loud sample.
	// Larger than LeadIn so trailing sounds decay naturally.
	TailMargin time.Duration

	// PeakTarget is the normalized peak amplitude after scaling, in (0, 1].
	PeakTarget float64

	// RemoveDCOffset subtracts the buffer mean before normalizing, so a
	// biased microphone does not eat into the normalization headroom.
	RemoveDCOffset bool
}

// NewPostProcessor returns a processor derived from the session's detection
// threshold: trim at half the threshold, 100 ms lead-in, 200 ms tail, peak
// at 0.8 of full scale.
func NewPostProcessor(detectionThreshold float64) PostProcessor {
	return PostProcessor{
		TrimThreshold:  detectionThreshold / 2,
		LeadIn:         100 * time.Millisecond,
		TailMargin:     200 * time.Millisecond,
		PeakTarget:     0.8,
		RemoveDCOffset: true,
	}
}

// Process trims, optionally removes DC offset, and normalizes. An empty
// return value means no sample exceeded the trim threshold: a valid,
// reportable outcome, not an error.
func (p PostProcessor) Process(samples []float32, sampleRate int) []float32 {
	out := p.Trim(samples, sampleRate)
	if len(out) == 0 {
		return out
	}
	if p.RemoveDCOffset {
		out = removeDC(out)
	}
	return p.Normalize(out)
}

// Trim removes leading and trailing spans whose samples never exceed the
// trim threshold, keeping the configured lead-in and tail margins. Trimming
// is idempotent: re-trimming the result with the same processor returns it
// unchanged.
func (p PostProcessor) Trim(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 {
		return nil
	}

	first := -1
	for i, s := range samples {
		if abs(s) > float32(p.TrimThreshold) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	last := 0
	for i := len(samples) - 1; i >= 0; i-- {
		if abs(samples[i]) > float32(p.TrimThreshold) {
			last = i
			break
		}
	}

	lead := durationToSamples(p.LeadIn, sampleRate)
	tail := durationToSamples(p.TailMargin, sampleRate)
	start := first - lead
	if start < 0 {
		start = 0
	}
	end := last + 1 + tail
	if end > len(samples) {
		end = len(samples)
	}

	out := make([]float32, end-start)
	copy(out, samples[start:end])
	return out
}

// Normalize scales the buffer so its peak absolute amplitude reaches
// PeakTarget. A silent buffer is returned as a copy, unscaled.
func (p PostProcessor) Normalize(samples []float32) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)
	if len(out) == 0 || p.PeakTarget <= 0 {
		return out
	}

	var peak float32
	for _, s := range out {
		if a := abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return out
	}

	scale := float32(p.PeakTarget) / peak
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Quantize converts processed samples to the sink's 16-bit PCM format.
func (p PostProcessor) Quantize(samples []float32) []int16 {
	return audio.Float32ToInt16(samples)
}

// removeDC subtracts the mean sample value from a copy of the buffer.
func removeDC(samples []float32) []float32 {
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := float32(sum / float64(len(samples)))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s - mean
	}
	return out
}

func durationToSamples(d time.Duration, sampleRate int) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
