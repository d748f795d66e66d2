// Package silero adapts the Silero VAD ONNX model to the vad.Detector
// interface.
//
// The Silero model classifies fixed windows (512 samples at 16 kHz), which
// rarely match the capture pipeline's frame duration. The adapter buffers
// incoming frames and feeds the model whole windows, carrying the speech
// state between windows so every frame still gets a verdict.
package silero

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/vad"
)

// defaultWindowSize is the model window in samples for 16 kHz input.
const defaultWindowSize = 512

// Config holds the parameters for a Silero detector session.
type Config struct {
	// ModelPath is the filesystem path to the silero_vad.onnx model.
	ModelPath string

	// SampleRate of the frames that will be classified. Must be 8000 or 16000.
	SampleRate int

	// Threshold is the speech probability above which a window counts as
	// speech. Typical: 0.5.
	Threshold float64

	// WindowSize overrides the model window in samples. Zero selects the
	// model default for the sample rate.
	WindowSize int
}

// Detector wraps a Silero speech.Detector as a [vad.Detector].
//
// A Detector is driven by one decision loop at a time and is not safe for
// concurrent use. Call Reset between capture sessions when reusing a loaded
// model, and Close to release the ONNX runtime resources.
type Detector struct {
	det        *speech.Detector
	window     []float32
	windowSize int
	inSpeech   bool
}

// New loads the model at cfg.ModelPath and returns a ready Detector.
func New(cfg Config) (*Detector, error) {
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  cfg.ModelPath,
		SampleRate: cfg.SampleRate,
		Threshold:  float32(cfg.Threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("silero: load model %q: %w", cfg.ModelPath, err)
	}
	ws := cfg.WindowSize
	if ws <= 0 {
		ws = defaultWindowSize
	}
	return &Detector{det: sd, windowSize: ws}, nil
}

// Detect implements [vad.Detector]. Frames are accumulated until a full
// model window is available; the verdict reflects the most recent speech
// state reported by the model.
func (d *Detector) Detect(frame audio.Frame) (vad.Verdict, error) {
	d.window = append(d.window, frame.Samples...)

	for len(d.window) >= d.windowSize {
		evt, err := d.det.DetectStreamFrame(d.window[:d.windowSize])
		if err != nil {
			// The streaming detector rejects an end event without a matching
			// start after its state was cleared mid-utterance. Recover by
			// resetting and classifying the next window fresh.
			if err.Error() == "unexpected speech end" {
				d.det.Reset()
				d.inSpeech = false
				d.window = d.window[d.windowSize:]
				continue
			}
			return vad.Verdict{}, fmt.Errorf("silero: detect: %w", err)
		}
		if evt != nil {
			if evt.IsStart {
				d.inSpeech = true
			}
			if evt.IsEnd {
				d.inSpeech = false
			}
		}
		d.window = d.window[d.windowSize:]
	}

	return vad.Verdict{Speech: d.inSpeech, Energy: vad.Energy(frame)}, nil
}

// Reset clears buffered samples and the model's accumulated state without
// closing the detector. Use between capture sessions when reusing a loaded
// model.
func (d *Detector) Reset() {
	d.window = d.window[:0]
	d.inSpeech = false
	d.det.Reset()
}

// Close releases the ONNX runtime resources. The detector must not be used
// after Close.
func (d *Detector) Close() error {
	return d.det.Destroy()
}

var _ vad.Detector = (*Detector)(nil)
