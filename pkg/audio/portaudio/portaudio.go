// Package portaudio implements microphone capture on top of the PortAudio
// bindings. It is the production input source for the capture engine; tests
// use the engine's mock source instead.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/wrenvoice/wren/pkg/audio"
)

// Source captures mono float32 frames from a PortAudio input stream and
// delivers them through the capture callback. One Source owns one stream;
// Start and Stop may be called once each per capture session.
type Source struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	running bool
	done    chan struct{}
}

// NewSource returns an idle source. The stream is opened by Start.
func NewSource() *Source {
	return &Source{}
}

// Start initializes PortAudio, opens an input-only stream on the configured
// device (or the system default), and begins delivering frames on a reader
// goroutine. The reader stops when Stop is called or ctx is cancelled.
func (s *Source) Start(ctx context.Context, cfg audio.StreamConfig, onFrame func(audio.Frame), onErr func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("portaudio: source already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	dev, err := inputDevice(cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.Output.Device = nil
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FrameSize

	s.buffer = make([]float32, cfg.FrameSize)
	stream, err := portaudio.OpenStream(params, s.buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.done = make(chan struct{})
	slog.Debug("portaudio: capture started",
		"device", dev.Name,
		"sample_rate", cfg.SampleRate,
		"frame_size", cfg.FrameSize,
	)

	go s.readLoop(stream, cfg, onFrame, onErr)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.done:
		}
	}()
	return nil
}

// readLoop blocks on the stream one frame at a time, copying each buffer
// into a fresh Frame before handing it off.
func (s *Source) readLoop(stream *portaudio.Stream, cfg audio.StreamConfig, onFrame func(audio.Frame), onErr func(error)) {
	frameDur := time.Duration(cfg.FrameSize) * time.Second / time.Duration(cfg.SampleRate)
	var ts time.Duration
	for {
		if err := stream.Read(); err != nil {
			select {
			case <-s.done:
				// Shutting down; the read failure is the stream closing.
			default:
				onErr(fmt.Errorf("portaudio: read frame: %w", err))
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}

		samples := make([]float32, len(s.buffer))
		copy(samples, s.buffer)
		onFrame(audio.Frame{Samples: samples, SampleRate: cfg.SampleRate, Timestamp: ts})
		ts += frameDur
	}
}

// Stop closes the stream and terminates PortAudio. Safe to call more than
// once; only the first call does the teardown.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)

	var errs []error
	if err := s.stream.Abort(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: abort stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio: terminate: %w", err))
	}
	s.stream = nil
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// inputDevice resolves a device by case-insensitive substring match, or the
// system default when name is empty.
func inputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("portaudio: no default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	needle := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), needle) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q", name)
}

// Device describes one audio device visible to PortAudio.
type Device struct {
	// Name as reported by the host API.
	Name string

	// HostAPI is the audio backend exposing the device.
	HostAPI string

	// MaxInputChannels is zero for output-only devices.
	MaxInputChannels int

	// DefaultSampleRate in Hz.
	DefaultSampleRate float64

	// DefaultInput marks the system default input device.
	DefaultInput bool
}

// ListDevices initializes PortAudio, enumerates all devices, and terminates.
// Intended for diagnostics commands, not for use alongside an open stream.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	defaultInput, _ := portaudio.DefaultInputDevice()

	out := make([]Device, 0, len(devices))
	for _, dev := range devices {
		d := Device{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			DefaultInput:      defaultInput != nil && dev == defaultInput,
		}
		if dev.HostApi != nil {
			d.HostAPI = dev.HostApi.Name
		}
		out = append(out, d)
	}
	return out, nil
}
