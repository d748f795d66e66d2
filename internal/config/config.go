// Package config provides the configuration schema, loader, and file watcher
// for the wren capture daemon.
package config

import (
	"log/slog"

	"github.com/wrenvoice/wren/internal/capture"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// VADEngine selects the speech detection strategy.
type VADEngine string

const (
	// VADEnergy gates on RMS amplitude alone.
	VADEnergy VADEngine = "energy"

	// VADSilero combines the energy gate with a Silero ONNX model; both
	// must agree before a frame counts as speech.
	VADSilero VADEngine = "silero"
)

// IsValid reports whether v is a recognised engine.
func (v VADEngine) IsValid() bool {
	return v == VADEnergy || v == VADSilero
}

// Config is the root configuration structure for wren. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Audio       AudioConfig       `yaml:"audio"`
	Capture     CaptureConfig     `yaml:"capture"`
	Calibration CalibrationConfig `yaml:"calibration"`
	VAD         VADConfig         `yaml:"vad"`
	Output      OutputConfig      `yaml:"output"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AudioConfig holds input stream settings.
type AudioConfig struct {
	// SampleRate in Hz. 16000 suits speech-to-text backends.
	SampleRate int `yaml:"sample_rate"`

	// FrameDuration is the length of one capture frame.
	FrameDuration Duration `yaml:"frame_duration"`

	// Device selects an input device by case-insensitive substring match.
	// Empty means the system default.
	Device string `yaml:"device"`
}

// CaptureConfig holds the utterance detection tuning.
type CaptureConfig struct {
	// SilenceTimeout is the trailing silence that ends an utterance.
	SilenceTimeout Duration `yaml:"silence_timeout"`

	// MinRecordingDuration is the floor below which trailing silence does
	// not end a recording.
	MinRecordingDuration Duration `yaml:"min_recording_duration"`

	// ForceStopAfter hard-caps the recorded duration.
	ForceStopAfter Duration `yaml:"force_stop_after"`

	// SpeechConfirmFrames is the consecutive speech frame count that
	// confirms an utterance start.
	SpeechConfirmFrames int `yaml:"speech_confirm_frames"`

	// PreRoll is how much pre-utterance audio is recovered into the
	// recording.
	PreRoll Duration `yaml:"pre_roll"`

	// NoSpeechTimeout aborts a session with no confirmed utterance.
	NoSpeechTimeout Duration `yaml:"no_speech_timeout"`

	// MaxListenDuration bounds the whole session wall-clock.
	MaxListenDuration Duration `yaml:"max_listen_duration"`

	// EnergyThreshold is the default RMS detection floor.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// QueueCapacity bounds the frame queue between driver and decision
	// loop.
	QueueCapacity int `yaml:"queue_capacity"`
}

// CalibrationConfig tunes the background noise warm-up pass.
type CalibrationConfig struct {
	// Enabled turns calibration on.
	Enabled *bool `yaml:"enabled"`

	// TargetDuration is how much ambient audio to sample.
	TargetDuration Duration `yaml:"target_duration"`

	// Timeout bounds the wall-clock spent calibrating.
	Timeout Duration `yaml:"timeout"`

	// Multiplier scales background energy into the adaptive threshold.
	Multiplier float64 `yaml:"multiplier"`
}

// VADConfig selects and tunes the speech detection engine.
type VADConfig struct {
	// Engine selects the strategy. Defaults to energy.
	Engine VADEngine `yaml:"engine"`

	// ModelPath is the Silero ONNX model file. Required for the silero
	// engine.
	ModelPath string `yaml:"model_path"`

	// Threshold is the Silero speech probability threshold in (0, 1).
	Threshold float64 `yaml:"threshold"`
}

// OutputConfig describes where captured utterances are persisted.
type OutputConfig struct {
	// Directory receives one WAV file per captured utterance.
	Directory string `yaml:"directory"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled turns the HTTP metrics listener on.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address to serve /metrics on (e.g., ":9090").
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	enabled := true
	def := capture.DefaultConfig()
	return &Config{
		LogLevel: LogInfo,
		Audio: AudioConfig{
			SampleRate:    def.SampleRate,
			FrameDuration: Duration(def.FrameDuration),
		},
		Capture: CaptureConfig{
			SilenceTimeout:       Duration(def.SilenceTimeout),
			MinRecordingDuration: Duration(def.MinRecordingDuration),
			ForceStopAfter:       Duration(def.ForceStopAfter),
			SpeechConfirmFrames:  def.SpeechConfirmFrames,
			PreRoll:              Duration(def.PreRoll),
			NoSpeechTimeout:      Duration(def.NoSpeechTimeout),
			MaxListenDuration:    Duration(def.MaxListenDuration),
			EnergyThreshold:      def.EnergyThreshold,
			QueueCapacity:        def.QueueCapacity,
		},
		Calibration: CalibrationConfig{
			Enabled:        &enabled,
			TargetDuration: Duration(def.Calibration.TargetDuration),
			Timeout:        Duration(def.Calibration.Timeout),
			Multiplier:     def.Calibration.Multiplier,
		},
		VAD: VADConfig{
			Engine:    VADEnergy,
			Threshold: 0.5,
		},
		Output: OutputConfig{
			Directory: "recordings",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
	}
}

// CaptureConfig maps the file schema onto the engine's tuning struct. Zero
// fields are left for the engine to default.
func (c *Config) CaptureConfig() capture.Config {
	out := capture.Config{
		SampleRate:           c.Audio.SampleRate,
		Device:               c.Audio.Device,
		FrameDuration:        c.Audio.FrameDuration.Std(),
		SilenceTimeout:       c.Capture.SilenceTimeout.Std(),
		MinRecordingDuration: c.Capture.MinRecordingDuration.Std(),
		ForceStopAfter:       c.Capture.ForceStopAfter.Std(),
		SpeechConfirmFrames:  c.Capture.SpeechConfirmFrames,
		PreRoll:              c.Capture.PreRoll.Std(),
		NoSpeechTimeout:      c.Capture.NoSpeechTimeout.Std(),
		MaxListenDuration:    c.Capture.MaxListenDuration.Std(),
		EnergyThreshold:      c.Capture.EnergyThreshold,
		QueueCapacity:        c.Capture.QueueCapacity,
		Calibration: capture.CalibrationConfig{
			Enabled:        c.Calibration.Enabled == nil || *c.Calibration.Enabled,
			TargetDuration: c.Calibration.TargetDuration.Std(),
			Timeout:        c.Calibration.Timeout.Std(),
			Multiplier:     c.Calibration.Multiplier,
		},
	}
	if out.Calibration.Enabled {
		def := capture.DefaultCalibrationConfig()
		if out.Calibration.TargetDuration <= 0 {
			out.Calibration.TargetDuration = def.TargetDuration
		}
		if out.Calibration.Timeout <= 0 {
			out.Calibration.Timeout = def.Timeout
		}
		if out.Calibration.Multiplier <= 0 {
			out.Calibration.Multiplier = def.Multiplier
		}
	}
	return out
}

// SlogLevel maps the configured level onto slog's level type. Unrecognised
// values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
