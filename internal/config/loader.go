package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, fills unset fields from
// [Default], and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills unset fields from
// [Default], and validates the result. Unknown YAML keys are rejected so
// typos fail loudly instead of silently falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills fields the YAML left at their zero value. Decoding
// over [Default] covers whole missing sections; this covers explicit empty
// ones.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = def.Audio.SampleRate
	}
	if cfg.Audio.FrameDuration <= 0 {
		cfg.Audio.FrameDuration = def.Audio.FrameDuration
	}
	if cfg.VAD.Engine == "" {
		cfg.VAD.Engine = def.VAD.Engine
	}
	if cfg.VAD.Threshold <= 0 {
		cfg.VAD.Threshold = def.VAD.Threshold
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = def.Output.Directory
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = def.Metrics.ListenAddr
	}
	if cfg.Calibration.Enabled == nil {
		cfg.Calibration.Enabled = def.Calibration.Enabled
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration %v must be positive", cfg.Audio.FrameDuration))
	}

	if cfg.Capture.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.silence_timeout %v must not be negative", cfg.Capture.SilenceTimeout))
	}
	if cfg.Capture.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("capture.energy_threshold %g must not be negative", cfg.Capture.EnergyThreshold))
	}
	if cfg.Capture.MinRecordingDuration > 0 && cfg.Capture.ForceStopAfter > 0 &&
		cfg.Capture.MinRecordingDuration > cfg.Capture.ForceStopAfter {
		errs = append(errs, fmt.Errorf("capture.min_recording_duration %v exceeds capture.force_stop_after %v",
			cfg.Capture.MinRecordingDuration, cfg.Capture.ForceStopAfter))
	}
	if cfg.Capture.NoSpeechTimeout > 0 && cfg.Capture.MaxListenDuration > 0 &&
		cfg.Capture.NoSpeechTimeout > cfg.Capture.MaxListenDuration {
		errs = append(errs, fmt.Errorf("capture.no_speech_timeout %v exceeds capture.max_listen_duration %v",
			cfg.Capture.NoSpeechTimeout, cfg.Capture.MaxListenDuration))
	}

	if cfg.Calibration.Multiplier < 0 {
		errs = append(errs, fmt.Errorf("calibration.multiplier %g must not be negative", cfg.Calibration.Multiplier))
	}

	if cfg.VAD.Engine != "" && !cfg.VAD.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: energy, silero", cfg.VAD.Engine))
	}
	if cfg.VAD.Engine == VADSilero && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required when vad.engine is silero"))
	}
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %g is out of range [0, 1]", cfg.VAD.Threshold))
	}

	if cfg.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory is required"))
	}

	return errors.Join(errs...)
}
