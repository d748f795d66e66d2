// Command wren is a voice-activity-gated audio capture daemon: it listens on
// a microphone, records utterances bounded by silence detection, and writes
// each one as a normalized WAV file.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrenvoice/wren/internal/config"
	"github.com/wrenvoice/wren/pkg/vad"
	"github.com/wrenvoice/wren/pkg/vad/silero"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	flagConfig   string
	flagLogLevel string
	flagDevice   string
	flagOutDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "wren",
		Short:         "Voice-activity-gated audio capture",
		Long:          "wren listens on a microphone, detects utterances bounded by silence,\nand writes each one as a trimmed, normalized WAV file.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagDevice, "device", "", "input device substring match (default: system default device)")
	rootCmd.PersistentFlags().StringVarP(&flagOutDir, "output", "o", "", "override the configured output directory")

	rootCmd.AddCommand(
		listenCmd(),
		recordCmd(),
		calibrateCmd(),
		meterCmd(),
		devicesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wren: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: the file named by
// --config when given, otherwise built-in defaults, with flag overrides
// applied on top.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagLogLevel != "" {
		lvl := config.LogLevel(flagLogLevel)
		if !lvl.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q", flagLogLevel)
		}
		cfg.LogLevel = lvl
	}
	if flagDevice != "" {
		cfg.Audio.Device = flagDevice
	}
	if flagOutDir != "" {
		cfg.Output.Directory = flagOutDir
	}
	return cfg, nil
}

// setupLogging installs the process-wide structured logger.
func setupLogging(level config.LogLevel) *slog.LevelVar {
	lv := &slog.LevelVar{}
	lv.Set(level.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
	return lv
}

// loadVADModel loads the external engine named by config, or returns nil
// when the energy gate runs alone. Loading the ONNX graph is expensive, so
// the listen loop keeps the model across sessions and resets it between
// them instead of reloading every cycle.
func loadVADModel(cfg *config.Config) (*silero.Detector, error) {
	switch cfg.VAD.Engine {
	case config.VADEnergy, "":
		return nil, nil
	case config.VADSilero:
		model, err := silero.New(silero.Config{
			ModelPath:  cfg.VAD.ModelPath,
			SampleRate: cfg.Audio.SampleRate,
			Threshold:  cfg.VAD.Threshold,
		})
		if err != nil {
			return nil, fmt.Errorf("load silero model: %w", err)
		}
		return model, nil
	default:
		return nil, errors.New("unknown vad engine")
	}
}

// newSessionDetector builds the detection strategy for one session: a fresh
// energy gate, so calibration adjustments stay session-scoped, combined with
// the long-lived model engine when one is loaded.
func newSessionDetector(cfg *config.Config, model vad.Detector) vad.Detector {
	energy := vad.NewEnergyDetector(cfg.Capture.EnergyThreshold)
	if model == nil {
		return energy
	}
	return vad.Conjunction(energy, model)
}
