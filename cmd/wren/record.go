package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/audio/portaudio"
	"github.com/wrenvoice/wren/pkg/audio/wav"
)

func recordCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Record a fixed duration of raw audio, bypassing detection",
		Long:  "Capture the microphone for a fixed duration and write the result as a\nWAV file, with no voice activity gating. Useful for checking levels and\ndevice selection.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRecord(duration, path)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to record")
	return cmd
}

func runRecord(duration time.Duration, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	if path == "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		path = filepath.Join(cfg.Output.Directory, fmt.Sprintf("recording-%s.wav", uuid.NewString()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var (
		mu      sync.Mutex
		samples []float32
		errOnce sync.Once
		faultCh = make(chan error, 1)
	)

	source := portaudio.NewSource()
	streamCfg := audio.StreamConfig{
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.CaptureConfig().FrameSize(),
		Device:     cfg.Audio.Device,
	}
	err = source.Start(ctx, streamCfg,
		func(frame audio.Frame) {
			mu.Lock()
			samples = append(samples, frame.Samples...)
			mu.Unlock()
		},
		func(err error) {
			errOnce.Do(func() { faultCh <- err })
		},
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}

	slog.Info("recording", "duration", duration, "sample_rate", streamCfg.SampleRate)
	select {
	case <-ctx.Done():
	case err := <-faultCh:
		_ = source.Stop()
		return fmt.Errorf("input stream: %w", err)
	}
	if err := source.Stop(); err != nil {
		slog.Warn("stop input stream", "err", err)
	}

	mu.Lock()
	captured := samples
	mu.Unlock()
	if len(captured) == 0 {
		return fmt.Errorf("no audio captured")
	}

	if err := wav.NewFileSink().Write(audio.Float32ToInt16(captured), streamCfg.SampleRate, path); err != nil {
		return err
	}
	slog.Info("recording written", "path", path, "samples", len(captured))
	return nil
}
