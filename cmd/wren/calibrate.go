package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrenvoice/wren/internal/capture"
	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/audio/portaudio"
)

func calibrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate",
		Short: "Measure background noise and report the detection threshold",
		Long:  "Sample ambient audio from the microphone and print the background energy\nand the detection threshold a capture session would use. Stay quiet while\nit runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd)
		},
	}
}

func runCalibrate(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capCfg := cfg.CaptureConfig()
	calCfg := capCfg.Calibration
	calCfg.Enabled = true

	queue := capture.NewFrameQueue(capCfg.QueueCapacity)
	source := portaudio.NewSource()
	err = source.Start(ctx, audio.StreamConfig{
		SampleRate: capCfg.SampleRate,
		FrameSize:  capCfg.FrameSize(),
		Device:     capCfg.Device,
	}, func(frame audio.Frame) {
		queue.Offer(frame)
	}, func(error) {})
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer func() { _ = source.Stop() }()

	fmt.Fprintf(cmd.OutOrStdout(), "sampling %s of ambient audio...\n", calCfg.TargetDuration)
	res := capture.Calibrate(calCfg, capCfg.FrameDuration, capCfg.EnergyThreshold, queue.Poll)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "frames sampled:     %d\n", res.Frames)
	fmt.Fprintf(out, "background energy:  %.6f\n", res.BackgroundEnergy)
	fmt.Fprintf(out, "configured floor:   %.6f\n", capCfg.EnergyThreshold)
	fmt.Fprintf(out, "session threshold:  %.6f", res.Threshold)
	if res.Adapted {
		fmt.Fprintf(out, " (adapted, %gx background)\n", calCfg.Multiplier)
	} else {
		fmt.Fprintln(out, " (floor kept)")
	}
	return nil
}
