package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrenvoice/wren/pkg/audio"
	"github.com/wrenvoice/wren/pkg/audio/portaudio"
	"github.com/wrenvoice/wren/pkg/vad"
)

// meterWidth is the bar length at full scale. The bar scale is linear in
// RMS energy up to meterFullScale, which is loud for close-mic speech.
const (
	meterWidth     = 50
	meterFullScale = 0.3
)

func meterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meter",
		Short: "Show a live input level meter",
		Long:  "Print the RMS energy of the microphone input as a moving bar, with a\nmarker at the configured detection threshold. Stops on interrupt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeter(cmd)
		},
	}
}

func runMeter(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	capCfg := cfg.CaptureConfig()
	levels := make(chan float64, 8)

	source := portaudio.NewSource()
	err = source.Start(ctx, audio.StreamConfig{
		SampleRate: capCfg.SampleRate,
		FrameSize:  capCfg.FrameSize(),
		Device:     capCfg.Device,
	}, func(frame audio.Frame) {
		select {
		case levels <- vad.Energy(frame):
		default:
		}
	}, func(error) {})
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer func() { _ = source.Stop() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "threshold %.6f, ctrl-c to stop\n", capCfg.EnergyThreshold)

	// Redraw at most every 100ms, keeping the peak seen in between so
	// short bursts stay visible.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var peak float64
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case e := <-levels:
			if e > peak {
				peak = e
			}
		case <-ticker.C:
			fmt.Fprintf(out, "\r%s %.6f", meterBar(peak, capCfg.EnergyThreshold), peak)
			peak = 0
		}
	}
}

// meterBar renders energy as a fixed-width bar with a '|' at the threshold
// position.
func meterBar(energy, threshold float64) string {
	fill := int(energy / meterFullScale * meterWidth)
	if fill > meterWidth {
		fill = meterWidth
	}
	mark := int(threshold / meterFullScale * meterWidth)
	if mark >= meterWidth {
		mark = meterWidth - 1
	}

	bar := []byte(strings.Repeat("#", fill) + strings.Repeat(" ", meterWidth-fill))
	if mark >= 0 {
		bar[mark] = '|'
	}
	return "[" + string(bar) + "]"
}
