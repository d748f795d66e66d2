package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wrenvoice/wren/internal/capture"
	"github.com/wrenvoice/wren/internal/config"
	"github.com/wrenvoice/wren/internal/health"
	"github.com/wrenvoice/wren/internal/observe"
	"github.com/wrenvoice/wren/internal/resilience"
	"github.com/wrenvoice/wren/pkg/audio/portaudio"
	"github.com/wrenvoice/wren/pkg/audio/wav"
	"github.com/wrenvoice/wren/pkg/vad"
	"github.com/wrenvoice/wren/pkg/vad/silero"
)

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Continuously capture utterances to WAV files",
		Long:  "Run the capture loop: wait for speech, record until silence, write the\nutterance as a WAV file, and listen again. Stops on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen()
		},
	}
}

func runListen() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	levelVar := setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.Init(version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// current holds the active config; the watcher swaps it between
	// sessions and the level var applies log changes immediately.
	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	if flagConfig != "" {
		watcher, err := config.NewWatcher(flagConfig, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.LogLevelChanged {
				levelVar.Set(d.NewLogLevel.SlogLevel())
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.CaptureChanged || d.VADChanged || d.OutputChanged {
				slog.Info("capture settings changed, applying to next session")
			}
			current.Store(new)
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv := health.NewServer(cfg.Metrics.ListenAddr,
			health.Checker{Name: "output_dir", Check: func(context.Context) error {
				return checkWritable(current.Load().Output.Directory)
			}},
		)
		g.Go(func() error { return srv.Run(ctx) })
		slog.Info("diagnostics listening", "addr", cfg.Metrics.ListenAddr)
	}

	g.Go(func() error { return captureLoop(ctx, &current) })

	slog.Info("wren listening", "output", cfg.Output.Directory, "vad", cfg.VAD.Engine)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// captureLoop runs sessions back to back until ctx is cancelled. Each
// iteration picks up the latest config, so tuning changes apply on utterance
// boundaries.
func captureLoop(ctx context.Context, current *atomic.Pointer[config.Config]) error {
	// The breaker paces reopen attempts when the input device keeps
	// faulting, instead of spinning on a broken driver.
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "audio_input"})

	// The model engine outlives sessions: it is reset between cycles and
	// reloaded only when the vad config changes.
	var (
		model    *silero.Detector
		modelCfg config.VADConfig
		loaded   bool
	)
	closeModel := func() {
		if model == nil {
			return
		}
		if err := model.Close(); err != nil {
			slog.Warn("close vad model", "err", err)
		}
		model = nil
	}
	defer closeModel()

	for ctx.Err() == nil {
		if !breaker.Allow() {
			wait := breaker.RetryIn()
			slog.Warn("input device faulting, backing off", "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
			continue
		}

		cfg := current.Load()

		if !loaded || cfg.VAD != modelCfg {
			closeModel()
			m, err := loadVADModel(cfg)
			if err != nil {
				return err
			}
			model = m
			modelCfg = cfg.VAD
			loaded = true
		} else if model != nil {
			model.Reset()
		}

		var engine vad.Detector
		if model != nil {
			engine = model
		}
		detector := newSessionDetector(cfg, engine)

		session := capture.NewSession(portaudio.NewSource(), detector, cfg.CaptureConfig())
		res, err := session.Run(ctx)

		switch res.Outcome {
		case capture.OutcomeCaptured:
			breaker.Success()
			if err := persistUtterance(ctx, cfg, session.ID(), res); err != nil {
				slog.Error("persist utterance failed", "session_id", session.ID(), "err", err)
			}
		case capture.OutcomeNoSpeech:
			breaker.Success()
			slog.Debug("no speech detected", "session_id", session.ID(), "stop_reason", res.StopReason)
		case capture.OutcomeStreamFault:
			breaker.Failure()
			slog.Error("stream fault", "session_id", session.ID(), "err", err)
		}
	}
	return ctx.Err()
}

// persistUtterance post-processes a captured buffer and writes it as a WAV
// file named after the session.
func persistUtterance(ctx context.Context, cfg *config.Config, sessionID string, res capture.Result) error {
	metrics := observe.DefaultMetrics()

	post := capture.NewPostProcessor(res.Calibration.Threshold)
	processed := post.Process(res.Samples, res.SampleRate)
	if len(processed) == 0 {
		slog.Info("utterance empty after trimming, discarding", "session_id", sessionID)
		return nil
	}
	metrics.RecordUtterance(ctx, float64(len(processed))/float64(res.SampleRate))

	path := filepath.Join(cfg.Output.Directory, fmt.Sprintf("utterance-%s.wav", sessionID))
	sink := wav.NewFileSink()
	if err := sink.Write(post.Quantize(processed), res.SampleRate, path); err != nil {
		metrics.RecordSinkError(ctx)
		return err
	}
	slog.Info("utterance captured",
		"session_id", sessionID,
		"path", path,
		"duration", res.Duration,
		"stop_reason", res.StopReason,
		"dropped_frames", res.Stats.FramesDropped,
	)
	return nil
}

// checkWritable probes that dir exists and accepts writes.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".wren-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
