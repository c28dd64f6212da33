// Command soundtap captures live audio from a microphone or the system's
// display output, re-chunks it into fixed-size frames, and exposes health and
// metrics endpoints while frames flow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/soundtap/internal/app"
	"github.com/MrWong99/soundtap/internal/config"
	"github.com/MrWong99/soundtap/internal/observe"
	"github.com/MrWong99/soundtap/pkg/audio"
	"github.com/MrWong99/soundtap/pkg/audio/capture"
	"github.com/MrWong99/soundtap/pkg/audio/miniaudio"
	"github.com/MrWong99/soundtap/pkg/audio/portaudio"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	source := flag.String("source", "", "capture source: microphone or display (overrides config)")
	frameSize := flag.Int("frame-size", 0, "samples per delivered frame (overrides config)")
	backend := flag.String("backend", "", "capture backend: miniaudio or portaudio (overrides config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(os.Stderr, "soundtap: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
			} else {
				fmt.Fprintf(os.Stderr, "soundtap: %v\n", err)
			}
			return 1
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg, *source, *frameSize, *backend)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "soundtap: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("soundtap starting",
		"config", *configPath,
		"backend", backendName(cfg),
		"source", cfg.Capture.Source,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry providers ───────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "soundtap",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, reg, app.WithLogLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (only when a file is in play) ──────────────────────────
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			application.HandleConfigChange(ctx, old, new)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	slog.Info("capture ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the capture backends that ship with soundtap
// into reg.
func registerBuiltinBackends(reg *config.Registry) {
	reg.Register("miniaudio", func(config.CaptureConfig) (audio.Environment, error) {
		return miniaudio.New(), nil
	})
	reg.Register("portaudio", func(config.CaptureConfig) (audio.Environment, error) {
		return portaudio.New(), nil
	})
	for _, name := range reg.Names() {
		slog.Debug("registered capture backend", "name", name)
	}
}

// applyFlagOverrides folds CLI flags into cfg. Flags win over file values.
func applyFlagOverrides(cfg *config.Config, source string, frameSize int, backend string) {
	if source != "" {
		cfg.Capture.Source = audio.Source(source)
	}
	if frameSize > 0 {
		cfg.Capture.FrameSize = frameSize
	}
	if backend != "" {
		cfg.Capture.Backend = backend
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         SoundTap — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Backend", backendName(cfg))
	printRow("Source", string(cfg.Capture.Source))
	printRow("Frame size", frameSizeLabel(cfg.Capture.FrameSize))
	printRow("Sample rate", sampleRateLabel(cfg.Capture.SampleRate))
	printRow("Device", deviceLabel(cfg.Capture.Device))
	printRow("Listen addr", listenLabel(cfg.Server.ListenAddr))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func backendName(cfg *config.Config) string {
	if cfg.Capture.Backend == "" {
		return config.DefaultBackend
	}
	return cfg.Capture.Backend
}

func frameSizeLabel(n int) string {
	if n == 0 {
		return fmt.Sprintf("%d (default)", capture.DefaultFrameSize)
	}
	return fmt.Sprintf("%d", n)
}

func sampleRateLabel(n int) string {
	if n == 0 {
		return "(device default)"
	}
	return fmt.Sprintf("%d Hz", n)
}

func deviceLabel(d string) string {
	if d == "" {
		return "(system default)"
	}
	return d
}

func listenLabel(addr string) string {
	if addr == "" {
		return "(disabled)"
	}
	return addr
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
