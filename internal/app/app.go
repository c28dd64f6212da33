// Package app wires all SoundTap subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the capture loop and HTTP server, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithMetrics, WithSink, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/soundtap/internal/config"
	"github.com/MrWong99/soundtap/internal/health"
	"github.com/MrWong99/soundtap/internal/observe"
	"github.com/MrWong99/soundtap/pkg/audio"
	"github.com/MrWong99/soundtap/pkg/audio/capture"
)

// rmsLogEvery controls how often the default sink debug-logs frame loudness.
const rmsLogEvery = 50

// App owns all subsystem lifetimes and orchestrates the capture pipeline.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	sink     audio.Sink
	logLevel *slog.LevelVar

	healthHandler *health.Handler
	httpSrv       *http.Server

	// mu guards the live capture state across Run, config reloads, and
	// Shutdown.
	mu      sync.Mutex
	session *capture.Session
	capCfg  config.CaptureConfig

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a metrics instance instead of using the package-level
// default. Tests use this with a manual-reader provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSink injects the downstream frame consumer. When absent, frames are
// consumed by a logging sink that periodically reports loudness.
func WithSink(s audio.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithLogLevelVar injects the level var backing the process logger so config
// reloads can adjust verbosity at runtime.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// New creates an App by wiring all subsystems together. The registry comes
// from main.go with the built-in capture backends registered; tests register
// a mock backend instead.
func New(cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("app: registry must not be nil")
	}

	a := &App{
		cfg:      cfg,
		registry: registry,
		capCfg:   cfg.Capture,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.sink == nil {
		a.sink = &loggingSink{}
	}

	a.healthHandler = health.New(
		health.Checker{Name: "capture", Check: a.checkCapture},
		health.Checker{Name: "backend", Check: a.checkBackend},
	)

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		a.healthHandler.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		a.httpSrv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(a.metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

// HTTPHandler returns the handler serving the health and metrics endpoints,
// or nil when no listen address is configured.
func (a *App) HTTPHandler() http.Handler {
	if a.httpSrv == nil {
		return nil
	}
	return a.httpSrv.Handler
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the capture session and the HTTP server, then blocks until ctx
// is cancelled or a subsystem fails. On return the capture session is
// stopped; call [App.Shutdown] for the remaining teardown.
func (a *App) Run(ctx context.Context) error {
	if err := a.startSession(ctx, a.capCfg); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.httpSrv != nil {
		g.Go(func() error {
			slog.Info("http server listening", "addr", a.httpSrv.Addr)
			if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.stopSession(gctx)
		return gctx.Err()
	})

	return g.Wait()
}

// ─── Capture session management ──────────────────────────────────────────────

// startSession opens the configured backend and starts a capture session
// feeding the instrumented sink.
func (a *App) startSession(ctx context.Context, capCfg config.CaptureConfig) error {
	env, err := a.registry.Create(capCfg)
	if err != nil {
		return fmt.Errorf("app: create capture backend: %w", err)
	}

	backend := capCfg.Backend
	if backend == "" {
		backend = config.DefaultBackend
	}

	sink := &countingSink{
		next:    a.sink,
		metrics: a.metrics,
		backend: backend,
		source:  string(capCfg.Source),
	}

	sess, err := capture.Start(ctx, instrumentEnv(env, a.metrics, backend), sink, capture.Config{
		Source:     capCfg.Source,
		FrameSize:  capCfg.FrameSize,
		SampleRate: capCfg.SampleRate,
		Device:     capCfg.Device,
	})
	if err != nil {
		a.metrics.RecordCaptureError(ctx, backend, errorReason(err))
		return fmt.Errorf("app: start capture: %w", err)
	}

	a.mu.Lock()
	a.session = sess
	a.capCfg = capCfg
	a.mu.Unlock()

	a.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("capture session started",
		"backend", backend,
		"source", capCfg.Source,
		"sample_rate", sess.SampleRate(),
		"frame_size", sess.FrameSize(),
	)
	return nil
}

// stopSession stops the live session if one exists and records what the
// teardown discarded.
func (a *App) stopSession(ctx context.Context) {
	a.mu.Lock()
	sess := a.session
	capCfg := a.capCfg
	a.session = nil
	a.mu.Unlock()

	if sess == nil {
		return
	}

	sess.Stop()
	a.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	a.metrics.RecordDiscarded(context.WithoutCancel(ctx), string(capCfg.Source), sess.Discarded())
	slog.Info("capture session stopped", "discarded_samples", sess.Discarded())
}

// HandleConfigChange applies a reloaded configuration. Capture-related
// changes restart the session; the log level changes in place; a listen
// address change requires a process restart and is only logged.
func (a *App) HandleConfigChange(ctx context.Context, old, new *config.Config) {
	diff := config.Diff(old, new)
	if !diff.Any() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}

	if diff.ListenAddrChanged {
		slog.Warn("server.listen_addr changed — restart the process to apply",
			"current", old.Server.ListenAddr, "new", new.Server.ListenAddr)
	}

	if diff.CaptureChanged {
		slog.Info("capture config changed, restarting session",
			"backend", new.Capture.Backend, "source", new.Capture.Source)
		a.stopSession(ctx)
		if err := a.startSession(ctx, new.Capture); err != nil {
			slog.Error("failed to restart capture after config change", "err", err)
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the capture session and the HTTP server. It is safe to call
// multiple times; only the first call does work. It respects the context
// deadline for the HTTP shutdown.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.stopSession(ctx)

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownErr = err
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Health checks ───────────────────────────────────────────────────────────

// checkCapture reports ready only while a capture session is live.
func (a *App) checkCapture(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return errors.New("no active capture session")
	}
	return nil
}

// checkBackend verifies the configured backend is registered.
func (a *App) checkBackend(_ context.Context) error {
	a.mu.Lock()
	capCfg := a.capCfg
	a.mu.Unlock()

	name := capCfg.Backend
	if name == "" {
		name = config.DefaultBackend
	}
	for _, n := range a.registry.Names() {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("backend %q not registered", name)
}

// ─── Sinks ───────────────────────────────────────────────────────────────────

// countingSink forwards frames downstream and counts them.
type countingSink struct {
	next    audio.Sink
	metrics *observe.Metrics
	backend string
	source  string
}

func (s *countingSink) WriteFrame(f audio.Frame) {
	s.metrics.RecordFrame(context.Background(), s.backend, s.source)
	s.next.WriteFrame(f)
}

// loggingSink is the default downstream consumer. It debug-logs frame
// loudness every [rmsLogEvery] frames so a running instance shows signal
// without flooding the log.
type loggingSink struct {
	count int
}

func (s *loggingSink) WriteFrame(f audio.Frame) {
	s.count++
	if s.count%rmsLogEvery != 0 {
		return
	}
	slog.Debug("audio frames flowing",
		"frames", s.count,
		"sample_rate", f.SampleRate,
		"rms", fmt.Sprintf("%.4f", audio.RMS(f.Samples)),
	)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// errorReason maps a capture start error to a stable metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, audio.ErrNoAudioTrack):
		return "no_audio_track"
	case errors.Is(err, audio.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, audio.ErrProcessingSetup):
		return "processing_setup"
	default:
		return "other"
	}
}

// slogLevel converts a config.LogLevel to an slog.Level.
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
