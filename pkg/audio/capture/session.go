// Package capture owns the lifecycle of a single audio capture session:
// acquire a [audio.BlockSource] from an injected [audio.Environment], feed its
// blocks through an [audio.Accumulator], and tear everything down
// deterministically on stop.
//
// One call to [Start] produces at most one [Session]. Sessions are
// independent: each owns its own source, accumulator, and overflow buffer, so
// two concurrent sessions from the same caller do not interfere.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// DefaultFrameSize is the frame size used when [Config.FrameSize] is zero.
const DefaultFrameSize = 4096

// Config carries the caller-facing options for [Start].
type Config struct {
	// Source selects microphone or display capture.
	// Defaults to [audio.SourceMicrophone].
	Source audio.Source

	// FrameSize is the number of samples per delivered frame.
	// Defaults to [DefaultFrameSize]. Must be positive.
	FrameSize int

	// SampleRate is an optional rate hint forwarded to the environment.
	// Zero lets the backend choose.
	SampleRate int

	// Device optionally names a specific capture device.
	Device string
}

// withDefaults returns cfg with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.Source == "" {
		c.Source = audio.SourceMicrophone
	}
	if c.FrameSize == 0 {
		c.FrameSize = DefaultFrameSize
	}
	return c
}

// validate rejects configurations the accumulator must never see.
func (c Config) validate() error {
	if !c.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", audio.ErrInvalidConfig, c.Source)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("%w: frame size %d must be positive", audio.ErrInvalidConfig, c.FrameSize)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("%w: sample rate %d must not be negative", audio.ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

// Session is one live capture stream. Obtain it from [Start]; end it with
// [Session.Stop]. All methods are safe for concurrent use.
type Session struct {
	src audio.BlockSource
	acc *audio.Accumulator

	mu        sync.Mutex
	stopped   bool
	discarded int
	stopOnce  sync.Once
}

// Start acquires the requested source from env, wires its block stream into a
// frame accumulator, and begins delivery to sink. It returns once the source
// is streaming (or has failed).
//
// Acquisition is the only operation that waits on an external event (a user
// permission grant); it honours ctx. When ctx is cancelled before the grant
// resolves, anything the environment acquired is released and the ctx error
// is returned — nothing is wired into a live session.
//
// Every failure path releases whatever was partially acquired before
// returning, and surfaces one of the sentinel errors in package audio
// (wrapped): [audio.ErrInvalidConfig], [audio.ErrPermissionDenied],
// [audio.ErrDeviceUnavailable], [audio.ErrNoAudioTrack],
// [audio.ErrProcessingSetup]. No frame is ever delivered to sink when Start
// returns an error.
func Start(ctx context.Context, env audio.Environment, sink audio.Sink, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%w: environment must not be nil", audio.ErrInvalidConfig)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: sink must not be nil", audio.ErrInvalidConfig)
	}

	src, err := env.Open(ctx, audio.OpenRequest{
		Source:     cfg.Source,
		SampleRate: cfg.SampleRate,
		Device:     cfg.Device,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: open %s source: %w", cfg.Source, err)
	}

	// The grant may have raced a caller abandoning the attempt. Release
	// immediately rather than wiring a session nobody owns.
	if ctx.Err() != nil {
		_ = src.Close()
		return nil, fmt.Errorf("capture: open %s source: %w", cfg.Source, ctx.Err())
	}

	acc, err := audio.NewAccumulator(cfg.FrameSize, src.SampleRate(), sink)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("capture: %w", err)
	}

	// The handler runs on the host's capture scheduler, which serialises
	// invocations per source, so the accumulator needs no locking.
	if err := src.Start(acc.Push); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("capture: connect block stream: %w: %v", audio.ErrProcessingSetup, err)
	}

	slog.Debug("capture session started",
		"source", cfg.Source,
		"frame_size", cfg.FrameSize,
		"sample_rate", src.SampleRate(),
	)

	return &Session{src: src, acc: acc}, nil
}

// SampleRate returns the session's fixed sample rate in Hz.
func (s *Session) SampleRate() int { return s.acc.SampleRate() }

// FrameSize returns the session's frame size in samples.
func (s *Session) FrameSize() int { return s.acc.FrameSize() }

// Pending returns the number of samples currently buffered below one frame.
// Intended for metrics and tests; the value is stale the moment it returns
// while the session is streaming.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}
	return s.acc.Pending()
}

// Discarded returns the number of buffered samples discarded at teardown.
// Zero until [Session.Stop] has run.
func (s *Session) Discarded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Stop synchronously tears the session down: the source detaches its handler
// and releases its native resources in order, then the accumulator's partial
// remainder is discarded without emission. Stop is idempotent; calls after
// the first are no-ops. It is the session's only cancellation primitive.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if err := s.src.Close(); err != nil {
			slog.Warn("capture: source close error", "err", err)
		}

		s.mu.Lock()
		discarded := s.acc.Pending()
		s.discarded = discarded
		s.acc.Reset()
		s.stopped = true
		s.mu.Unlock()

		slog.Debug("capture session stopped", "discarded_samples", discarded)
	})
}
