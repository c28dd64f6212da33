// Package portaudio provides an [audio.Environment] implementation backed by
// the PortAudio library via the gordonklaus/portaudio bindings.
//
// Only [audio.SourceMicrophone] is supported: PortAudio has no portable way
// to tap shared display output, so display requests fail with a wrapped
// [audio.ErrDeviceUnavailable]. Use the miniaudio backend for display
// capture.
//
// The stream is opened with an unspecified frames-per-buffer so PortAudio
// picks its own processing quantum; block length is host-determined and
// variable, exactly what the frame accumulator expects.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Environment = (*Environment)(nil)

// Environment implements [audio.Environment] on top of PortAudio. The zero
// value is ready to use. PortAudio's library initialisation is reference
// counted, so concurrent sources are independent.
type Environment struct{}

// New creates a PortAudio Environment.
func New() *Environment {
	return &Environment{}
}

// Open implements [audio.Environment].
func (e *Environment) Open(ctx context.Context, req audio.OpenRequest) (audio.BlockSource, error) {
	if req.Source == audio.SourceDisplay {
		return nil, fmt.Errorf("portaudio: display capture is not supported by this host: %w", audio.ErrDeviceUnavailable)
	}
	if req.Device != "" {
		// Device selection is owned by the host; this backend only ever
		// opens the default input.
		slog.Warn("portaudio: device hint ignored, using default input", "device", req.Device)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %v", audio.ErrProcessingSetup, err)
	}

	src, err := openDefaultInput(ctx, req)
	if err != nil {
		if termErr := portaudio.Terminate(); termErr != nil {
			slog.Warn("portaudio: terminate error", "err", termErr)
		}
		return nil, err
	}
	return src, nil
}

// openDefaultInput opens a mono callback stream on the default input device.
// On error the caller terminates the library.
func openDefaultInput(ctx context.Context, req audio.OpenRequest) (*blockSource, error) {
	sampleRate := float64(req.SampleRate)
	if sampleRate <= 0 {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, classifyOpenError(err)
		}
		sampleRate = info.DefaultSampleRate
	}

	src := &blockSource{sampleRate: int(sampleRate)}

	stream, err := portaudio.OpenDefaultStream(
		1, 0, sampleRate, portaudio.FramesPerBufferUnspecified,
		src.onInput,
	)
	if err != nil {
		return nil, classifyOpenError(err)
	}
	src.stream = stream

	// The grant may have raced a caller abandoning the attempt.
	if ctx.Err() != nil {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Warn("portaudio: stream close error", "err", closeErr)
		}
		return nil, ctx.Err()
	}
	return src, nil
}

// classifyOpenError maps a PortAudio acquisition failure onto the capture
// error taxonomy.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access") || strings.Contains(msg, "permission") {
		return fmt.Errorf("portaudio: open input: %w: %v", audio.ErrPermissionDenied, err)
	}
	return fmt.Errorf("portaudio: open input: %w: %v", audio.ErrDeviceUnavailable, err)
}

// blockSource implements [audio.BlockSource] for one PortAudio input stream.
type blockSource struct {
	stream     *portaudio.Stream
	sampleRate int

	mu      sync.Mutex
	handler audio.BlockHandler
	closed  bool

	closeOnce sync.Once
}

// SampleRate implements [audio.BlockSource].
func (s *blockSource) SampleRate() int { return s.sampleRate }

// Start implements [audio.BlockSource]: registers h and starts the stream.
func (s *blockSource) Start(h audio.BlockHandler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("portaudio: start on closed source: %w", audio.ErrProcessingSetup)
	}
	s.handler = h
	s.mu.Unlock()

	if err := s.stream.Start(); err != nil {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
		return fmt.Errorf("portaudio: start stream: %w: %v", audio.ErrProcessingSetup, err)
	}
	return nil
}

// Close implements [audio.BlockSource]. The handler is detached first so no
// final partial callback reaches a closing pipeline, then the stream is
// stopped, closed, and the library reference released.
func (s *blockSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.handler = nil
		s.closed = true
		s.mu.Unlock()

		if err := s.stream.Stop(); err != nil {
			slog.Debug("portaudio: stream stop", "err", err)
		}
		if err := s.stream.Close(); err != nil {
			slog.Warn("portaudio: stream close error", "err", err)
		}
		if err := portaudio.Terminate(); err != nil {
			slog.Warn("portaudio: terminate error", "err", err)
		}
	})
	return nil
}

// onInput runs on PortAudio's real-time callback thread once per quantum.
// The input buffer is owned by PortAudio and reused between callbacks, so the
// samples are copied before crossing to the handler.
func (s *blockSource) onInput(in []float32) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil || len(in) == 0 {
		return
	}

	block := make([]float32, len(in))
	copy(block, in)
	h(block)
}
