// Package miniaudio provides an [audio.Environment] implementation backed by
// the miniaudio library via the gen2brain/malgo bindings.
//
// Source mapping:
//
//   - [audio.SourceMicrophone] opens a capture device (the host default, or a
//     named device when the request carries a device hint).
//   - [audio.SourceDisplay] opens a loopback device that taps the shared
//     output mix. Loopback is only available on hosts that support it
//     (WASAPI); elsewhere the display stream carries no audio and Open fails
//     with [audio.ErrNoAudioTrack].
//
// Blocks are delivered on miniaudio's real-time capture thread at the
// device's processing quantum; their length is not under this package's
// control.
package miniaudio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// defaultSampleRate is requested when the caller gives no rate hint.
const defaultSampleRate = 48000

// loopbackChannels is the channel count requested for display capture. The
// shared output mix is stereo on virtually every host; channel 0 is extracted
// before delivery.
const loopbackChannels = 2

// Compile-time interface assertion.
var _ audio.Environment = (*Environment)(nil)

// Environment implements [audio.Environment] on top of miniaudio. The zero
// value is ready to use; each Open call owns an independent miniaudio context
// so concurrent sources do not interfere.
//
// Environment is safe for concurrent use.
type Environment struct{}

// New creates a miniaudio Environment.
func New() *Environment {
	return &Environment{}
}

// Open implements [audio.Environment].
func (e *Environment) Open(ctx context.Context, req audio.OpenRequest) (audio.BlockSource, error) {
	allocated, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w: %v", audio.ErrProcessingSetup, err)
	}

	src, err := e.openSource(ctx, allocated, req)
	if err != nil {
		releaseContext(allocated)
		return nil, err
	}
	return src, nil
}

// openSource initialises the device for req against an already-allocated
// context. On error the caller releases the context.
func (e *Environment) openSource(ctx context.Context, allocated *malgo.AllocatedContext, req audio.OpenRequest) (*blockSource, error) {
	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	var deviceType malgo.DeviceType
	channels := 1
	switch req.Source {
	case audio.SourceDisplay:
		deviceType = malgo.Loopback
		channels = loopbackChannels
	default:
		deviceType = malgo.Capture
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	if req.Device != "" {
		id, err := findDevice(allocated, req.Device)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	src := &blockSource{
		allocated:  allocated,
		sampleRate: sampleRate,
		channels:   channels,
	}

	device, err := malgo.InitDevice(allocated.Context, cfg, malgo.DeviceCallbacks{
		Data: src.onData,
		Stop: src.onStop,
	})
	if err != nil {
		return nil, classifyInitError(req.Source, err)
	}
	src.device = device

	// The host may have resolved the grant after the caller gave up.
	if ctx.Err() != nil {
		device.Uninit()
		return nil, ctx.Err()
	}
	return src, nil
}

// findDevice resolves a device hint to a capture device ID by
// case-insensitive substring match on the device name.
func findDevice(allocated *malgo.AllocatedContext, hint string) (malgo.DeviceID, error) {
	var zero malgo.DeviceID
	infos, err := allocated.Context.Devices(malgo.Capture)
	if err != nil {
		return zero, fmt.Errorf("miniaudio: enumerate devices: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	needle := strings.ToLower(hint)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info.ID, nil
		}
	}
	return zero, fmt.Errorf("miniaudio: no capture device matching %q: %w", hint, audio.ErrDeviceUnavailable)
}

// classifyInitError maps a miniaudio device-init failure onto the capture
// error taxonomy.
func classifyInitError(source audio.Source, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return fmt.Errorf("miniaudio: init device: %w: %v", audio.ErrPermissionDenied, err)
	case source == audio.SourceDisplay:
		// Loopback init failing means the shared output carries no audio
		// this host can tap.
		return fmt.Errorf("miniaudio: init loopback device: %w: %v", audio.ErrNoAudioTrack, err)
	default:
		return fmt.Errorf("miniaudio: init device: %w: %v", audio.ErrDeviceUnavailable, err)
	}
}

// releaseContext uninitialises and frees an allocated miniaudio context.
func releaseContext(allocated *malgo.AllocatedContext) {
	if err := allocated.Uninit(); err != nil {
		slog.Warn("miniaudio: context uninit error", "err", err)
	}
	allocated.Free()
}

// blockSource implements [audio.BlockSource] for one miniaudio device.
type blockSource struct {
	allocated  *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int

	mu      sync.Mutex
	handler audio.BlockHandler
	closed  bool

	closeOnce sync.Once
}

// SampleRate implements [audio.BlockSource].
func (s *blockSource) SampleRate() int { return s.sampleRate }

// Start implements [audio.BlockSource]: registers h and starts the device.
func (s *blockSource) Start(h audio.BlockHandler) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("miniaudio: start on closed source: %w", audio.ErrProcessingSetup)
	}
	s.handler = h
	s.mu.Unlock()

	if err := s.device.Start(); err != nil {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
		return fmt.Errorf("miniaudio: start device: %w: %v", audio.ErrProcessingSetup, err)
	}
	return nil
}

// Close implements [audio.BlockSource]. Teardown order matters: the handler
// is detached before the device stops so no block is delivered against a
// closing pipeline, then the device and context are released.
func (s *blockSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.handler = nil
		s.closed = true
		s.mu.Unlock()

		if stopErr := s.device.Stop(); stopErr != nil {
			slog.Debug("miniaudio: device stop", "err", stopErr)
		}
		s.device.Uninit()
		releaseContext(s.allocated)
	})
	return nil
}

// onData runs on miniaudio's capture thread once per processing quantum.
func (s *blockSource) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil || len(input) == 0 {
		return
	}

	samples := audio.Float32FromBytes(input)
	if s.channels > 1 {
		samples = audio.ExtractChannel(samples, s.channels, 0)
	}
	h(samples)
}

// onStop fires when the device stops outside of Close (e.g. the underlying
// device disconnected). There is no mid-stream error channel; delivery simply
// ceases.
func (s *blockSource) onStop() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		slog.Warn("miniaudio: capture device stopped unexpectedly; delivery has ceased")
	}
}
