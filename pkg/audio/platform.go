// Package audio defines the interfaces and types for live audio capture and
// fixed-size frame delivery within soundtap.
//
// The three primary abstractions are:
//
//   - [Environment] — the injected host audio capability; opens a capture
//     source and returns a [BlockSource].
//   - [BlockSource] — a push-style producer of variable-length sample blocks
//     at the session's fixed sample rate.
//   - [Accumulator] — re-chunks the block stream into fixed-size [Frame]
//     values delivered to a [Sink].
//
// Implementations of [Environment] are provided by backend-specific adapter
// packages (e.g. audio/malgo, audio/portaudio). The interfaces are
// intentionally narrow so the session layer stays decoupled from host details
// and tests can substitute a fake environment without touching global state.
//
// This package lives under pkg/ because external code (third-party capture
// backends) is expected to implement [Environment] and [BlockSource].
package audio

import "context"

// Source selects which host capability a capture session draws audio from.
type Source string

const (
	// SourceMicrophone captures from the default audio input device.
	SourceMicrophone Source = "microphone"

	// SourceDisplay captures the audio of shared screen/window output
	// (loopback). The host may grant the share without an audio track; that
	// surfaces as [ErrNoAudioTrack].
	SourceDisplay Source = "display"
)

// IsValid reports whether s is a recognised capture source.
func (s Source) IsValid() bool {
	return s == SourceMicrophone || s == SourceDisplay
}

// BlockHandler receives one raw sample block as it becomes available. Blocks
// are mono float32 PCM of host-determined, variable length — smaller than,
// equal to, or larger than any downstream frame size. The host serialises
// invocations for a single source; handlers must not block.
type BlockHandler func(block []float32)

// BlockSource is a live, push-style capture stream obtained from
// [Environment.Open].
//
// The source delivers nothing until [BlockSource.Start] registers a handler.
// Once started it keeps producing until [BlockSource.Close] releases every
// underlying native resource. There is no mid-stream error signal: a source
// that fails after Start simply stops delivering blocks.
type BlockSource interface {
	// SampleRate returns the stream's sample rate in Hz. The rate is fixed
	// for the lifetime of the source.
	SampleRate() int

	// Start connects h to the stream and begins delivery. Calling Start a
	// second time replaces the handler of an implementation-defined subset of
	// backends; the session layer calls it exactly once.
	Start(h BlockHandler) error

	// Close detaches the handler, then releases the native resources in
	// order: processing tap, device connection, host context, any transient
	// registration artifact, and finally the device itself. Close is
	// idempotent; calls after the first are no-ops.
	Close() error
}

// OpenRequest carries the parameters for [Environment.Open].
type OpenRequest struct {
	// Source selects microphone or display capture.
	Source Source

	// SampleRate is an optional rate hint in Hz. Zero lets the backend pick
	// the host's native or preferred rate. The granted rate is reported by
	// [BlockSource.SampleRate] and may differ from the hint.
	SampleRate int

	// Device optionally names a specific capture device. Empty selects the
	// host default. Device enumeration itself is owned by the host.
	Device string
}

// Environment is the injected host audio capability. Implementations wrap a
// platform audio API (miniaudio, PortAudio, …) and expose a uniform
// [BlockSource] abstraction.
//
// Open blocks until the host grants or refuses the capture (this may involve
// a user-facing permission prompt) and must honour ctx cancellation: when ctx
// is done before the grant resolves, anything already acquired is released
// and a wrapped ctx error is returned. Failures are reported as wrapped
// [ErrPermissionDenied], [ErrDeviceUnavailable], [ErrNoAudioTrack] or
// [ErrProcessingSetup].
//
// Implementations must be safe for concurrent use; sources opened from the
// same environment are independent and must not interfere.
type Environment interface {
	Open(ctx context.Context, req OpenRequest) (BlockSource, error)
}
