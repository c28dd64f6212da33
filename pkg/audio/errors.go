package audio

import "errors"

// Sentinel errors returned (wrapped) by [Environment.Open] and
// [github.com/MrWong99/soundtap/pkg/audio/capture.Start]. Callers classify
// failures with errors.Is; each is a terminal failure of the start attempt and
// there is no retry policy — retry by starting again.
var (
	// ErrPermissionDenied is returned when the host refuses access to the
	// requested capture source (e.g. the user rejects the capture prompt).
	ErrPermissionDenied = errors.New("audio: capture permission denied")

	// ErrDeviceUnavailable is returned when no compatible input exists for
	// the requested source.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

	// ErrNoAudioTrack is returned when a display capture was granted but the
	// shared stream carries no audio. This is an error, never silently ignored.
	ErrNoAudioTrack = errors.New("audio: display stream has no audio track")

	// ErrInvalidConfig is returned when the capture configuration is invalid
	// (e.g. a non-positive frame size or an unknown source).
	ErrInvalidConfig = errors.New("audio: invalid capture configuration")

	// ErrProcessingSetup is returned when the source was acquired but the
	// block-delivery path could not be registered or connected.
	ErrProcessingSetup = errors.New("audio: processing setup failed")
)
