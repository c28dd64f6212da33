package portaudio

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/soundtap/pkg/audio"
)

func TestOpen_RejectsDisplaySource(t *testing.T) {
	// Display rejection happens before the library is touched, so this works
	// on machines without audio hardware.
	env := New()
	_, err := env.Open(context.Background(), audio.OpenRequest{Source: audio.SourceDisplay})
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Open(display) returned %v, want ErrDeviceUnavailable", err)
	}
}

func TestClassifyOpenError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", errors.New("Host error: Access denied by system"), audio.ErrPermissionDenied},
		{"permission", errors.New("permission to record was refused"), audio.ErrPermissionDenied},
		{"no device", errors.New("Invalid device"), audio.ErrDeviceUnavailable},
		{"busy", errors.New("Device unavailable"), audio.ErrDeviceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyOpenError(tc.err)
			if !errors.Is(got, tc.want) {
				t.Errorf("classifyOpenError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
