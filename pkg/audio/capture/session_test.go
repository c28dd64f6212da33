package capture_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/soundtap/pkg/audio"
	"github.com/MrWong99/soundtap/pkg/audio/capture"
	"github.com/MrWong99/soundtap/pkg/audio/mock"
)

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestStart_DefaultsAndDelivery(t *testing.T) {
	src := &mock.BlockSource{SampleRateResult: 44100}
	env := &mock.Environment{OpenResult: src}
	sink := &mock.Sink{}

	sess, err := capture.Start(context.Background(), env, sink, capture.Config{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop()

	if len(env.OpenCalls) != 1 {
		t.Fatalf("expected 1 Open call, got %d", len(env.OpenCalls))
	}
	if got := env.OpenCalls[0].Request.Source; got != audio.SourceMicrophone {
		t.Errorf("default source: got %q, want microphone", got)
	}
	if sess.FrameSize() != capture.DefaultFrameSize {
		t.Errorf("default frame size: got %d, want %d", sess.FrameSize(), capture.DefaultFrameSize)
	}
	if sess.SampleRate() != 44100 {
		t.Errorf("sample rate: got %d, want 44100", sess.SampleRate())
	}

	src.EmitBlock(ramp(0, capture.DefaultFrameSize+10))

	frames := sink.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Len() != capture.DefaultFrameSize {
		t.Errorf("frame length: got %d, want %d", frames[0].Len(), capture.DefaultFrameSize)
	}
	if frames[0].SampleRate != 44100 {
		t.Errorf("frame sample rate: got %d, want 44100", frames[0].SampleRate)
	}
	if sess.Pending() != 10 {
		t.Errorf("pending: got %d, want 10", sess.Pending())
	}
}

func TestStart_RejectsInvalidConfig(t *testing.T) {
	env := &mock.Environment{OpenResult: &mock.BlockSource{}}
	sink := &mock.Sink{}

	cases := []capture.Config{
		{FrameSize: -1},
		{Source: "line-in"},
		{SampleRate: -8000},
	}
	for _, cfg := range cases {
		if _, err := capture.Start(context.Background(), env, sink, cfg); !errors.Is(err, audio.ErrInvalidConfig) {
			t.Errorf("config %+v: got %v, want ErrInvalidConfig", cfg, err)
		}
	}
	// Invalid configs must be rejected before the environment is touched.
	if len(env.OpenCalls) != 0 {
		t.Errorf("expected no Open calls for invalid configs, got %d", len(env.OpenCalls))
	}
}

func TestStart_PermissionDeniedSurfacesTyped(t *testing.T) {
	env := &mock.Environment{OpenError: fmt.Errorf("prompt dismissed: %w", audio.ErrPermissionDenied)}
	sink := &mock.Sink{}

	_, err := capture.Start(context.Background(), env, sink, capture.Config{FrameSize: 100})
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("got %v, want ErrPermissionDenied", err)
	}
	if len(sink.Frames()) != 0 {
		t.Error("no frame may be delivered when acquisition fails")
	}
}

func TestStart_NoAudioTrackSurfacesTyped(t *testing.T) {
	env := &mock.Environment{OpenError: audio.ErrNoAudioTrack}
	sink := &mock.Sink{}

	_, err := capture.Start(context.Background(), env, sink, capture.Config{Source: audio.SourceDisplay})
	if !errors.Is(err, audio.ErrNoAudioTrack) {
		t.Fatalf("got %v, want ErrNoAudioTrack", err)
	}
}

func TestStart_ProcessingSetupFailureReleasesSource(t *testing.T) {
	src := &mock.BlockSource{StartError: errors.New("graph node rejected")}
	env := &mock.Environment{OpenResult: src}
	sink := &mock.Sink{}

	_, err := capture.Start(context.Background(), env, sink, capture.Config{FrameSize: 100})
	if !errors.Is(err, audio.ErrProcessingSetup) {
		t.Fatalf("got %v, want ErrProcessingSetup", err)
	}
	if !src.Closed() {
		t.Error("partially acquired source must be released before surfacing the error")
	}
}

func TestStart_CancelledBeforeGrantReleasesSource(t *testing.T) {
	src := &mock.BlockSource{}
	ctx, cancel := context.WithCancel(context.Background())
	env := &mock.Environment{
		OpenHook: func(ctx context.Context, _ audio.OpenRequest) (audio.BlockSource, error) {
			// The caller abandons the attempt while the permission prompt is
			// still pending; the grant then resolves anyway.
			cancel()
			return src, nil
		},
	}
	sink := &mock.Sink{}

	_, err := capture.Start(ctx, env, sink, capture.Config{FrameSize: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if !src.Closed() {
		t.Error("source granted after cancellation must be released, not wired in")
	}
	if len(sink.Frames()) != 0 {
		t.Error("no frame may be delivered after a cancelled start")
	}
}

func TestStop_DiscardsRemainderWithoutFlush(t *testing.T) {
	src := &mock.BlockSource{}
	env := &mock.Environment{OpenResult: src}
	sink := &mock.Sink{}

	sess, err := capture.Start(context.Background(), env, sink, capture.Config{FrameSize: 100})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	src.EmitBlock(ramp(0, 50))
	sess.Stop()

	if got := len(sink.Frames()); got != 0 {
		t.Errorf("teardown must not flush the partial remainder: got %d frames", got)
	}
	if got := sess.Discarded(); got != 50 {
		t.Errorf("discarded: got %d, want 50", got)
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	src := &mock.BlockSource{}
	env := &mock.Environment{OpenResult: src}
	sink := &mock.Sink{}

	sess, err := capture.Start(context.Background(), env, sink, capture.Config{FrameSize: 100})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sess.Stop()
	sess.Stop()
	sess.Stop()

	if src.CallCountClose != 1 {
		t.Errorf("source must be closed exactly once, got %d", src.CallCountClose)
	}
}

func TestStop_SilencesDelivery(t *testing.T) {
	src := &mock.BlockSource{}
	env := &mock.Environment{OpenResult: src}
	sink := &mock.Sink{}

	sess, err := capture.Start(context.Background(), env, sink, capture.Config{FrameSize: 10})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess.Stop()

	// A block arriving after teardown is dropped by the detached source.
	src.EmitBlock(ramp(0, 100))
	if got := len(sink.Frames()); got != 0 {
		t.Errorf("expected no frames after Stop, got %d", got)
	}
}

func TestSessions_AreIndependent(t *testing.T) {
	srcA := &mock.BlockSource{SampleRateResult: 48000}
	srcB := &mock.BlockSource{SampleRateResult: 16000}
	sinkA := &mock.Sink{}
	sinkB := &mock.Sink{}

	envA := &mock.Environment{OpenResult: srcA}
	envB := &mock.Environment{OpenResult: srcB}

	sessA, err := capture.Start(context.Background(), envA, sinkA, capture.Config{FrameSize: 10})
	if err != nil {
		t.Fatalf("Start A: %v", err)
	}
	defer sessA.Stop()
	sessB, err := capture.Start(context.Background(), envB, sinkB, capture.Config{FrameSize: 20})
	if err != nil {
		t.Fatalf("Start B: %v", err)
	}

	srcA.EmitBlock(ramp(0, 15))
	srcB.EmitBlock(ramp(0, 15))

	if got := len(sinkA.Frames()); got != 1 {
		t.Errorf("session A: got %d frames, want 1", got)
	}
	if got := len(sinkB.Frames()); got != 0 {
		t.Errorf("session B: got %d frames, want 0", got)
	}
	if sessA.Pending() != 5 || sessB.Pending() != 15 {
		t.Errorf("pending: A=%d B=%d, want 5 and 15", sessA.Pending(), sessB.Pending())
	}

	// Stopping B must not disturb A.
	sessB.Stop()
	srcA.EmitBlock(ramp(15, 5))
	if got := len(sinkA.Frames()); got != 2 {
		t.Errorf("session A after B stopped: got %d frames, want 2", got)
	}
}
