package audio_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// rampBlock returns n samples counting up from start, so concatenation
// ordering can be asserted across block boundaries.
func rampBlock(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

// collectSink records every frame it receives.
type collectSink struct {
	frames []audio.Frame
}

func (s *collectSink) WriteFrame(f audio.Frame) {
	s.frames = append(s.frames, f)
}

func TestNewAccumulator_RejectsInvalidConfig(t *testing.T) {
	sink := &collectSink{}

	if _, err := audio.NewAccumulator(0, 48000, sink); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Errorf("frameSize=0: got %v, want ErrInvalidConfig", err)
	}
	if _, err := audio.NewAccumulator(-4096, 48000, sink); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Errorf("frameSize=-4096: got %v, want ErrInvalidConfig", err)
	}
	if _, err := audio.NewAccumulator(4096, 0, sink); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Errorf("sampleRate=0: got %v, want ErrInvalidConfig", err)
	}
	if _, err := audio.NewAccumulator(4096, 48000, nil); !errors.Is(err, audio.ErrInvalidConfig) {
		t.Errorf("nil sink: got %v, want ErrInvalidConfig", err)
	}
}

func TestAccumulator_UndersizedBlocksAccumulate(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(100, 48000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	acc.Push(rampBlock(0, 30))
	acc.Push(rampBlock(30, 30))
	acc.Push(rampBlock(60, 30))

	if len(sink.frames) != 0 {
		t.Fatalf("expected 0 frames after 3×30 samples, got %d", len(sink.frames))
	}
	if acc.Pending() != 90 {
		t.Fatalf("expected 90 pending samples, got %d", acc.Pending())
	}

	// A fourth block of 10 completes exactly one frame.
	acc.Push(rampBlock(90, 10))

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sink.frames))
	}
	if acc.Pending() != 0 {
		t.Errorf("expected 0 pending samples, got %d", acc.Pending())
	}
	frame := sink.frames[0]
	if frame.Len() != 100 {
		t.Errorf("frame length: got %d, want 100", frame.Len())
	}
	if frame.SampleRate != 48000 {
		t.Errorf("frame sample rate: got %d, want 48000", frame.SampleRate)
	}
	for i, s := range frame.Samples {
		if s != float32(i) {
			t.Fatalf("sample %d: got %v, want %v", i, s, float32(i))
		}
	}
}

func TestAccumulator_OversizedBlockSplits(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(100, 16000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	// 2.5 frames in one block → exactly 2 frames, half a frame pending.
	acc.Push(rampBlock(0, 250))

	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 frames from a 250-sample block, got %d", len(sink.frames))
	}
	if acc.Pending() != 50 {
		t.Errorf("expected 50 pending samples, got %d", acc.Pending())
	}
	if sink.frames[0].Samples[0] != 0 || sink.frames[1].Samples[0] != 100 {
		t.Errorf("frames out of order: first samples %v, %v",
			sink.frames[0].Samples[0], sink.frames[1].Samples[0])
	}
}

func TestAccumulator_ExactFrameBoundary(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(64, 44100, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	acc.Push(rampBlock(0, 64))

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sink.frames))
	}
	if acc.Pending() != 0 {
		t.Errorf("expected empty buffer after exact-size block, got %d pending", acc.Pending())
	}
}

func TestAccumulator_EmptyBlockIsNoOp(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(100, 48000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	acc.Push(rampBlock(0, 40))
	acc.Push(nil)
	acc.Push([]float32{})

	if len(sink.frames) != 0 {
		t.Errorf("expected no frames, got %d", len(sink.frames))
	}
	if acc.Pending() != 40 {
		t.Errorf("expected 40 pending samples, got %d", acc.Pending())
	}
}

func TestAccumulator_NoLossNoDuplication(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(100, 48000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	// Irregular cadence: small, large, exact, tiny.
	var input []float32
	next := 0
	for _, n := range []int{33, 250, 100, 1, 7, 180, 64} {
		block := rampBlock(next, n)
		input = append(input, block...)
		next += n
		acc.Push(block)
	}

	var emitted []float32
	for _, f := range sink.frames {
		if f.Len() != 100 {
			t.Fatalf("frame size invariant violated: got %d samples", f.Len())
		}
		emitted = append(emitted, f.Samples...)
	}

	if len(emitted)+acc.Pending() != len(input) {
		t.Fatalf("sample count mismatch: emitted %d + pending %d != input %d",
			len(emitted), acc.Pending(), len(input))
	}
	for i, s := range emitted {
		if s != input[i] {
			t.Fatalf("emitted sample %d: got %v, want %v (order or loss violation)", i, s, input[i])
		}
	}
}

func TestAccumulator_FramesOwnTheirStorage(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(4, 48000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	block := rampBlock(0, 4)
	acc.Push(block)
	// Mutate the pushed block and push again; the first frame must not change.
	for i := range block {
		block[i] = -1
	}
	acc.Push(block)

	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(sink.frames))
	}
	if sink.frames[0].Samples[0] != 0 || sink.frames[0].Samples[3] != 3 {
		t.Errorf("first frame was mutated after emission: %v", sink.frames[0].Samples)
	}
}

func TestAccumulator_ResetDiscardsRemainder(t *testing.T) {
	sink := &collectSink{}
	acc, err := audio.NewAccumulator(100, 48000, sink)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	acc.Push(rampBlock(0, 50))
	acc.Reset()

	if len(sink.frames) != 0 {
		t.Errorf("Reset must not flush: got %d frames", len(sink.frames))
	}
	if acc.Pending() != 0 {
		t.Errorf("expected empty buffer after Reset, got %d pending", acc.Pending())
	}
}
