package audio_test

import (
	"testing"

	"github.com/MrWong99/soundtap/pkg/audio"
)

func TestSinkFunc_ForwardsFrame(t *testing.T) {
	var got audio.Frame
	sink := audio.SinkFunc(func(f audio.Frame) { got = f })

	sink.WriteFrame(audio.Frame{Samples: []float32{0.5}, SampleRate: 48000})

	if got.Len() != 1 || got.SampleRate != 48000 {
		t.Errorf("sink received %+v, want 1 sample at 48000 Hz", got)
	}
}

func TestChanSink_DeliversInOrder(t *testing.T) {
	sink := audio.NewChanSink(4)

	for i := range 3 {
		sink.WriteFrame(audio.Frame{Samples: []float32{float32(i)}, SampleRate: 48000})
	}
	close(sink.C)

	var order []float32
	for f := range sink.C {
		order = append(order, f.Samples[0])
	}
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("frames arrived out of order: %v", order)
	}
}

func TestDrain_UnblocksProducer(t *testing.T) {
	sink := audio.NewChanSink(0)

	done := make(chan struct{})
	go func() {
		// Unbuffered channel: these sends block until drained.
		for range 10 {
			sink.WriteFrame(audio.Frame{Samples: make([]float32, 4)})
		}
		close(sink.C)
		close(done)
	}()

	audio.Drain(sink.C)
	<-done
}
