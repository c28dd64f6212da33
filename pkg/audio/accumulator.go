package audio

import "fmt"

// Accumulator re-chunks an irregular stream of sample blocks into fixed-size
// frames. Incoming blocks are appended to an overflow buffer; every time the
// buffer holds at least one full frame, the frame is cut from the front and
// delivered to the sink, carrying the remainder forward. After [Accumulator.Push]
// returns, the buffer always holds strictly fewer than frameSize samples.
//
// Frames are emitted in arrival order with no gaps, duplication or reordering.
// Each emitted frame owns a freshly allocated sample slice.
//
// An Accumulator is owned by a single capture session and is not safe for
// concurrent use; the host's capture scheduler serialises Push invocations.
type Accumulator struct {
	frameSize  int
	sampleRate int
	sink       Sink
	pending    []float32
}

// NewAccumulator creates an accumulator that emits frames of frameSize samples
// at sampleRate to sink. Returns a wrapped [ErrInvalidConfig] when frameSize
// or sampleRate is not positive, or when sink is nil.
func NewAccumulator(frameSize, sampleRate int, sink Sink) (*Accumulator, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: frame size %d must be positive", ErrInvalidConfig, frameSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidConfig, sampleRate)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: sink must not be nil", ErrInvalidConfig)
	}
	return &Accumulator{
		frameSize:  frameSize,
		sampleRate: sampleRate,
		sink:       sink,
		pending:    make([]float32, 0, frameSize),
	}, nil
}

// Push appends block to the overflow buffer and drains every full frame it
// can produce before returning. A single oversized block may emit multiple
// frames; an undersized block emits none and only grows the buffer. A
// zero-length block is a no-op.
func (a *Accumulator) Push(block []float32) {
	if len(block) == 0 {
		return
	}
	a.pending = append(a.pending, block...)

	for len(a.pending) >= a.frameSize {
		samples := make([]float32, a.frameSize)
		copy(samples, a.pending)

		// Shift the remainder to the front so the buffer never grows beyond
		// frameSize-1 retained samples between pushes.
		n := copy(a.pending, a.pending[a.frameSize:])
		a.pending = a.pending[:n]

		a.sink.WriteFrame(Frame{Samples: samples, SampleRate: a.sampleRate})
	}
}

// Pending returns the number of buffered samples not yet emitted.
func (a *Accumulator) Pending() int { return len(a.pending) }

// FrameSize returns the configured frame size in samples.
func (a *Accumulator) FrameSize() int { return a.frameSize }

// SampleRate returns the sample rate stamped on emitted frames.
func (a *Accumulator) SampleRate() int { return a.sampleRate }

// Reset discards any buffered remainder without emitting it. Session teardown
// calls this deliberately: a partial frame is never flushed on close.
func (a *Accumulator) Reset() { a.pending = a.pending[:0] }
