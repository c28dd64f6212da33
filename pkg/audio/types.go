package audio

// Frame is a fixed-size run of samples produced by the [Accumulator] for
// downstream consumption. Frames are the atomic unit of delivery — every frame
// emitted during a session has exactly the configured frame size and carries
// the session's fixed sample rate.
type Frame struct {
	// Samples holds mono float32 PCM in the range [-1, 1]. The slice is
	// freshly allocated per emission; sinks may retain it.
	Samples []float32

	// SampleRate in Hz, fixed for the lifetime of one capture session.
	SampleRate int
}

// Len returns the number of samples in the frame.
func (f Frame) Len() int { return len(f.Samples) }

// Sink consumes frames emitted by an [Accumulator]. WriteFrame is invoked
// synchronously on the capture delivery goroutine, once per emitted frame and
// in strict arrival order. Implementations must return quickly: a slow sink
// delays subsequent block processing and risks data loss at the source layer.
type Sink interface {
	WriteFrame(Frame)
}

// SinkFunc adapts a plain function to the [Sink] interface.
type SinkFunc func(Frame)

// WriteFrame implements [Sink].
func (f SinkFunc) WriteFrame(frame Frame) { f(frame) }

// ChanSink adapts a channel to the [Sink] interface for consumers that
// prefer pull-style delivery. WriteFrame blocks while the channel is full, so
// the consumer must keep up with the capture rate (or pass a buffered
// channel). The sink never closes C; close it from the producing side after
// the session has stopped, and use [Drain] to release a consumer that no
// longer wants the data.
type ChanSink struct {
	C chan Frame
}

// NewChanSink returns a ChanSink with a channel buffered to n frames.
func NewChanSink(n int) *ChanSink {
	return &ChanSink{C: make(chan Frame, n)}
}

// WriteFrame implements [Sink].
func (s *ChanSink) WriteFrame(frame Frame) { s.C <- frame }
