// Package mock provides in-memory mock implementations of the
// [audio.Environment], [audio.BlockSource], and [audio.Sink] interfaces for
// use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.BlockSource{SampleRateResult: 48000}
//	env := &mock.Environment{OpenResult: src}
//	sink := &mock.Sink{}
//	sess, err := capture.Start(ctx, env, sink, capture.Config{FrameSize: 100})
//	src.EmitBlock(make([]float32, 250)) // drives the accumulator
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// ─── Environment ──────────────────────────────────────────────────────────────

// OpenCall records the arguments of a single [Environment.Open] invocation.
type OpenCall struct {
	// Request is the request passed to Open.
	Request audio.OpenRequest
}

// Environment is a mock implementation of [audio.Environment].
type Environment struct {
	mu sync.Mutex

	// OpenResult is the [audio.BlockSource] returned by Open.
	OpenResult audio.BlockSource

	// OpenError is the error returned by Open.
	OpenError error

	// OpenHook, when non-nil, is called instead of returning
	// OpenResult/OpenError. Use it to simulate a slow permission prompt or
	// context-sensitive behaviour. The call is still recorded.
	OpenHook func(ctx context.Context, req audio.OpenRequest) (audio.BlockSource, error)

	// OpenCalls records all Open invocations.
	OpenCalls []OpenCall
}

// Opens returns the number of recorded Open invocations. Safe to call while
// the environment is in use by another goroutine.
func (e *Environment) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.OpenCalls)
}

// Open implements [audio.Environment]. Records the call and returns
// OpenResult / OpenError, or delegates to OpenHook when set.
func (e *Environment) Open(ctx context.Context, req audio.OpenRequest) (audio.BlockSource, error) {
	e.mu.Lock()
	e.OpenCalls = append(e.OpenCalls, OpenCall{Request: req})
	hook := e.OpenHook
	res, err := e.OpenResult, e.OpenError
	e.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	return res, err
}

// ─── BlockSource ──────────────────────────────────────────────────────────────

// BlockSource is a mock implementation of [audio.BlockSource]. Tests drive it
// by calling [BlockSource.EmitBlock] after the session has started it.
type BlockSource struct {
	mu sync.Mutex

	// SampleRateResult is returned by SampleRate. Defaults to 48000 when zero.
	SampleRateResult int

	// StartError is returned by Start.
	StartError error

	// CloseError is returned by the first Close call.
	CloseError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// Handler holds the most recently registered block handler.
	Handler audio.BlockHandler

	closed bool
}

// SampleRate implements [audio.BlockSource].
func (s *BlockSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SampleRateResult == 0 {
		return 48000
	}
	return s.SampleRateResult
}

// Start implements [audio.BlockSource]. Records h as the active handler.
func (s *BlockSource) Start(h audio.BlockHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartError != nil {
		return s.StartError
	}
	s.Handler = h
	return nil
}

// Started reports whether Start has been called at least once. Safe to call
// while the source is in use by another goroutine.
func (s *BlockSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStart > 0
}

// Close implements [audio.BlockSource]. The handler is detached on the first
// call; subsequent calls are recorded but are no-ops returning nil.
func (s *BlockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if s.closed {
		return nil
	}
	s.closed = true
	s.Handler = nil
	return s.CloseError
}

// Closed reports whether Close has been called at least once.
func (s *BlockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// EmitBlock delivers block to the registered handler, simulating the host's
// capture scheduler. Blocks emitted after Close (or before Start) are dropped,
// matching a real source that has been disconnected.
func (s *BlockSource) EmitBlock(block []float32) {
	s.mu.Lock()
	h := s.Handler
	s.mu.Unlock()
	if h != nil {
		h(block)
	}
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink] that records every frame.
type Sink struct {
	mu sync.Mutex

	// WriteFrameCalls records all delivered frames in arrival order.
	WriteFrameCalls []audio.Frame
}

// WriteFrame implements [audio.Sink].
func (s *Sink) WriteFrame(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WriteFrameCalls = append(s.WriteFrameCalls, f)
}

// Frames returns a copy of all recorded frames.
func (s *Sink) Frames() []audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Frame, len(s.WriteFrameCalls))
	copy(out, s.WriteFrameCalls)
	return out
}
