package app

import (
	"context"

	"github.com/MrWong99/soundtap/internal/observe"
	"github.com/MrWong99/soundtap/pkg/audio"
)

// instrumentEnv wraps an environment so every block the backend delivers is
// counted and sized before it reaches the accumulator.
func instrumentEnv(env audio.Environment, m *observe.Metrics, backend string) audio.Environment {
	return &instrumentedEnv{env: env, metrics: m, backend: backend}
}

type instrumentedEnv struct {
	env     audio.Environment
	metrics *observe.Metrics
	backend string
}

var _ audio.Environment = (*instrumentedEnv)(nil)

func (e *instrumentedEnv) Open(ctx context.Context, req audio.OpenRequest) (audio.BlockSource, error) {
	src, err := e.env.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return &instrumentedSource{
		src:     src,
		metrics: e.metrics,
		backend: e.backend,
		source:  string(req.Source),
	}, nil
}

type instrumentedSource struct {
	src     audio.BlockSource
	metrics *observe.Metrics
	backend string
	source  string
}

var _ audio.BlockSource = (*instrumentedSource)(nil)

func (s *instrumentedSource) SampleRate() int { return s.src.SampleRate() }

func (s *instrumentedSource) Start(handler audio.BlockHandler) error {
	return s.src.Start(func(block []float32) {
		s.metrics.RecordBlock(context.Background(), s.backend, s.source, len(block))
		handler(block)
	})
}

func (s *instrumentedSource) Close() error { return s.src.Close() }
