package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/soundtap/pkg/audio"
)

// ErrBackendNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: capture backend not registered")

// Registry maps capture backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]func(CaptureConfig) (audio.Environment, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]func(CaptureConfig) (audio.Environment, error)),
	}
}

// Register registers a capture backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory func(CaptureConfig) (audio.Environment, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// Create instantiates the capture environment registered under cfg.Backend
// (or [DefaultBackend] when empty). Returns [ErrBackendNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) Create(cfg CaptureConfig) (audio.Environment, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultBackend
	}

	r.mu.RLock()
	factory, ok := r.backends[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}

// Names returns the registered backend names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	return out
}
