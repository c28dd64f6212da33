// Package config provides the configuration schema, loader, file watcher, and
// capture-backend registry for the soundtap capture service.
package config

import "github.com/MrWong99/soundtap/pkg/audio"

// LogLevel controls log verbosity for the soundtap service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for soundtap.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig holds network and logging settings for the service.
type ServerConfig struct {
	// ListenAddr is the TCP address the health/metrics endpoints listen on
	// (e.g. ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig describes the capture session the service runs.
type CaptureConfig struct {
	// Backend selects the registered capture environment
	// (e.g. "miniaudio", "portaudio").
	Backend string `yaml:"backend"`

	// Source selects what to capture: "microphone" or "display".
	// Defaults to microphone.
	Source audio.Source `yaml:"source"`

	// FrameSize is the number of samples per delivered frame. Zero means the
	// default (4096). Must not be negative.
	FrameSize int `yaml:"frame_size"`

	// SampleRate is an optional rate hint in Hz. Zero lets the backend pick.
	SampleRate int `yaml:"sample_rate"`

	// Device optionally names a specific capture device. Backend-dependent;
	// empty selects the host default.
	Device string `yaml:"device"`
}
