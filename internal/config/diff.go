package config

// ConfigDiff describes what changed between two configs and how disruptive
// applying the change is: log level is hot-reloadable, a capture change
// restarts the session, a listen address change needs a process restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CaptureChanged is true when any capture field differs; the running
	// session must be stopped and started with the new settings.
	CaptureChanged bool

	// ListenAddrChanged is true when the HTTP listen address differs; this
	// cannot be applied without restarting the process.
	ListenAddrChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.CaptureChanged || d.ListenAddrChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Capture != new.Capture {
		d.CaptureChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.ListenAddrChanged = true
	}

	return d
}
