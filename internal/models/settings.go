package models

import "time"

// Settings holds engine tuning loaded from ~/.config/waypanel/settings.yaml.
// Every field has a working default; the file is optional.
type Settings struct {
	Version int `yaml:"version"`

	// DebounceMS is the quiet period after a file change before a reload is
	// attempted.
	DebounceMS int `yaml:"debounce_ms"`

	// WatchRetrySec is how often a failed watch subscription is retried.
	WatchRetrySec int `yaml:"watch_retry_sec"`

	// CompositorPollMS is the compositor poll interval.
	CompositorPollMS int `yaml:"compositor_poll_ms"`

	// CompositorStaleAfter is the number of consecutive query failures before
	// a staleness notice is emitted.
	CompositorStaleAfter int `yaml:"compositor_stale_after"`

	// TrayRefreshSec is the tray icon refresh interval.
	TrayRefreshSec int `yaml:"tray_refresh_sec"`

	// BusCapacity is the per-stream pending message limit on the event bus.
	BusCapacity int `yaml:"bus_capacity"`
}

// NewSettings returns settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version:              1,
		DebounceMS:           300,
		WatchRetrySec:        2,
		CompositorPollMS:     750,
		CompositorStaleAfter: 3,
		TrayRefreshSec:       2,
		BusCapacity:          16,
	}
}

// Normalize clamps out-of-range values back to their defaults so a partially
// filled settings file cannot stall a producer loop.
func (s *Settings) Normalize() {
	def := NewSettings()
	if s.DebounceMS <= 0 {
		s.DebounceMS = def.DebounceMS
	}
	if s.WatchRetrySec <= 0 {
		s.WatchRetrySec = def.WatchRetrySec
	}
	if s.CompositorPollMS <= 0 {
		s.CompositorPollMS = def.CompositorPollMS
	}
	if s.CompositorStaleAfter <= 0 {
		s.CompositorStaleAfter = def.CompositorStaleAfter
	}
	if s.TrayRefreshSec <= 0 {
		s.TrayRefreshSec = def.TrayRefreshSec
	}
	if s.BusCapacity <= 0 {
		s.BusCapacity = def.BusCapacity
	}
}

// Debounce returns DebounceMS as a duration.
func (s *Settings) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// WatchRetry returns WatchRetrySec as a duration.
func (s *Settings) WatchRetry() time.Duration {
	return time.Duration(s.WatchRetrySec) * time.Second
}

// CompositorPoll returns CompositorPollMS as a duration.
func (s *Settings) CompositorPoll() time.Duration {
	return time.Duration(s.CompositorPollMS) * time.Millisecond
}

// TrayRefresh returns TrayRefreshSec as a duration.
func (s *Settings) TrayRefresh() time.Duration {
	return time.Duration(s.TrayRefreshSec) * time.Second
}
