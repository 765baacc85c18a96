package models

import "time"

// TrayItem is one registered status notifier peer. Items are created on
// registration, mutated only by the tray registry (icon refresh), and removed
// on unregistration or peer departure.
type TrayItem struct {
	// Service and Path together identify the remote peer.
	Service string
	Path    string

	// IconName is the peer's current icon identifier. IconKnown distinguishes
	// "no data yet / fetch failed" from a genuinely empty icon name.
	IconName  string
	IconKnown bool

	RefreshedAt time.Time
}

// Key returns the (service, path) identity in registration-string form,
// e.g. "org.example.App/StatusNotifierItem".
func (t TrayItem) Key() string {
	return t.Service + t.Path
}
