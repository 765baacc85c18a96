package models

// UpdateKind identifies the producer stream a message belongs to. The event
// bus keeps one bounded queue per kind so a noisy producer only ever displaces
// its own pending updates.
type UpdateKind int

const (
	KindConfig UpdateKind = iota
	KindCompositor
	KindTray
)

// Update is the sole payload type flowing from producers to the reconciler.
type Update interface {
	UpdateKind() UpdateKind
}

// ConfigApplied reports a successful configuration reload.
type ConfigApplied struct {
	Snapshot *Snapshot
	// StyleOnly is set when only the stylesheet changed: the snapshot is the
	// one already in effect and the collaborator should re-read the style
	// file without rebuilding the widget tree from config.
	StyleOnly bool
}

// ConfigRejected reports a failed configuration reload. The previous good
// snapshot stays authoritative.
type ConfigRejected struct {
	Err error
}

// CompositorChanged carries a new compositor snapshot.
type CompositorChanged struct {
	Snapshot *CompositorSnapshot
}

// CompositorStale reports that compositor queries have been failing; Failures
// is the consecutive-failure count at the time of reporting. Stale is cleared
// by the next CompositorChanged.
type CompositorStale struct {
	Failures int
	Err      error
}

// TrayChanged carries the updated ordered tray item list.
type TrayChanged struct {
	Items []TrayItem
}

func (ConfigApplied) UpdateKind() UpdateKind     { return KindConfig }
func (ConfigRejected) UpdateKind() UpdateKind    { return KindConfig }
func (CompositorChanged) UpdateKind() UpdateKind { return KindCompositor }
func (CompositorStale) UpdateKind() UpdateKind   { return KindCompositor }
func (TrayChanged) UpdateKind() UpdateKind       { return KindTray }
