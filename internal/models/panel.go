// Package models defines the data types shared between the daemon components
// and the UI collaborator.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Layer values accepted for Panel.Layer.
const (
	LayerBackground = "background"
	LayerBottom     = "bottom"
	LayerTop        = "top"
	LayerOverlay    = "overlay"
)

// Position values accepted for Panel.Position.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
)

// Controls placement values accepted for Panel.Controls.
const (
	ControlsLeft  = "left"
	ControlsRight = "right"
	ControlsOff   = "off"
)

// ModuleKind is the closed set of module types a panel slot can resolve to.
// Unknown module names in the configuration map to ModulePlaceholder instead
// of being dispatched by string at render time.
type ModuleKind int

const (
	ModulePlaceholder ModuleKind = iota
	ModuleClock
	ModuleWorkspaces
	ModuleTaskbar
	ModuleTray
	ModuleControls
)

// String returns the configuration name of the module kind.
func (k ModuleKind) String() string {
	switch k {
	case ModuleClock:
		return "clock"
	case ModuleWorkspaces:
		return "hyprland-workspaces"
	case ModuleTaskbar:
		return "hyprland-taskbar"
	case ModuleTray:
		return "tray"
	case ModuleControls:
		return "controls"
	default:
		return "placeholder"
	}
}

// Module is one resolved slot in a panel's module list.
type Module struct {
	Kind ModuleKind
	// Name is the raw configuration string, kept so placeholder modules can
	// be surfaced to the user by their original name.
	Name string
}

// ClockConfig configures the clock module.
type ClockConfig struct {
	Format      string `json:"format"`
	Interval    int    `json:"interval"`
	CSSName     string `json:"css-name"`
	RootCSSName string `json:"root-css-name"`
}

// ControlsConfig configures the system controls module.
type ControlsConfig struct {
	Components []string `json:"components"`
	IconSize   int      `json:"icon_size"`
	Interval   int      `json:"interval"`
	CSSName    string   `json:"css_name"`
}

// WorkspacesConfig configures the workspaces module.
type WorkspacesConfig struct {
	NumWS                        int     `json:"num_ws"`
	ShowIcon                     bool    `json:"show_icon"`
	ShowInactiveWorkspaces       bool    `json:"show_inactive_workspaces"`
	ShowWorkspacesFromAllOutputs bool    `json:"show_workspaces_from_all_outputs"`
	ImageSize                    int     `json:"image_size"`
	ShowName                     bool    `json:"show_name"`
	NameLength                   int     `json:"name_length"`
	ShowEmpty                    bool    `json:"show_empty"`
	MarkContent                  bool    `json:"mark_content"`
	MarkFloating                 bool    `json:"mark_floating"`
	MarkXWayland                 bool    `json:"mark_xwayland"`
	Angle                        float64 `json:"angle"`
}

// Panel is one fully validated panel definition. The placement fields
// (Output, Monitor, Layer, Position, margins) are parsed intent only; the UI
// collaborator decides how they map onto actual monitors.
type Panel struct {
	Name          string
	Output        string
	Monitor       string
	CSSName       string
	Layer         string
	Position      string
	Height        int
	MarginTop     int
	MarginBottom  int
	MarginLeft    int
	MarginRight   int
	ExclusiveZone bool

	ModulesLeft   []Module
	ModulesCenter []Module
	ModulesRight  []Module

	// Controls is ControlsLeft, ControlsRight, or ControlsOff.
	Controls         string
	ControlsSettings ControlsConfig

	Clock      ClockConfig
	Workspaces WorkspacesConfig
}

// Snapshot is one immutable, fully parsed and validated configuration. It is
// superseded wholesale by the next successful parse, never edited.
type Snapshot struct {
	// ID uniquely identifies this parse, so reload notifications and log
	// lines can be correlated.
	ID string

	// Source is the path the snapshot was loaded from, ModTime its modtime
	// at parse time.
	Source  string
	ModTime time.Time

	Panels []Panel
}

// NewSnapshot creates a snapshot with a fresh identity. The loader stamps
// ModTime from the file; snapshots built in memory leave it zero.
func NewSnapshot(source string, panels []Panel) *Snapshot {
	return &Snapshot{
		ID:     uuid.NewString(),
		Source: source,
		Panels: panels,
	}
}

// Equal reports whether two snapshots are the same parse.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ID == other.ID
}
