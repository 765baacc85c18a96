package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waypanel-io/waypanel/internal/models"
)

// ParseError describes why a configuration file was rejected. Location is a
// human-readable pointer into the document ("panels[2].height", "line 14").
type ParseError struct {
	Path     string
	Location string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Location, e.Message)
}

// Load parses and validates the panel configuration at path. It is a pure
// function of the file contents: on success it returns a fresh immutable
// snapshot, on failure a *ParseError, and it never touches shared state.
func Load(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Message: fmt.Sprintf("cannot read config: %v", err)}
	}

	info, err := os.Stat(path)
	var modTime time.Time
	if err == nil {
		modTime = info.ModTime()
	}

	snap, perr := Parse(data)
	if perr != nil {
		perr.Path = path
		return nil, perr
	}

	snap.Source = path
	snap.ModTime = modTime
	return snap, nil
}

// Parse parses and validates raw configuration bytes. Exposed separately from
// Load so tests can exercise the parser without files.
func Parse(data []byte) (*models.Snapshot, *ParseError) {
	var rawPanels []json.RawMessage
	if err := json.Unmarshal(data, &rawPanels); err != nil {
		return nil, jsonError(data, err, "")
	}

	panels := make([]models.Panel, 0, len(rawPanels))
	for i, raw := range rawPanels {
		dto := defaultPanelDTO()
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, jsonError(raw, err, fmt.Sprintf("panels[%d]", i))
		}
		panel, perr := dto.toPanel(fmt.Sprintf("panels[%d]", i))
		if perr != nil {
			return nil, perr
		}
		panels = append(panels, panel)
	}

	return &models.Snapshot{
		ID:     uuid.NewString(),
		Panels: panels,
	}, nil
}

// panelDTO mirrors the on-disk panel object. Unknown keys are ignored by
// encoding/json, which gives us forward compatibility for free; defaults are
// pre-populated before unmarshaling so absent keys keep them.
type panelDTO struct {
	Name          string        `json:"name"`
	Output        string        `json:"output"`
	Monitor       string        `json:"monitor"`
	CSSName       string        `json:"css-name"`
	Layer         string        `json:"layer"`
	Position      string        `json:"position"`
	Height        int           `json:"height"`
	MarginTop     int           `json:"margin-top"`
	MarginBottom  int           `json:"margin-bottom"`
	MarginLeft    int           `json:"margin-left"`
	MarginRight   int           `json:"margin-right"`
	ExclusiveZone bool          `json:"exclusive-zone"`
	ModulesLeft   []string      `json:"modules-left"`
	ModulesCenter []string      `json:"modules-center"`
	ModulesRight  []string      `json:"modules-right"`
	Controls      controlsValue `json:"controls"`
	ControlsConf  controlsDTO   `json:"controls-settings"`
	Workspaces    workspacesDTO `json:"hyprland-workspaces"`
	Clock         clockDTO      `json:"clock"`
}

type clockDTO struct {
	Format      string `json:"format"`
	Interval    int    `json:"interval"`
	CSSName     string `json:"css-name"`
	RootCSSName string `json:"root-css-name"`
}

type controlsDTO struct {
	Components []string `json:"components"`
	IconSize   int      `json:"icon_size"`
	Interval   int      `json:"interval"`
	CSSName    string   `json:"css_name"`
}

type workspacesDTO struct {
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

func defaultPanelDTO() panelDTO {
	return panelDTO{
		Layer:         models.LayerBottom,
		Position:      models.PositionTop,
		ExclusiveZone: true,
		ControlsConf:  defaultControlsDTO(),
		Clock: clockDTO{
			Format:   "%H:%M",
			Interval: 1,
		},
		Workspaces: workspacesDTO{
			NumWS:                        10,
			ShowIcon:                     true,
			ShowInactiveWorkspaces:       true,
			ShowWorkspacesFromAllOutputs: true,
			ImageSize:                    16,
			ShowName:                     true,
			NameLength:                   40,
			ShowEmpty:                    true,
			MarkContent:                  true,
			MarkFloating:                 true,
			MarkXWayland:                 true,
		},
	}
}

func defaultControlsDTO() controlsDTO {
	return controlsDTO{
		Components: []string{"brightness", "volume", "battery"},
		IconSize:   16,
		Interval:   1,
	}
}

// controlsValue accepts either the documented string form ("left", "right",
// "off") or the legacy object form, which behaves as "right" with inline
// settings.
type controlsValue struct {
	position string
	settings *controlsDTO
}

func (c *controlsValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.position = s
		return nil
	}

	settings := defaultControlsDTO()
	if err := json.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("controls must be a string or an object: %w", err)
	}
	c.position = models.ControlsRight
	c.settings = &settings
	return nil
}

func (d *panelDTO) toPanel(loc string) (models.Panel, *ParseError) {
	fail := func(field, msg string) (models.Panel, *ParseError) {
		return models.Panel{}, &ParseError{Location: loc + "." + field, Message: msg}
	}

	switch d.Layer {
	case models.LayerBackground, models.LayerBottom, models.LayerTop, models.LayerOverlay:
	default:
		return fail("layer", fmt.Sprintf("unknown layer %q (want background, bottom, top, or overlay)", d.Layer))
	}

	switch d.Position {
	case models.PositionTop, models.PositionBottom:
	default:
		return fail("position", fmt.Sprintf("unknown position %q (want top or bottom)", d.Position))
	}

	if d.Height < 0 {
		return fail("height", "must not be negative")
	}
	for field, v := range map[string]int{
		"margin-top":    d.MarginTop,
		"margin-bottom": d.MarginBottom,
		"margin-left":   d.MarginLeft,
		"margin-right":  d.MarginRight,
	} {
		if v < 0 {
			return fail(field, "must not be negative")
		}
	}

	controls := d.Controls.position
	switch controls {
	case "":
		controls = models.ControlsOff
	case models.ControlsLeft, models.ControlsRight, models.ControlsOff:
	default:
		return fail("controls", fmt.Sprintf("unknown placement %q (want left, right, or off)", controls))
	}

	controlsConf := d.ControlsConf
	if d.Controls.settings != nil {
		controlsConf = *d.Controls.settings
	}
	if controlsConf.IconSize <= 0 {
		return fail("controls-settings.icon_size", "must be positive")
	}
	if controlsConf.Interval < 0 {
		return fail("controls-settings.interval", "must not be negative")
	}

	if d.Clock.Interval < 0 {
		return fail("clock.interval", "must not be negative")
	}
	if d.Workspaces.NumWS <= 0 {
		return fail("hyprland-workspaces.num_ws", "must be positive")
	}
	if d.Workspaces.ImageSize <= 0 {
		return fail("hyprland-workspaces.image_size", "must be positive")
	}

	return models.Panel{
		Name:          d.Name,
		Output:        d.Output,
		Monitor:       d.Monitor,
		CSSName:       d.CSSName,
		Layer:         d.Layer,
		Position:      d.Position,
		Height:        d.Height,
		MarginTop:     d.MarginTop,
		MarginBottom:  d.MarginBottom,
		MarginLeft:    d.MarginLeft,
		MarginRight:   d.MarginRight,
		ExclusiveZone: d.ExclusiveZone,
		ModulesLeft:   ResolveModules(d.ModulesLeft),
		ModulesCenter: ResolveModules(d.ModulesCenter),
		ModulesRight:  ResolveModules(d.ModulesRight),
		Controls:      controls,
		ControlsSettings: models.ControlsConfig{
			Components: controlsConf.Components,
			IconSize:   controlsConf.IconSize,
			Interval:   controlsConf.Interval,
			CSSName:    controlsConf.CSSName,
		},
		Clock: models.ClockConfig{
			Format:      d.Clock.Format,
			Interval:    d.Clock.Interval,
			CSSName:     d.Clock.CSSName,
			RootCSSName: d.Clock.RootCSSName,
		},
		Workspaces: models.WorkspacesConfig{
			NumWS:                        d.Workspaces.NumWS,
			ShowIcon:                     d.Workspaces.ShowIcon,
			ShowInactiveWorkspaces:       d.Workspaces.ShowInactiveWorkspaces,
			ShowWorkspacesFromAllOutputs: d.Workspaces.ShowWorkspacesFromAllOutputs,
			ImageSize:                    d.Workspaces.ImageSize,
			ShowName:                     d.Workspaces.ShowName,
			NameLength:                   d.Workspaces.NameLength,
			ShowEmpty:                    d.Workspaces.ShowEmpty,
			MarkContent:                  d.Workspaces.MarkContent,
			MarkFloating:                 d.Workspaces.MarkFloating,
			MarkXWayland:                 d.Workspaces.MarkXWayland,
			Angle:                        d.Workspaces.Angle,
		},
	}, nil
}

// ResolveModules maps configuration module names onto the closed module kind
// set. Unknown names resolve to ModulePlaceholder, keeping the original name
// so the collaborator can label the slot.
func ResolveModules(names []string) []models.Module {
	if len(names) == 0 {
		return nil
	}
	modules := make([]models.Module, 0, len(names))
	for _, name := range names {
		kind := models.ModulePlaceholder
		switch name {
		case "clock":
			kind = models.ModuleClock
		case "hyprland-workspaces":
			kind = models.ModuleWorkspaces
		case "hyprland-taskbar":
			kind = models.ModuleTaskbar
		case "tray":
			kind = models.ModuleTray
		case "controls":
			kind = models.ModuleControls
		}
		modules = append(modules, models.Module{Kind: kind, Name: name})
	}
	return modules
}

// jsonError converts an encoding/json error into a ParseError with the best
// location we can extract.
func jsonError(data []byte, err error, prefix string) *ParseError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := typeErr.Field
		if loc == "" {
			loc = lineCol(data, typeErr.Offset)
		}
		if prefix != "" {
			loc = strings.TrimSuffix(prefix+"."+loc, ".")
		}
		return &ParseError{
			Location: loc,
			Message:  fmt.Sprintf("cannot use %s as %s", typeErr.Value, typeErr.Type),
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{
			Location: lineCol(data, syntaxErr.Offset),
			Message:  syntaxErr.Error(),
		}
	}

	return &ParseError{Location: prefix, Message: err.Error()}
}

// lineCol renders a byte offset as "line L, column C".
func lineCol(data []byte, offset int64) string {
	if offset < 0 || offset > int64(len(data)) {
		return ""
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return fmt.Sprintf("line %d, column %d", line, col)
}
