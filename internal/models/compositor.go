package models

// Window is one compositor client at a poll instant.
type Window struct {
	// Address is the compositor's opaque window identity (e.g. "0x55f0...").
	Address     string
	Title       string
	Class       string
	WorkspaceID int
	Focused     bool
	Floating    bool
	XWayland    bool
}

// Workspace is one compositor workspace at a poll instant.
type Workspace struct {
	ID      int
	Name    string
	Monitor string
	Active  bool
	// Windows lists the addresses of the windows on this workspace, in the
	// order the compositor reported them.
	Windows []string
}

// CompositorSnapshot is the full compositor state at one poll instant. It is
// immutable once built and superseded wholesale by the next poll; individual
// fields are never patched in place.
type CompositorSnapshot struct {
	ActiveWindow      string
	ActiveWorkspaceID int
	Workspaces        []Workspace
	Windows           []Window
}

// Equal reports whether two snapshots describe identical compositor state.
// It is the structural diff used by the poller to suppress no-op updates.
func (s *CompositorSnapshot) Equal(other *CompositorSnapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ActiveWindow != other.ActiveWindow || s.ActiveWorkspaceID != other.ActiveWorkspaceID {
		return false
	}
	if len(s.Workspaces) != len(other.Workspaces) || len(s.Windows) != len(other.Windows) {
		return false
	}
	for i := range s.Workspaces {
		if !s.Workspaces[i].equal(&other.Workspaces[i]) {
			return false
		}
	}
	for i := range s.Windows {
		if s.Windows[i] != other.Windows[i] {
			return false
		}
	}
	return true
}

func (w *Workspace) equal(other *Workspace) bool {
	if w.ID != other.ID || w.Name != other.Name || w.Monitor != other.Monitor || w.Active != other.Active {
		return false
	}
	if len(w.Windows) != len(other.Windows) {
		return false
	}
	for i := range w.Windows {
		if w.Windows[i] != other.Windows[i] {
			return false
		}
	}
	return true
}
