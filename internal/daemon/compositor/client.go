// Package compositor queries the window manager for window and workspace
// state and publishes change events when the state differs from the last
// emitted snapshot.
package compositor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

// requestTimeout bounds a single IPC round-trip so a wedged compositor can
// only cost one poll cycle.
const requestTimeout = 2 * time.Second

// SocketPath resolves the Hyprland request socket from the environment.
func SocketPath() (string, error) {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return "", fmt.Errorf("HYPRLAND_INSTANCE_SIGNATURE is not set; not running under Hyprland?")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	candidates := []string{}
	if runtimeDir != "" {
		candidates = append(candidates, filepath.Join(runtimeDir, "hypr", sig, ".socket.sock"))
	}
	// Hyprland placed sockets under /tmp before 0.40.
	candidates = append(candidates, filepath.Join("/tmp", "hypr", sig, ".socket.sock"))

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("hyprland socket not found (tried %s)", strings.Join(candidates, ", "))
}

// Client issues read-only queries and best-effort dispatches over Hyprland's
// request socket. Each request uses a fresh connection, matching hyprctl.
type Client struct {
	socketPath string
}

// NewClient resolves the socket path from the environment.
func NewClient() (*Client, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return &Client{socketPath: path}, nil
}

// NewClientWithSocket creates a client for an explicit socket path.
func NewClientWithSocket(path string) *Client {
	return &Client{socketPath: path}
}

func (c *Client) request(ctx context.Context, command string) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(requestTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(command)); err != nil {
		return nil, fmt.Errorf("write %q: %w", command, err)
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read %q reply: %w", command, err)
	}
	return data, nil
}

// Wire shapes of the JSON replies. Only the fields the snapshot needs are
// decoded; everything else is ignored.
type activeWindowReply struct {
	Address string `json:"address"`
}

type activeWorkspaceReply struct {
	ID int `json:"id"`
}

type workspaceReply struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
}

type clientReply struct {
	Address   string `json:"address"`
	Mapped    bool   `json:"mapped"`
	Title     string `json:"title"`
	Class     string `json:"class"`
	Floating  bool   `json:"floating"`
	XWayland  bool   `json:"xwayland"`
	Workspace struct {
		ID int `json:"id"`
	} `json:"workspace"`
}

// Snapshot assembles one complete compositor snapshot from three read-only
// queries. Any failing or malformed reply fails the whole snapshot; the
// poller keeps the previous one in that case.
func (c *Client) Snapshot(ctx context.Context) (*models.CompositorSnapshot, error) {
	var active activeWindowReply
	data, err := c.request(ctx, "j/activewindow")
	if err != nil {
		return nil, err
	}
	// An empty reply (or non-JSON "Invalid") means no window is focused.
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &active); err != nil {
			return nil, fmt.Errorf("decode activewindow: %w", err)
		}
	}

	var activeWS activeWorkspaceReply
	data, err = c.request(ctx, "j/activeworkspace")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &activeWS); err != nil {
		return nil, fmt.Errorf("decode activeworkspace: %w", err)
	}

	var workspaces []workspaceReply
	data, err = c.request(ctx, "j/workspaces")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &workspaces); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}

	var clients []clientReply
	data, err = c.request(ctx, "j/clients")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("decode clients: %w", err)
	}

	return assembleSnapshot(active, activeWS, workspaces, clients), nil
}

// assembleSnapshot builds the immutable snapshot value. Workspaces are
// ordered by id so equality checks are stable across polls regardless of the
// compositor's reply order.
func assembleSnapshot(active activeWindowReply, activeWS activeWorkspaceReply, workspaces []workspaceReply, clients []clientReply) *models.CompositorSnapshot {
	snap := &models.CompositorSnapshot{
		ActiveWindow:      active.Address,
		ActiveWorkspaceID: activeWS.ID,
	}

	byWorkspace := make(map[int][]string)
	for _, cl := range clients {
		if !cl.Mapped {
			continue
		}
		snap.Windows = append(snap.Windows, models.Window{
			Address:     cl.Address,
			Title:       cl.Title,
			Class:       cl.Class,
			WorkspaceID: cl.Workspace.ID,
			Focused:     cl.Address == active.Address && cl.Address != "",
			Floating:    cl.Floating,
			XWayland:    cl.XWayland,
		})
		byWorkspace[cl.Workspace.ID] = append(byWorkspace[cl.Workspace.ID], cl.Address)
	}

	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].ID < workspaces[j].ID })
	for _, ws := range workspaces {
		snap.Workspaces = append(snap.Workspaces, models.Workspace{
			ID:      ws.ID,
			Name:    ws.Name,
			Monitor: ws.Monitor,
			Active:  ws.ID == activeWS.ID,
			Windows: byWorkspace[ws.ID],
		})
	}

	return snap
}

// Dispatch sends a dispatcher command (e.g. "workspace 3"). The reply is
// checked but failures are the caller's to log; dispatches are best-effort.
func (c *Client) Dispatch(ctx context.Context, args string) error {
	data, err := c.request(ctx, "dispatch "+args)
	if err != nil {
		return err
	}
	if reply := strings.TrimSpace(string(data)); reply != "ok" {
		return fmt.Errorf("dispatch %q: %s", args, reply)
	}
	return nil
}

// SwitchWorkspace asks the compositor to switch to the given workspace.
func (c *Client) SwitchWorkspace(ctx context.Context, id int) error {
	return c.Dispatch(ctx, fmt.Sprintf("workspace %d", id))
}

// FocusWindow focuses the window with the given address.
func (c *Client) FocusWindow(ctx context.Context, address string) error {
	return c.Dispatch(ctx, "focuswindow address:"+address)
}

// CloseWindow closes the window with the given address.
func (c *Client) CloseWindow(ctx context.Context, address string) error {
	return c.Dispatch(ctx, "closewindow address:"+address)
}
