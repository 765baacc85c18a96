package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

type nopListener struct{}

func (nopListener) Rebuild(*models.Snapshot, bool) {}

func (nopListener) ConfigError(error) {}

func (nopListener) CompositorUpdate(*models.CompositorSnapshot, bool) {}

func (nopListener) TrayUpdate([]models.TrayItem) {}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeConfig(t, dir, `[{"name": "top", "modules-left": ["clock"]}]`)
	d, err := New(Options{
		ConfigPath: path,
		StylePath:  filepath.Join(dir, "style.css"),
		Settings:   models.NewSettings(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, path
}

func receive(t *testing.T, d *Daemon) models.Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	update, err := d.bus.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	return update
}

func TestNewFailsWithoutValidConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := New(Options{
		ConfigPath: filepath.Join(dir, "missing"),
		Settings:   models.NewSettings(),
	})
	if err == nil {
		t.Fatal("a missing config on first load must be fatal")
	}

	path := writeConfig(t, dir, `[{"name": "top", "height": "tall"}]`)
	_, err = New(Options{ConfigPath: path, Settings: models.NewSettings()})
	if err == nil {
		t.Fatal("a malformed config on first load must be fatal")
	}
}

func TestNewSeedsStoreFromFirstLoad(t *testing.T) {
	d, path := newTestDaemon(t)

	snap := d.Store().Current()
	if snap == nil || snap.Source != path {
		t.Fatalf("store not seeded from %s: %#v", path, snap)
	}
	if len(snap.Panels) != 1 || snap.Panels[0].Name != "top" {
		t.Errorf("unexpected panels: %#v", snap.Panels)
	}
}

func TestReloadPublishesNewSnapshot(t *testing.T) {
	d, path := newTestDaemon(t)
	before := d.Store().Current()

	writeConfig(t, filepath.Dir(path), `[{"name": "top"}, {"name": "bottom"}]`)
	d.reload(false)

	update := receive(t, d)
	applied, ok := update.(models.ConfigApplied)
	if !ok {
		t.Fatalf("expected ConfigApplied, got %#v", update)
	}
	if applied.StyleOnly {
		t.Error("config change must not be flagged style-only")
	}
	if applied.Snapshot.Equal(before) {
		t.Error("reload must produce a new snapshot identity")
	}
	if len(applied.Snapshot.Panels) != 2 {
		t.Errorf("reloaded panels = %d, want 2", len(applied.Snapshot.Panels))
	}
}

func TestReloadOfBrokenConfigPublishesRejection(t *testing.T) {
	d, path := newTestDaemon(t)

	writeConfig(t, filepath.Dir(path), `[{"name": "top",`)
	d.reload(false)

	update := receive(t, d)
	rejected, ok := update.(models.ConfigRejected)
	if !ok {
		t.Fatalf("expected ConfigRejected, got %#v", update)
	}
	if rejected.Err == nil {
		t.Fatal("rejection must carry the parse error")
	}
}

func TestStyleOnlyReloadRepublishesCurrentSnapshot(t *testing.T) {
	d, _ := newTestDaemon(t)
	current := d.Store().Current()

	d.reload(true)

	update := receive(t, d)
	applied, ok := update.(models.ConfigApplied)
	if !ok {
		t.Fatalf("expected ConfigApplied, got %#v", update)
	}
	if !applied.StyleOnly {
		t.Error("style change must be flagged style-only")
	}
	if !applied.Snapshot.Equal(current) {
		t.Error("style-only reload must keep the current snapshot")
	}
}

func TestRunResolvesCompositorClientOnCallerGoroutine(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "testsig")

	sockDir := filepath.Join(runtimeDir, "hypr", "testsig")
	if err := os.MkdirAll(sockDir, 0o755); err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("unix", filepath.Join(sockDir, ".socket.sock"))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		// Close each request immediately; the poller treats the empty reply
		// as a failed cycle, which is all this test needs.
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	d, _ := newTestDaemon(t)
	if d.Compositor() != nil {
		t.Fatal("client should not exist before Run")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, nopListener{}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	if d.Compositor() == nil {
		t.Error("Run should have resolved the compositor client")
	}
}

func TestActivateWithoutTrayServiceIsSafe(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.ActivateTrayItem("org.a.App", "/StatusNotifierItem", 0, 0)
}
