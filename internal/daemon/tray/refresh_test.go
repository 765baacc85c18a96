package tray

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

// fakeIconSource serves canned per-service icon results, with an optional
// per-call delay to simulate an unresponsive peer.
type fakeIconSource struct {
	mu    sync.Mutex
	icons map[string]string
	errs  map[string]error
	delay map[string]time.Duration
}

func (f *fakeIconSource) Icon(ctx context.Context, service, path string) (string, error) {
	f.mu.Lock()
	delay := f.delay[service]
	icon := f.icons[service]
	err := f.errs[service]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return icon, err
}

type trayCapture struct {
	mu      sync.Mutex
	updates []models.TrayChanged
}

func (c *trayCapture) Publish(u models.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tc, ok := u.(models.TrayChanged); ok {
		c.updates = append(c.updates, tc)
	}
	return nil
}

func (c *trayCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func TestRefreshMarksFailedPeerUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register("org.ok.App", "/StatusNotifierItem")
	reg.Register("org.dead.App", "/StatusNotifierItem")

	src := &fakeIconSource{
		icons: map[string]string{"org.ok.App": "audio-volume-high"},
		errs:  map[string]error{"org.dead.App": errors.New("no reply")},
	}
	pub := &trayCapture{}
	ref := NewRefresher(reg, src, pub, time.Second)

	ref.refresh(context.Background())

	items := reg.Items()
	if !items[0].IconKnown || items[0].IconName != "audio-volume-high" {
		t.Errorf("healthy peer = %#v", items[0])
	}
	if items[1].IconKnown {
		t.Errorf("failed peer should be unknown-icon, got %#v", items[1])
	}
	if len(items) != 2 {
		t.Fatalf("a failed fetch must never remove the item, got %d items", len(items))
	}
	if pub.count() != 1 {
		t.Errorf("expected one TrayChanged, got %d", pub.count())
	}
}

func TestRefreshSlowPeerDoesNotStallOthers(t *testing.T) {
	reg := NewRegistry()
	reg.Register("org.slow.App", "/StatusNotifierItem")
	reg.Register("org.fast.App", "/StatusNotifierItem")

	src := &fakeIconSource{
		icons: map[string]string{"org.fast.App": "network-wireless"},
		delay: map[string]time.Duration{"org.slow.App": 10 * time.Second},
	}
	pub := &trayCapture{}
	// The fetch context times out at the interval, bounding the cycle.
	ref := NewRefresher(reg, src, pub, 100*time.Millisecond)

	start := time.Now()
	ref.refresh(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("refresh cycle took %v, slow peer stalled it", elapsed)
	}

	items := reg.Items()
	if items[0].IconKnown {
		t.Errorf("timed-out peer should be unknown-icon, got %#v", items[0])
	}
	if !items[1].IconKnown || items[1].IconName != "network-wireless" {
		t.Errorf("fast peer = %#v", items[1])
	}
}

func TestRefreshSilentWhenNothingChanged(t *testing.T) {
	reg := NewRegistry()
	reg.Register("org.a.App", "/StatusNotifierItem")

	src := &fakeIconSource{icons: map[string]string{"org.a.App": "idle"}}
	pub := &trayCapture{}
	ref := NewRefresher(reg, src, pub, time.Second)

	ref.refresh(context.Background())
	ref.refresh(context.Background())

	if pub.count() != 1 {
		t.Errorf("expected one TrayChanged for the initial icon, got %d", pub.count())
	}
}

func TestRefreshPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"org.a.App", "org.b.App", "org.c.App", "org.d.App"}
	for _, n := range names {
		reg.Register(n, "/StatusNotifierItem")
	}

	src := &fakeIconSource{
		icons: map[string]string{"org.b.App": "x", "org.d.App": "y"},
		errs:  map[string]error{"org.a.App": errors.New("gone")},
		delay: map[string]time.Duration{"org.c.App": 10 * time.Millisecond},
	}
	ref := NewRefresher(reg, src, &trayCapture{}, time.Second)

	ref.refresh(context.Background())

	items := reg.Items()
	for i, n := range names {
		if items[i].Service != n {
			t.Fatalf("order after refresh = %v, want %v", items, names)
		}
	}
}

func TestHasValidPixmap(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{name: "valid 2x2", value: [][]any{{int32(2), int32(2), make([]byte, 16)}}, want: true},
		{name: "payload size mismatch", value: [][]any{{int32(2), int32(2), make([]byte, 15)}}, want: false},
		{name: "zero dimensions", value: [][]any{{int32(0), int32(0), []byte{}}}, want: false},
		{name: "second entry valid", value: [][]any{{int32(1), int32(1), []byte{}}, {int32(1), int32(1), make([]byte, 4)}}, want: true},
		{name: "wrong shape", value: "nope", want: false},
		{name: "empty", value: [][]any{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasValidPixmap(tt.value); got != tt.want {
				t.Errorf("hasValidPixmap = %v, want %v", got, tt.want)
			}
		})
	}
}
