package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/waypanel-io/waypanel/internal/models"
)

// DefaultRefreshInterval is used when the configured interval is not
// positive.
const DefaultRefreshInterval = 2 * time.Second

// IconSource fetches the current icon identifier of one peer. An empty name
// with a nil error means the peer exposes pixel data instead of a themed
// icon name.
type IconSource interface {
	Icon(ctx context.Context, service, path string) (string, error)
}

// DBusIconSource queries peers over the session bus. It prefers the IconName
// property and falls back to IconPixmap, accepting the pixmap only when its
// dimensions match its payload.
type DBusIconSource struct {
	conn *dbus.Conn
}

func NewDBusIconSource(conn *dbus.Conn) *DBusIconSource {
	return &DBusIconSource{conn: conn}
}

func (d *DBusIconSource) Icon(ctx context.Context, service, path string) (string, error) {
	obj := d.conn.Object(service, dbus.ObjectPath(path))

	nameVar, nameErr := obj.GetProperty(itemInterface + ".IconName")
	if nameErr == nil {
		var name string
		if err := nameVar.Store(&name); err == nil && name != "" {
			return name, nil
		}
	}

	pixVar, pixErr := obj.GetProperty(itemInterface + ".IconPixmap")
	if pixErr == nil && hasValidPixmap(pixVar.Value()) {
		return "", nil
	}

	if nameErr != nil {
		return "", fmt.Errorf("IconName: %w", nameErr)
	}
	if pixErr != nil {
		return "", fmt.Errorf("IconPixmap: %w", pixErr)
	}
	return "", fmt.Errorf("peer %s%s exposes no usable icon", service, path)
}

// hasValidPixmap checks the wire shape a(iiay) and verifies at least one
// entry whose ARGB payload length matches width*height*4.
func hasValidPixmap(value any) bool {
	entries, ok := value.([][]any)
	if !ok {
		return false
	}
	for _, entry := range entries {
		if len(entry) != 3 {
			continue
		}
		w, wok := entry[0].(int32)
		h, hok := entry[1].(int32)
		data, dok := entry[2].([]byte)
		if !wok || !hok || !dok {
			continue
		}
		if w > 0 && h > 0 && len(data) == int(w)*int(h)*4 {
			return true
		}
	}
	return false
}

// Refresher periodically re-fetches the icon of every registered item. Items
// are fetched concurrently so one unresponsive peer cannot stall the rest; a
// failed fetch marks the item unknown-icon and never removes it. A cycle
// publishes TrayChanged only when some item's icon state changed.
type Refresher struct {
	registry  *Registry
	source    IconSource
	publisher Publisher
	interval  time.Duration
}

func NewRefresher(registry *Registry, source IconSource, publisher Publisher, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		registry:  registry,
		source:    source,
		publisher: publisher,
		interval:  interval,
	}
}

// Run refreshes until the context is canceled.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	items := r.registry.Items()
	if len(items) == 0 {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	var wg sync.WaitGroup
	changes := make([]bool, len(items))
	for i, item := range items {
		wg.Add(1)
		go func(i int, item models.TrayItem) {
			defer wg.Done()
			name, err := r.source.Icon(fetchCtx, item.Service, item.Path)
			if err != nil {
				changes[i] = r.registry.SetIcon(item.Service, item.Path, item.IconName, false)
				return
			}
			changes[i] = r.registry.SetIcon(item.Service, item.Path, name, true)
		}(i, item)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}
	for _, changed := range changes {
		if changed {
			_ = r.publisher.Publish(models.TrayChanged{Items: r.registry.Items()})
			return
		}
	}
}
