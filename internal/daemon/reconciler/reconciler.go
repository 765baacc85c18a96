// Package reconciler consumes the event bus and owns the authoritative
// config, compositor, and tray state. It is the only writer of that state;
// everything downstream observes it through Listener notifications delivered
// on the reconciler's goroutine.
package reconciler

import (
	"context"
	"errors"
	"log"

	"github.com/waypanel-io/waypanel/internal/config"
	"github.com/waypanel-io/waypanel/internal/daemon/bus"
	"github.com/waypanel-io/waypanel/internal/models"
)

// Listener receives typed notifications about authoritative state changes.
// Implementations must be non-blocking: every callback runs on the
// reconciler's goroutine and stalls delivery while it executes. The UI
// collaborator typically forwards each call into its own main loop.
type Listener interface {
	// Rebuild is called after a successful config reload replaced the
	// snapshot. StyleOnly means only the stylesheet changed and the widget
	// tree can stay.
	Rebuild(snap *models.Snapshot, styleOnly bool)

	// ConfigError is called after a rejected reload. The previous snapshot
	// stays in effect; the collaborator shows a non-blocking indicator.
	ConfigError(err error)

	// CompositorUpdate delivers a new compositor snapshot. Stale reports
	// whether queries have been failing; it is false again on the first
	// snapshot after recovery. When staleness is reported before any poll
	// has succeeded (daemon started without a reachable compositor), snap
	// is nil.
	CompositorUpdate(snap *models.CompositorSnapshot, stale bool)

	// TrayUpdate delivers the current ordered tray item list.
	TrayUpdate(items []models.TrayItem)
}

// Reconciler drains the bus and applies each update to the store and its own
// compositor/tray state, then notifies the listener.
type Reconciler struct {
	bus      *bus.Bus
	store    *config.Store
	listener Listener

	compositor *models.CompositorSnapshot
	trayItems  []models.TrayItem
	stale      bool
}

func New(b *bus.Bus, store *config.Store, listener Listener) *Reconciler {
	return &Reconciler{bus: b, store: store, listener: listener}
}

// Run consumes updates until the context is canceled or the bus closes.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		update, err := r.bus.Receive(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		r.apply(update)
	}
}

func (r *Reconciler) apply(update models.Update) {
	switch u := update.(type) {
	case models.ConfigApplied:
		if u.StyleOnly {
			// A stylesheet change says nothing about the config file's
			// validity: the snapshot stays as is and a degraded store stays
			// degraded until a successful parse clears it.
			log.Printf("[reconciler] style changed, config state unchanged")
			r.listener.Rebuild(u.Snapshot, true)
			return
		}
		r.store.Replace(u.Snapshot)
		log.Printf("[reconciler] config applied from %s", u.Snapshot.Source)
		r.listener.Rebuild(u.Snapshot, false)

	case models.ConfigRejected:
		// The previous good snapshot stays authoritative.
		r.store.Reject(u.Err)
		log.Printf("[reconciler] config rejected, keeping current snapshot: %v", u.Err)
		r.listener.ConfigError(u.Err)

	case models.CompositorChanged:
		r.compositor = u.Snapshot
		r.stale = false
		r.listener.CompositorUpdate(u.Snapshot, false)

	case models.CompositorStale:
		r.stale = true
		log.Printf("[reconciler] compositor state stale after %d failures: %v", u.Failures, u.Err)
		r.listener.CompositorUpdate(r.compositor, true)

	case models.TrayChanged:
		r.trayItems = u.Items
		r.listener.TrayUpdate(u.Items)

	default:
		log.Printf("[reconciler] dropping unknown update %T", update)
	}
}

// Compositor returns the last applied compositor snapshot and whether it is
// currently considered stale. Like the listener callbacks, it must only be
// called from the reconciler's goroutine.
func (r *Reconciler) Compositor() (*models.CompositorSnapshot, bool) {
	return r.compositor, r.stale
}

// TrayItems returns the last applied tray item list.
func (r *Reconciler) TrayItems() []models.TrayItem {
	return r.trayItems
}
