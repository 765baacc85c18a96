// Package daemon wires the producers, the event bus, and the reconciler into
// one runnable unit.
package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/waypanel-io/waypanel/internal/config"
	"github.com/waypanel-io/waypanel/internal/daemon/bus"
	"github.com/waypanel-io/waypanel/internal/daemon/compositor"
	"github.com/waypanel-io/waypanel/internal/daemon/reconciler"
	"github.com/waypanel-io/waypanel/internal/daemon/tray"
	"github.com/waypanel-io/waypanel/internal/daemon/watcher"
	"github.com/waypanel-io/waypanel/internal/models"
)

// Options selects the files the daemon works from.
type Options struct {
	ConfigPath string
	StylePath  string
	Settings   *models.Settings
}

// Daemon owns the config store, the event bus, and the producer goroutines.
// Construction performs the first config load; there is no previous good
// snapshot to fall back to, so a failed first load is the one fatal error.
type Daemon struct {
	opts     Options
	settings *models.Settings
	store    *config.Store
	bus      *bus.Bus

	registry    *tray.Registry
	trayService *tray.Service
	client      *compositor.Client
}

// New loads the configuration once and builds the daemon around it.
func New(opts Options) (*Daemon, error) {
	settings := opts.Settings
	if settings == nil {
		loaded, err := config.LoadSettings()
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		settings = loaded
	}

	initial, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("initial config load: %w", err)
	}
	log.Printf("[daemon] loaded %d panel(s) from %s", len(initial.Panels), opts.ConfigPath)

	return &Daemon{
		opts:     opts,
		settings: settings,
		store:    config.NewStore(initial),
		bus:      bus.New(settings.BusCapacity),
		registry: tray.NewRegistry(),
	}, nil
}

// Store returns the config store for the UI collaborator to read.
func (d *Daemon) Store() *config.Store {
	return d.store
}

// Tray returns the tray registry, for rendering the item list on startup.
func (d *Daemon) Tray() *tray.Registry {
	return d.registry
}

// ActivateTrayItem forwards a click to the peer, best effort.
func (d *Daemon) ActivateTrayItem(service, path string, x, y int) {
	if d.trayService != nil {
		d.trayService.Activate(service, path, x, y)
	}
}

// Compositor returns the compositor client for dispatch calls, or nil when
// the daemon is not running under a supported compositor.
func (d *Daemon) Compositor() *compositor.Client {
	return d.client
}

// Run starts the producers and consumes the bus with the reconciler until
// the context is canceled. The listener is called on this goroutine, which
// must be the UI collaborator's execution context.
func (d *Daemon) Run(ctx context.Context, listener reconciler.Listener) error {
	producerCtx, cancelProducers := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	w, err := watcher.New(d.opts.ConfigPath, d.opts.StylePath, d.settings.Debounce(), d.settings.WatchRetry(), d.reload)
	if err != nil {
		cancelProducers()
		return fmt.Errorf("start watcher: %w", err)
	}
	w.Start()

	// Resolved here, before the poller goroutine exists, so d.client is only
	// ever written on the caller's goroutine.
	querier := d.querier()
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller := compositor.NewPoller(querier, d.bus, d.settings.CompositorPoll(), d.settings.CompositorStaleAfter)
		poller.Run(producerCtx)
	}()

	conn := d.startTray(producerCtx, &wg)

	err = reconciler.New(d.bus, d.store, listener).Run(ctx)

	// Shutdown order: stop the producers, then release their resources, then
	// close the bus so nothing reads it afterwards.
	cancelProducers()
	if closeErr := w.Close(); closeErr != nil {
		log.Printf("[daemon] closing watcher: %v", closeErr)
	}
	wg.Wait()
	if d.trayService != nil {
		if closeErr := d.trayService.Close(); closeErr != nil {
			log.Printf("[daemon] closing tray service: %v", closeErr)
		}
		d.trayService = nil
	}
	if conn != nil {
		conn.Close()
	}
	d.bus.Close()
	return err
}

// reload is the watcher's callback. A style-only change republishes the
// current snapshot flagged so the collaborator re-reads the stylesheet
// without rebuilding.
func (d *Daemon) reload(styleOnly bool) {
	if styleOnly {
		_ = d.bus.Publish(models.ConfigApplied{Snapshot: d.store.Current(), StyleOnly: true})
		return
	}

	snap, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		_ = d.bus.Publish(models.ConfigRejected{Err: err})
		return
	}
	_ = d.bus.Publish(models.ConfigApplied{Snapshot: snap})
}

func (d *Daemon) querier() compositor.Querier {
	client, err := compositor.NewClient()
	if err != nil {
		// Not running under the compositor. The poller's failure counter
		// surfaces this as staleness instead of aborting the daemon.
		log.Printf("[daemon] compositor unavailable: %v", err)
		return unavailableQuerier{err: err}
	}
	d.client = client
	return client
}

// startTray connects to the session bus and starts the watcher host and the
// icon refresher. Every failure here is recoverable: the panel simply runs
// without a tray.
func (d *Daemon) startTray(ctx context.Context, wg *sync.WaitGroup) *dbus.Conn {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Printf("[daemon] session bus unavailable, tray disabled: %v", err)
		return nil
	}

	service := tray.NewService(conn, d.registry, d.bus)
	if err := service.Listen(); err != nil {
		log.Printf("[daemon] tray host not started: %v", err)
		conn.Close()
		return nil
	}
	d.trayService = service

	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher := tray.NewRefresher(d.registry, tray.NewDBusIconSource(conn), d.bus, d.settings.TrayRefresh())
		refresher.Run(ctx)
	}()
	return conn
}

type unavailableQuerier struct {
	err error
}

func (q unavailableQuerier) Snapshot(context.Context) (*models.CompositorSnapshot, error) {
	return nil, q.err
}
