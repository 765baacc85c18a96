package tray

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/waypanel-io/waypanel/internal/models"
)

const (
	watcherInterface = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	itemInterface    = "org.kde.StatusNotifierItem"
	protocolVersion  = 0
)

// Publisher is the sink for tray updates, satisfied by bus.Bus.
type Publisher interface {
	Publish(update models.Update) error
}

// Service exports org.kde.StatusNotifierWatcher on the session bus and feeds
// registration lifecycle into the Registry. Method handlers run on godbus
// goroutines; all shared state lives in the Registry behind its own lock.
type Service struct {
	conn      *dbus.Conn
	registry  *Registry
	publisher Publisher

	mu      sync.Mutex
	hosts   []string
	props   *prop.Properties
	signals chan *dbus.Signal
	closed  bool
}

// NewService wires a session-bus connection to the registry. The connection
// is owned by the caller.
func NewService(conn *dbus.Conn, registry *Registry, publisher Publisher) *Service {
	return &Service{
		conn:      conn,
		registry:  registry,
		publisher: publisher,
		signals:   make(chan *dbus.Signal, 64),
	}
}

// Listen claims the watcher name, exports the methods and properties, and
// starts watching for peer departures. Failure to claim the name (another
// tray host is running) is an error the caller decides how to handle.
func (s *Service) Listen() error {
	reply, err := s.conn.RequestName(watcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", watcherInterface, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", watcherInterface)
	}

	if err := s.conn.Export(s, watcherPath, watcherInterface); err != nil {
		return fmt.Errorf("export watcher: %w", err)
	}

	props, err := prop.Export(s.conn, watcherPath, prop.Map{
		watcherInterface: {
			"RegisteredStatusNotifierItems": {
				Value:    s.registry.Keys(),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"IsStatusNotifierHostRegistered": {
				Value:    true,
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"ProtocolVersion": {
				Value:    int32(protocolVersion),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("export watcher properties: %w", err)
	}
	s.mu.Lock()
	s.props = props
	s.mu.Unlock()

	if err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return fmt.Errorf("subscribe NameOwnerChanged: %w", err)
	}
	s.conn.Signal(s.signals)
	go s.watchDepartures()

	log.Printf("[tray] hosting %s", watcherInterface)
	return nil
}

// RegisterStatusNotifierItem handles the DBus registration call. Duplicate
// registrations acknowledge success without a second item.
func (s *Service) RegisterStatusNotifierItem(name string, sender dbus.Sender) *dbus.Error {
	service, path, err := ResolveIdentity(name)
	if err != nil {
		log.Printf("[tray] rejecting registration %q from %s: %v", name, sender, err)
		return dbus.MakeFailedError(err)
	}

	if !s.registry.Register(service, path) {
		return nil
	}
	log.Printf("[tray] item registered: %s%s", service, path)

	s.conn.Emit(watcherPath, watcherInterface+".StatusNotifierItemRegistered", service+path)
	s.syncItemsProp()
	s.publishItems()
	return nil
}

// RegisterStatusNotifierHost records a visualization host and announces it.
func (s *Service) RegisterStatusNotifierHost(name string) *dbus.Error {
	s.mu.Lock()
	for _, h := range s.hosts {
		if h == name {
			s.mu.Unlock()
			return nil
		}
	}
	s.hosts = append(s.hosts, name)
	s.mu.Unlock()

	s.conn.Emit(watcherPath, watcherInterface+".StatusNotifierHostRegistered")
	return nil
}

// watchDepartures unregisters every item owned by a bus name that lost its
// owner. This is the only removal path; the item protocol has no explicit
// unregister call.
func (s *Service) watchDepartures() {
	for signal := range s.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}
		name, ok := signal.Body[0].(string)
		if !ok {
			continue
		}
		newOwner, ok := signal.Body[2].(string)
		if !ok || newOwner != "" {
			continue
		}

		if removed := s.registry.RemoveService(name); removed > 0 {
			log.Printf("[tray] peer %s departed, removed %d item(s)", name, removed)
			s.conn.Emit(watcherPath, watcherInterface+".StatusNotifierItemUnregistered", name)
			s.syncItemsProp()
			s.publishItems()
		}
	}
}

// Activate forwards a click to the peer, fire and forget.
func (s *Service) Activate(service, path string, x, y int) {
	go func() {
		obj := s.conn.Object(service, dbus.ObjectPath(path))
		call := obj.Call(itemInterface+".Activate", 0, x, y)
		if call.Err != nil {
			log.Printf("[tray] activate %s%s: %v", service, path, call.Err)
		}
	}()
}

func (s *Service) syncItemsProp() {
	s.mu.Lock()
	props := s.props
	s.mu.Unlock()
	if props != nil {
		props.SetMust(watcherInterface, "RegisteredStatusNotifierItems", s.registry.Keys())
	}
}

func (s *Service) publishItems() {
	_ = s.publisher.Publish(models.TrayChanged{Items: s.registry.Items()})
}

// Close releases the watcher name and stops the departure watcher. The
// connection itself stays open for the caller to close.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.conn.RemoveMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	)
	s.conn.RemoveSignal(s.signals)
	close(s.signals)

	_, err := s.conn.ReleaseName(watcherInterface)
	return err
}
