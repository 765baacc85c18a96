// Package tray hosts the status notifier registration endpoint, tracks
// registered peer items, and periodically refreshes their icon identity.
package tray

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

// DefaultItemPath is the well-known object path a bare service name resolves
// to when registering.
const DefaultItemPath = "/StatusNotifierItem"

// ErrUnsupportedForm rejects path-only registration strings. Resolving them
// would need the caller's unique bus identity, which the registration call
// does not carry.
var ErrUnsupportedForm = errors.New("tray: path-only registration is not supported")

// ResolveIdentity parses a registration string into a (service, path) pair.
// A bare service name gets DefaultItemPath; "service/sub" splits at the first
// separator into the service and an absolute object path.
func ResolveIdentity(name string) (service, path string, err error) {
	if name == "" {
		return "", "", fmt.Errorf("tray: empty registration string")
	}
	if strings.HasPrefix(name, "/") {
		return "", "", ErrUnsupportedForm
	}

	service, sub, ok := strings.Cut(name, "/")
	if !ok {
		return name, DefaultItemPath, nil
	}
	return service, "/" + sub, nil
}

// Registry is the ordered (service, path) to item mapping. It holds no DBus
// state; the service layer feeds it registration calls and the refresher
// feeds it icon results. Insertion order is display order and survives icon
// refreshes.
type Registry struct {
	mu    sync.Mutex
	order []string
	items map[string]*models.TrayItem
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*models.TrayItem)}
}

func key(service, path string) string {
	return service + path
}

// Register adds a new item for the pair. Registering an already-present pair
// is a no-op returning false; the caller still acknowledges success.
func (r *Registry) Register(service, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(service, path)
	if _, ok := r.items[k]; ok {
		return false
	}
	r.order = append(r.order, k)
	r.items[k] = &models.TrayItem{Service: service, Path: path}
	return true
}

// Unregister removes the item for the pair, reporting whether it existed.
func (r *Registry) Unregister(service, path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key(service, path))
}

// RemoveService removes every item owned by the given service. Used when the
// peer's bus name disappears.
func (r *Registry) RemoveService(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, k := range append([]string(nil), r.order...) {
		if item := r.items[k]; item != nil && item.Service == service {
			r.removeLocked(k)
			removed++
		}
	}
	return removed
}

func (r *Registry) removeLocked(k string) bool {
	if _, ok := r.items[k]; !ok {
		return false
	}
	delete(r.items, k)
	for i, existing := range r.order {
		if existing == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetIcon records a refresh result for the pair, in place so the item keeps
// its position. Returns whether the stored icon state actually changed.
func (r *Registry) SetIcon(service, path, iconName string, known bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[key(service, path)]
	if !ok {
		return false
	}
	changed := item.IconName != iconName || item.IconKnown != known
	item.IconName = iconName
	item.IconKnown = known
	item.RefreshedAt = time.Now()
	return changed
}

// Items returns the items as values in insertion order, safe to hand across
// goroutines.
func (r *Registry) Items() []models.TrayItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.TrayItem, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, *r.items[k])
	}
	return out
}

// Keys returns the registration-string identities in insertion order, the
// shape the watcher protocol's item-list property wants.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
