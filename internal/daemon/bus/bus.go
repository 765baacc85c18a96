// Package bus implements the bounded multi-producer/single-consumer channel
// carrying typed update messages from the daemon's producers to the
// reconciler.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/waypanel-io/waypanel/internal/models"
)

// ErrClosed is returned when operations are called on a closed Bus.
var ErrClosed = errors.New("bus: bus is closed")

// DefaultCapacity is the per-stream pending message limit used when the
// configured capacity is not positive.
const DefaultCapacity = 16

// kinds is the fixed drain order; the receive cursor rotates over it so no
// stream can starve another.
var kinds = []models.UpdateKind{
	models.KindConfig,
	models.KindCompositor,
	models.KindTray,
}

// Bus is a bounded MPSC queue of update messages. Each update kind gets its
// own FIFO, so messages from one producer are delivered in emission order
// while a full queue only ever displaces that producer's own oldest pending
// message. Every producer stream is latest-wins, which makes that drop
// lossless in effect.
type Bus struct {
	mu       sync.Mutex
	queues   map[models.UpdateKind][]models.Update
	capacity int
	notify   chan struct{}
	done     chan struct{}
	closed   bool
	cursor   int
	dropped  map[models.UpdateKind]uint64
}

// New creates a bus with the given per-stream capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		queues:   make(map[models.UpdateKind][]models.Update),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		dropped:  make(map[models.UpdateKind]uint64),
	}
}

// Publish enqueues an update without blocking. When the stream for the
// update's kind is full, the oldest pending message of that kind is dropped.
// Publishing on a closed bus returns ErrClosed.
func (b *Bus) Publish(update models.Update) error {
	kind := update.UpdateKind()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	queue := b.queues[kind]
	if len(queue) >= b.capacity {
		queue = queue[1:]
		b.dropped[kind]++
	}
	b.queues[kind] = append(queue, update)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive returns the next pending update, blocking until one is available,
// the context is canceled, or the bus is closed. Only one goroutine, the
// reconciler, may call Receive.
func (b *Bus) Receive(ctx context.Context) (models.Update, error) {
	for {
		if update, ok := b.pop(); ok {
			return update, nil
		}

		select {
		case <-b.notify:
		case <-b.done:
			// Drain what was published before Close.
			if update, ok := b.pop(); ok {
				return update, nil
			}
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// pop removes the next update, rotating across kinds for fairness.
func (b *Bus) pop() (models.Update, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < len(kinds); i++ {
		kind := kinds[(b.cursor+i)%len(kinds)]
		queue := b.queues[kind]
		if len(queue) == 0 {
			continue
		}
		update := queue[0]
		b.queues[kind] = queue[1:]
		b.cursor = (b.cursor + i + 1) % len(kinds)
		return update, true
	}
	return nil, false
}

// Pending returns the number of undelivered messages across all streams.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, queue := range b.queues {
		n += len(queue)
	}
	return n
}

// Dropped returns how many messages of the given kind were displaced by
// backpressure.
func (b *Bus) Dropped(kind models.UpdateKind) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped[kind]
}

// Close stops the bus. Pending messages can still be drained by Receive;
// further publishes fail with ErrClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	close(b.done)
}
