package compositor

import (
	"context"
	"log"
	"time"

	"github.com/waypanel-io/waypanel/internal/models"
)

// DefaultPollInterval is used when the configured interval is not positive.
const DefaultPollInterval = 750 * time.Millisecond

// DefaultStaleAfter is the consecutive-failure count at which the poller
// reports the state as stale.
const DefaultStaleAfter = 3

// Querier produces one complete compositor snapshot. Client implements it
// against the live compositor; tests substitute fakes.
type Querier interface {
	Snapshot(ctx context.Context) (*models.CompositorSnapshot, error)
}

// Publisher is the sink for compositor updates, satisfied by bus.Bus.
type Publisher interface {
	Publish(update models.Update) error
}

// Poller queries the compositor on a fixed interval and publishes a
// CompositorChanged only when the assembled snapshot differs from the last
// one it emitted. After staleAfter consecutive query failures it publishes a
// single CompositorStale; the next successful poll clears the condition.
type Poller struct {
	querier    Querier
	publisher  Publisher
	interval   time.Duration
	staleAfter int

	prev          *models.CompositorSnapshot
	failures      int
	staleReported bool
}

// NewPoller creates a poller. Non-positive interval and staleAfter fall back
// to the defaults.
func NewPoller(querier Querier, publisher Publisher, interval time.Duration, staleAfter int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Poller{
		querier:    querier,
		publisher:  publisher,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Run polls until the context is canceled. An immediate first poll runs
// before the ticker starts so consumers get initial state without waiting a
// full interval.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll performs one query cycle. It is not safe for concurrent use; Run is
// the only caller.
func (p *Poller) poll(ctx context.Context) {
	snap, err := p.querier.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.failures++
		if p.failures >= p.staleAfter && !p.staleReported {
			p.staleReported = true
			log.Printf("[compositor] %d consecutive query failures, reporting stale: %v", p.failures, err)
			_ = p.publisher.Publish(models.CompositorStale{Failures: p.failures, Err: err})
		}
		return
	}

	if p.failures > 0 {
		log.Printf("[compositor] query recovered after %d failures", p.failures)
	}
	p.failures = 0

	// A snapshot identical to the last emitted one is suppressed, except when
	// recovering from a stale report: consumers need an update to clear the
	// staleness indicator.
	if snap.Equal(p.prev) && !p.staleReported {
		return
	}
	p.staleReported = false
	p.prev = snap
	_ = p.publisher.Publish(models.CompositorChanged{Snapshot: snap})
}
