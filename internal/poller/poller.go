package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lunia-systems/lunia-console/internal/pkg/logger"
	"github.com/lunia-systems/lunia-console/internal/pkg/metrics"
)

// State is the continuously-updated view of one polled resource. Data is
// the last-known-good value and survives transient failures; Loading is
// true only while the current activation has not yet resolved once.
type State[T any] struct {
	Data        *T
	Err         error
	Loading     bool
	LastUpdated time.Time
}

type FetchFunc[T any] func(ctx context.Context) (T, error)

// Poller drives one resource subscription: an immediate fetch on
// activation, then a fixed-interval ticker. Each cycle runs inside its own
// cancellation scope; starting a cycle cancels the previous scope, and a
// result may only touch state while its scope is still the newest. The
// fixed interval is the only retry policy.
type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration

	mu         sync.Mutex
	state      State[T]
	key        string
	running    bool
	gen        uint64
	cycle      uint64
	cancelLoop context.CancelFunc
	cancelCyc  context.CancelFunc

	subs map[chan State[T]]struct{}
}

func New[T any](name string, fetch FetchFunc[T], interval time.Duration) *Poller[T] {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller[T]{
		name:     name,
		fetch:    fetch,
		interval: interval,
		state:    State[T]{Loading: true},
		subs:     make(map[chan State[T]]struct{}),
	}
}

func (p *Poller[T]) Name() string {
	return p.name
}

// Start activates the poller under the given dependency key. Starting an
// already-running poller with the same key is a no-op.
func (p *Poller[T]) Start(key string) {
	p.activate(key, false)
}

// Restart re-activates when the dependency key changed by value: the
// in-flight cycle is cancelled, the timer is cleared, state resets to
// loading, and a fresh immediate fetch begins.
func (p *Poller[T]) Restart(key string) {
	p.activate(key, false)
}

// ForceRestart re-activates even when the key is unchanged.
func (p *Poller[T]) ForceRestart() {
	p.mu.Lock()
	key := p.key
	p.mu.Unlock()
	p.activate(key, true)
}

func (p *Poller[T]) activate(key string, force bool) {
	p.mu.Lock()
	if p.running && p.key == key && !force {
		p.mu.Unlock()
		return
	}

	// Teardown before any new scope exists.
	if p.cancelCyc != nil {
		p.cancelCyc()
		p.cancelCyc = nil
	}
	if p.cancelLoop != nil {
		p.cancelLoop()
	}

	p.gen++
	gen := p.gen
	p.key = key
	p.running = true
	p.state = State[T]{Loading: true}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancelLoop = cancel
	p.mu.Unlock()

	p.broadcast()
	go p.runLoop(loopCtx, gen)
}

// Stop cancels the current scope and clears the timer. Idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelCyc != nil {
		p.cancelCyc()
		p.cancelCyc = nil
	}
	if p.cancelLoop != nil {
		p.cancelLoop()
		p.cancelLoop = nil
	}
	p.running = false
	p.gen++
}

func (p *Poller[T]) Snapshot() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe registers a state listener. Updates that arrive while the
// channel is full are dropped; the snapshot is always available via
// Snapshot. The returned func cancels the subscription.
func (p *Poller[T]) Subscribe() (<-chan State[T], func()) {
	ch := make(chan State[T], 4)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
}

func (p *Poller[T]) runLoop(ctx context.Context, gen uint64) {
	p.runCycle(ctx, gen)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx, gen)
		}
	}
}

// runCycle opens a new cancellation scope, superseding any in-flight one,
// and launches the fetch. The cycle number taken here is what the
// completion handler later checks against: only the newest cycle of the
// newest activation may write state.
func (p *Poller[T]) runCycle(loopCtx context.Context, gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.cancelCyc != nil {
		p.cancelCyc()
	}
	ctx, cancel := context.WithCancel(loopCtx)
	p.cancelCyc = cancel
	p.cycle++
	cycle := p.cycle
	p.mu.Unlock()

	go func() {
		data, err := p.fetch(ctx)
		p.complete(gen, cycle, data, err)
	}()
}

func (p *Poller[T]) complete(gen, cycle uint64, data T, err error) {
	if err != nil && errors.Is(err, context.Canceled) {
		// Superseded or torn down; expected, not an error.
		metrics.PollCycles.WithLabelValues(p.name, "cancelled").Inc()
		return
	}

	p.mu.Lock()
	if gen != p.gen || cycle != p.cycle {
		// A newer scope has been entered; this result is stale.
		p.mu.Unlock()
		metrics.PollCycles.WithLabelValues(p.name, "superseded").Inc()
		return
	}

	if err != nil {
		p.state.Err = err
		p.state.Loading = false
		// Data deliberately retained: last-known-good survives failures.
		snapshot := p.state
		if !snapshot.LastUpdated.IsZero() {
			metrics.PollStaleness.WithLabelValues(p.name).Set(time.Since(snapshot.LastUpdated).Seconds())
		}
		p.mu.Unlock()

		metrics.PollCycles.WithLabelValues(p.name, "error").Inc()
		logger.Warn("poll cycle failed", "resource", p.name, "error", err)
		p.broadcast()
		return
	}

	p.state = State[T]{Data: &data, Loading: false, LastUpdated: time.Now()}
	p.mu.Unlock()

	metrics.PollCycles.WithLabelValues(p.name, "ok").Inc()
	metrics.PollStaleness.WithLabelValues(p.name).Set(0)
	p.broadcast()
}

func (p *Poller[T]) broadcast() {
	p.mu.Lock()
	state := p.state
	targets := make([]chan State[T], 0, len(p.subs))
	for ch := range p.subs {
		targets = append(targets, ch)
	}
	p.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- state:
		default:
		}
	}
}
