package pausectl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/you/pausectl/coord"
)

// ErrEmptyQueueName is returned when a name normalizes to nothing.
var ErrEmptyQueueName = errors.New("queue name is empty")

// Coordinator keeps a process-local mirror of the shared pause set and
// exposes the pause/resume/filter operations built on it. One Coordinator is
// shared by all worker goroutines in a process; pass it through the
// scheduling loop's configuration rather than a package-level global.
//
// The mirror may lag the shared set when notifications are dropped; the
// periodic resync bounds that staleness to roughly one ResyncInterval.
type Coordinator struct {
	cfg     Config
	store   coord.Store
	bus     coord.Broadcast
	codec   NameCodec
	logger  Logger
	metrics Metrics

	// mu guards the mirror and the timer state. It is never held across a
	// store call.
	mu        sync.Mutex
	mirror    map[string]struct{}
	activated bool
	timerStop context.CancelFunc
	timerDone chan struct{}
}

// NewCoordinator constructs a Coordinator. codec, logger, and metrics may be
// nil, in which case DefaultCodec and no-op implementations are used.
func NewCoordinator(cfg Config, store coord.Store, bus coord.Broadcast, codec NameCodec, logger Logger, metrics Metrics) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || bus == nil {
		return nil, fmt.Errorf("store and broadcast are required")
	}
	if codec == nil {
		codec = DefaultCodec{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		codec:   codec,
		logger:  logger,
		metrics: metrics,
		mirror:  map[string]struct{}{},
	}, nil
}

// Activate registers the broadcast handlers, the readiness resync, and the
// resync timer start/stop against the runtime's lifecycle hooks. It is
// idempotent, never blocks, and belongs on the worker startup path only.
func (c *Coordinator) Activate(lc Lifecycle) {
	c.mu.Lock()
	if c.activated {
		c.mu.Unlock()
		return
	}
	c.activated = true
	c.mu.Unlock()

	c.bus.Receive(coord.KindPause, func(queue string) { c.applyPause(queue) })
	c.bus.Receive(coord.KindResume, func(queue string) { c.applyResume(queue) })
	c.bus.Ready(func() {
		// Heals whatever was published while the subscriber was not
		// listening, including everything before a late process joined.
		if err := c.resync(context.Background()); err != nil {
			c.logger.Warn("resync after subscribe failed", Field{Key: "err", Value: err})
		}
	})
	lc.OnStart(c.startResyncTimer)
	lc.OnQuiesce(c.stopResyncTimer)
}

// Run activates the coordinator, starts the broadcast subscriber and the
// resync timer, and blocks until ctx is cancelled. Hosts with native
// lifecycle hooks can call Activate directly and run the broadcast
// themselves instead.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Activate(nopLifecycle{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.bus.Listen(gctx) })
	c.startResyncTimer()
	defer c.stopResyncTimer()
	return g.Wait()
}

// Filter returns names with every currently paused queue removed, preserving
// relative order. It reads only the local mirror and never blocks on I/O.
// Fail-open: on any internal failure the original slice is returned, because
// pausing is a control feature and must never halt queue processing.
func (c *Coordinator) Filter(names []string) (remaining []string) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.IncCounter("filter_failopen_total", 1)
			c.logger.Error("queue filter failed, leaving list unfiltered", Field{Key: "err", Value: r})
			remaining = names
		}
	}()
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining = make([]string, 0, len(names))
	for _, name := range names {
		key := c.codec.MirrorKey(c.codec.Canonical(name))
		if _, paused := c.mirror[key]; !paused {
			remaining = append(remaining, name)
		}
	}
	return remaining
}

// ListPausedQueues returns the canonical names in the shared pause set. This
// is an authoritative read that bypasses the local mirror.
func (c *Coordinator) ListPausedQueues(ctx context.Context) ([]string, error) {
	names, err := c.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("list paused queues: %w", err)
	}
	return names, nil
}

// Pause adds the queue to the shared pause set and notifies every process.
// The local mirror is left alone: the originating process converges through
// the same notification path as everyone else.
func (c *Coordinator) Pause(ctx context.Context, name string) error {
	queue := c.codec.Canonical(name)
	if queue == "" {
		return ErrEmptyQueueName
	}
	if err := c.store.Add(ctx, queue); err != nil {
		return fmt.Errorf("pause %q: %w", queue, err)
	}
	c.logger.Info("queue pause requested", Field{Key: "queue", Value: queue})
	return nil
}

// Resume removes the queue from the shared pause set and notifies every
// process.
func (c *Coordinator) Resume(ctx context.Context, name string) error {
	queue := c.codec.Canonical(name)
	if queue == "" {
		return ErrEmptyQueueName
	}
	if err := c.store.Remove(ctx, queue); err != nil {
		return fmt.Errorf("resume %q: %w", queue, err)
	}
	c.logger.Info("queue resume requested", Field{Key: "queue", Value: queue})
	return nil
}

// IsPaused checks membership against the shared pause set. Unlike Filter,
// this is a strongly consistent read and may block on store I/O.
func (c *Coordinator) IsPaused(ctx context.Context, name string) (bool, error) {
	queue := c.codec.Canonical(name)
	if queue == "" {
		return false, ErrEmptyQueueName
	}
	paused, err := c.store.Contains(ctx, queue)
	if err != nil {
		return false, fmt.Errorf("check paused %q: %w", queue, err)
	}
	return paused, nil
}

func (c *Coordinator) applyPause(queue string) {
	key := c.codec.MirrorKey(queue)
	c.mu.Lock()
	c.mirror[key] = struct{}{}
	n := len(c.mirror)
	c.mu.Unlock()
	c.metrics.IncCounter("pause_notifications_total", 1, Label{Name: "kind", Value: "pause"})
	c.metrics.SetGauge("paused_queues_mirrored", float64(n))
	c.logger.Debug("pause notification applied", Field{Key: "queue", Value: queue})
}

func (c *Coordinator) applyResume(queue string) {
	key := c.codec.MirrorKey(queue)
	c.mu.Lock()
	delete(c.mirror, key)
	n := len(c.mirror)
	c.mu.Unlock()
	c.metrics.IncCounter("pause_notifications_total", 1, Label{Name: "kind", Value: "resume"})
	c.metrics.SetGauge("paused_queues_mirrored", float64(n))
	c.logger.Debug("resume notification applied", Field{Key: "queue", Value: queue})
}

// resync replaces the whole mirror with the shared set. This is the only
// path that can undo a missed notification in either direction. The store
// read runs with no lock held; the lock covers only the swap, so a slow
// store never stalls Filter. On read error the mirror keeps its last value.
func (c *Coordinator) resync(ctx context.Context) error {
	names, err := c.store.Members(ctx)
	if err != nil {
		return fmt.Errorf("read shared pause set: %w", err)
	}
	fresh := make(map[string]struct{}, len(names))
	for _, name := range names {
		fresh[c.codec.MirrorKey(name)] = struct{}{}
	}
	c.mu.Lock()
	c.mirror = fresh
	c.mu.Unlock()
	c.metrics.IncCounter("resyncs_total", 1)
	c.metrics.SetGauge("paused_queues_mirrored", float64(len(fresh)))
	return nil
}

// startResyncTimer begins the periodic full resync, firing once immediately.
// It is a no-op if the timer is already running.
func (c *Coordinator) startResyncTimer() {
	c.mu.Lock()
	if c.timerStop != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.timerStop = cancel
	c.timerDone = done
	c.mu.Unlock()
	go c.resyncLoop(ctx, done)
}

// stopResyncTimer stops future resyncs. Safe to call repeatedly or before
// the timer ever started.
func (c *Coordinator) stopResyncTimer() {
	c.mu.Lock()
	cancel := c.timerStop
	done := c.timerDone
	c.timerStop = nil
	c.timerDone = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Coordinator) resyncLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	// The immediate pass seeds processes that start before the broadcast
	// subscriber signals readiness.
	if err := c.resync(ctx); err != nil {
		c.logger.Warn("initial resync failed", Field{Key: "err", Value: err})
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(c.cfg.ResyncInterval, c.cfg.JitterRatio)):
			if err := c.resync(ctx); err != nil {
				c.logger.Warn("periodic resync failed", Field{Key: "err", Value: err})
			}
		}
	}
}

func jitter(base time.Duration, ratio float64) time.Duration {
	if ratio <= 0 {
		return base
	}
	delta := int64(float64(base) * ratio)
	if delta == 0 {
		return base
	}
	// add or subtract up to delta.
	offset := rand.Int63n(2*delta+1) - delta
	return time.Duration(int64(base) + offset)
}
