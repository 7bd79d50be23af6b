package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/you/pausectl/coord"
)

// Backoff controls the delay between re-subscribe attempts.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff is used when no backoff is configured.
var DefaultBackoff = Backoff{
	Base:       500 * time.Millisecond,
	Max:        30 * time.Second,
	Multiplier: 2.0,
}

func (b Backoff) next(retry int) time.Duration {
	if retry <= 0 {
		return b.Base
	}
	d := float64(b.Base)
	for i := 0; i < retry; i++ {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// Broadcast implements coord.Broadcast over Redis PUB/SUB. One Broadcast is
// run per process; it resubscribes with backoff after connection loss and
// fires the ready callbacks after every successful (re)subscribe.
type Broadcast struct {
	client  goredis.UniversalClient
	prefix  string
	backoff Backoff

	mu       sync.Mutex
	handlers map[coord.Kind]coord.Handler
	ready    []func()
}

// NewBroadcast builds a Broadcast sharing the given client.
func NewBroadcast(client goredis.UniversalClient, keyPrefix string) *Broadcast {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Broadcast{
		client:   client,
		prefix:   keyPrefix,
		backoff:  DefaultBackoff,
		handlers: map[coord.Kind]coord.Handler{},
	}
}

// Receive registers the handler for kind, replacing any previous one.
func (b *Broadcast) Receive(kind coord.Kind, h coord.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = h
}

// Ready registers fn to run after every successful (re)subscribe.
func (b *Broadcast) Ready(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = append(b.ready, fn)
}

// Listen subscribes to the pause and resume channels and dispatches messages
// to the registered handlers until ctx is cancelled.
func (b *Broadcast) Listen(ctx context.Context) error {
	channels := []string{
		channelName(b.prefix, coord.KindPause),
		channelName(b.prefix, coord.KindResume),
	}
	retry := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		pubsub := b.client.Subscribe(ctx, channels...)
		// Wait for the subscribe confirmation before announcing readiness.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			retry++
			if !b.wait(ctx, retry) {
				return nil
			}
			continue
		}
		retry = 0
		b.fireReady()
		b.dispatch(ctx, pubsub)
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return nil
		}
		retry++
		if !b.wait(ctx, retry) {
			return nil
		}
	}
}

func (b *Broadcast) dispatch(ctx context.Context, pubsub *goredis.PubSub) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		kind := coord.Kind(strings.TrimPrefix(msg.Channel, b.prefix))
		b.mu.Lock()
		h := b.handlers[kind]
		b.mu.Unlock()
		if h != nil {
			h(msg.Payload)
		}
	}
}

func (b *Broadcast) fireReady() {
	b.mu.Lock()
	fns := append(([]func())(nil), b.ready...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *Broadcast) wait(ctx context.Context, retry int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(b.backoff.next(retry)):
		return true
	}
}
