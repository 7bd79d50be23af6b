// Package fakestore provides in-memory coord.Store and coord.Broadcast
// implementations for tests: synchronous notification delivery, multiple
// subscriber endpoints, controllable message drops, and injectable store
// failures.
package fakestore

import (
	"context"
	"sort"
	"sync"

	"github.com/you/pausectl/coord"
)

// Store is an in-memory shared pause set wired to its own broadcast bus.
type Store struct {
	mu       sync.Mutex
	paused   map[string]struct{}
	subs     []*Broadcast
	readErr  error
	writeErr error
	reads    int
}

// New returns a fresh in-memory store.
func New() *Store {
	return &Store{paused: map[string]struct{}{}}
}

// FailReads makes Members and Contains return err until reset with nil.
func (s *Store) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites makes Add and Remove return err until reset with nil.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Reads reports how many authoritative reads were served.
func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Seed inserts names without notifying anyone, simulating writes the
// subscribers never heard about.
func (s *Store) Seed(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.paused[n] = struct{}{}
	}
}

// Drop removes names without notifying anyone.
func (s *Store) Drop(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		delete(s.paused, n)
	}
}

// Subscriber returns a new broadcast endpoint, one per simulated process.
func (s *Store) Subscriber() *Broadcast {
	b := &Broadcast{handlers: map[coord.Kind]coord.Handler{}}
	s.mu.Lock()
	s.subs = append(s.subs, b)
	s.mu.Unlock()
	return b
}

func (s *Store) Add(_ context.Context, name string) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	s.paused[name] = struct{}{}
	subs := append([]*Broadcast(nil), s.subs...)
	s.mu.Unlock()
	for _, b := range subs {
		b.deliver(coord.KindPause, name)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	delete(s.paused, name)
	subs := append([]*Broadcast(nil), s.subs...)
	s.mu.Unlock()
	for _, b := range subs {
		b.deliver(coord.KindResume, name)
	}
	return nil
}

func (s *Store) Members(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.reads++
	names := make([]string, 0, len(s.paused))
	for n := range s.paused {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Contains(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	s.reads++
	_, ok := s.paused[name]
	return ok, nil
}

// Broadcast is one simulated process's view of the notification channel.
// Deliveries are synchronous: the handler has returned by the time the
// originating Add or Remove returns.
type Broadcast struct {
	mu       sync.Mutex
	handlers map[coord.Kind]coord.Handler
	ready    []func()
	drop     int
	dropped  int
}

func (b *Broadcast) Receive(kind coord.Kind, h coord.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = h
}

func (b *Broadcast) Ready(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = append(b.ready, fn)
}

// Listen announces readiness once and blocks until ctx is done.
func (b *Broadcast) Listen(ctx context.Context) error {
	b.SignalReady()
	<-ctx.Done()
	return nil
}

// SignalReady fires the ready callbacks, as after a (re)subscribe.
func (b *Broadcast) SignalReady() {
	b.mu.Lock()
	fns := append(([]func())(nil), b.ready...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// DropNext makes the next n notifications to this subscriber vanish.
func (b *Broadcast) DropNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drop = n
}

// Dropped reports how many notifications were dropped so far.
func (b *Broadcast) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Broadcast) deliver(kind coord.Kind, payload string) {
	b.mu.Lock()
	if b.drop > 0 {
		b.drop--
		b.dropped++
		b.mu.Unlock()
		return
	}
	h := b.handlers[kind]
	b.mu.Unlock()
	if h != nil {
		h(payload)
	}
}
