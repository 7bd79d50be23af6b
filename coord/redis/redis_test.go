package redis

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/you/pausectl/coord"
)

func TestAddRemoveMembers(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Add(ctx, "critical"); err != nil {
		t.Fatalf("add critical: %v", err)
	}
	if err := store.Add(ctx, "default"); err != nil {
		t.Fatalf("add default: %v", err)
	}
	if err := store.Add(ctx, "critical"); err != nil {
		t.Fatalf("add critical again: %v", err)
	}

	names, err := store.Members(ctx)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	sort.Strings(names)
	if len(names) != 2 || names[0] != "critical" || names[1] != "default" {
		t.Fatalf("unexpected members: %v", names)
	}

	ok, err := store.Contains(ctx, "critical")
	if err != nil || !ok {
		t.Fatalf("expected critical paused: ok=%v err=%v", ok, err)
	}

	if err := store.Remove(ctx, "critical"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ok, err = store.Contains(ctx, "critical")
	if err != nil {
		t.Fatalf("contains after remove: %v", err)
	}
	if ok {
		t.Fatalf("expected critical removed")
	}
}

func TestAddPublishesNotification(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	bus := store.Broadcast()
	got := make(chan string, 1)
	ready := make(chan struct{}, 1)
	bus.Receive(coord.KindPause, func(queue string) {
		select {
		case got <- queue:
		default:
		}
	})
	bus.Ready(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Listen(ctx)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never became ready")
	}

	if err := store.Add(context.Background(), "critical"); err != nil {
		t.Fatalf("add: %v", err)
	}

	select {
	case queue := <-got:
		if queue != "critical" {
			t.Fatalf("unexpected payload %q", queue)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pause notification never arrived")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("listen did not stop on cancel")
	}
}

func TestRemovePublishesResume(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close()

	bus := store.Broadcast()
	got := make(chan string, 1)
	ready := make(chan struct{}, 1)
	bus.Receive(coord.KindResume, func(queue string) {
		select {
		case got <- queue:
		default:
		}
	})
	bus.Ready(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Listen(ctx) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber never became ready")
	}

	if err := store.Remove(context.Background(), "default"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	select {
	case queue := <-got:
		if queue != "default" {
			t.Fatalf("unexpected payload %q", queue)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("resume notification never arrived")
	}
}

func TestKeyPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(Options{Addr: mr.Addr(), KeyPrefix: "appA:"})
	if err != nil {
		t.Fatalf("new store A: %v", err)
	}
	defer a.Close()
	b, err := New(Options{Addr: mr.Addr(), KeyPrefix: "appB:"})
	if err != nil {
		t.Fatalf("new store B: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := a.Add(ctx, "critical"); err != nil {
		t.Fatalf("add: %v", err)
	}
	names, err := b.Members(ctx)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("prefix leak: %v", names)
	}
}

func TestBackoffNext(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second, Multiplier: 2}
	if got := b.next(0); got != time.Second {
		t.Fatalf("retry0 expected 1s, got %v", got)
	}
	if got := b.next(2); got != 4*time.Second {
		t.Fatalf("retry2 expected 4s, got %v", got)
	}
	if got := b.next(10); got != b.Max {
		t.Fatalf("expected cap at %v, got %v", b.Max, got)
	}
}

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := New(Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, mr
}
