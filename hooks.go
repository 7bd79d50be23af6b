package pausectl

import "sync"

// Lifecycle exposes the host runtime's process lifecycle: a startup hook
// fired once the process is ready to work, and a quiesce hook fired when
// graceful shutdown begins. The coordinator registers its resync timer
// against these.
type Lifecycle interface {
	OnStart(fn func())
	OnQuiesce(fn func())
}

// HookSet is a Lifecycle for hosts without native hooks, and for tests.
// Register with OnStart/OnQuiesce, then fire with Start/Quiesce.
type HookSet struct {
	mu      sync.Mutex
	start   []func()
	quiesce []func()
}

// OnStart registers fn to run when Start fires.
func (h *HookSet) OnStart(fn func()) {
	h.mu.Lock()
	h.start = append(h.start, fn)
	h.mu.Unlock()
}

// OnQuiesce registers fn to run when Quiesce fires.
func (h *HookSet) OnQuiesce(fn func()) {
	h.mu.Lock()
	h.quiesce = append(h.quiesce, fn)
	h.mu.Unlock()
}

// Start fires the registered start hooks in registration order.
func (h *HookSet) Start() {
	h.mu.Lock()
	fns := append(([]func())(nil), h.start...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Quiesce fires the registered quiesce hooks in registration order.
func (h *HookSet) Quiesce() {
	h.mu.Lock()
	fns := append(([]func())(nil), h.quiesce...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type nopLifecycle struct{}

func (nopLifecycle) OnStart(func())   {}
func (nopLifecycle) OnQuiesce(func()) {}
