package pausectl

import "context"

// QueueLister is the job runtime's queue-listing surface.
type QueueLister interface {
	Queues(ctx context.Context) ([]string, error)
}

// PauseAwareQueues decorates a QueueLister with a pause predicate. The
// embedded lister keeps its behavior; only the predicate is added.
type PauseAwareQueues struct {
	QueueLister
	pause *Coordinator
}

// WithPauseStatus wraps lister so callers can ask whether a listed queue is
// paused.
func WithPauseStatus(lister QueueLister, c *Coordinator) *PauseAwareQueues {
	return &PauseAwareQueues{QueueLister: lister, pause: c}
}

// Paused reports whether the named queue is currently paused, checked
// against the shared store rather than the local mirror.
func (q *PauseAwareQueues) Paused(ctx context.Context, name string) (bool, error) {
	return q.pause.IsPaused(ctx, name)
}
