package coord

import "context"

// Kind identifies a pause notification type.
type Kind string

const (
	// KindPause announces that a queue was added to the shared pause set.
	KindPause Kind = "pause"
	// KindResume announces that a queue was removed from the shared pause set.
	KindResume Kind = "resume"
)

// Handler consumes a notification payload, a canonical queue name. Handlers
// run on the subscriber's delivery goroutine, concurrently with application
// code.
type Handler func(queue string)

// Store is the authoritative record of paused queues: a set of canonical
// queue names under one well-known key in the shared store.
type Store interface {
	// Add inserts name into the shared pause set and transmits the pause
	// notification on the same connection, so the write is observed before
	// the notification by anyone watching that connection.
	Add(ctx context.Context, name string) error
	// Remove deletes name from the shared pause set and transmits the
	// resume notification, mirroring Add's connection discipline.
	Remove(ctx context.Context, name string) error
	// Members returns every canonical name in the shared pause set.
	Members(ctx context.Context) ([]string, error)
	// Contains reports whether name is in the shared pause set.
	Contains(ctx context.Context, name string) (bool, error)
}

// Broadcast is the receive side of the notification channel. Delivery is
// best-effort and at-most-once; missed notifications are healed by resync,
// not by the channel.
type Broadcast interface {
	// Receive registers the single handler for kind, replacing any
	// previous registration.
	Receive(kind Kind, h Handler)
	// Ready registers fn to run every time the subscriber (re)establishes
	// active listening, including after reconnects.
	Ready(fn func())
	// Listen runs the subscriber until ctx is cancelled. It returns nil on
	// cancellation.
	Listen(ctx context.Context) error
}
