package repository

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

// EventKind names a repository state change.
type EventKind string

const (
	EventLoaded     EventKind = "loaded"
	EventAdded      EventKind = "added"
	EventRemoved    EventKind = "removed"
	EventReconciled EventKind = "reconciled"
)

// Source tells whether a change went through the remote gateway or the
// local cache store.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Event describes a completed state change. Transaction is set for added
// and removed events.
type Event struct {
	Kind        EventKind
	UserID      string
	Transaction core.Transaction
	Source      Source
	Count       int
}

// Listener receives events synchronously after the state change, outside
// the repository lock. It must not block for long.
type Listener func(Event)

// changeSeq is shared by every repository so versions never repeat within
// the process, even across sessions of the same user.
var changeSeq atomic.Uint64

// Version returns a value that changes after every event. Two repositories
// never report the same version.
func (r *Repository) Version() uint64 {
	return r.version.Load()
}

// Subscribe registers l and returns a function that unregisters it.
func (r *Repository) Subscribe(l Listener) (unsubscribe func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		delete(r.listeners, id)
	}
}

func (r *Repository) emit(ev Event) {
	r.version.Store(changeSeq.Add(1))

	r.listenersMu.Lock()
	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	r.listenersMu.Unlock()

	// Subscription order.
	slices.Sort(ids)
	for _, id := range ids {
		r.listenersMu.Lock()
		l, ok := r.listeners[id]
		r.listenersMu.Unlock()
		if ok {
			l(ev)
		}
	}
}

// EventPublisher forwards events to an external system such as a message
// broker.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, kind, userID, txID, source string, count int) error
}

// PublishTo adapts p into a Listener. Publish failures are logged and never
// affect the repository operation.
func PublishTo(p EventPublisher, timeout time.Duration, logger *log.Logger) Listener {
	if logger == nil {
		logger = log.Default(log.ComponentRepository)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(ev Event) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := p.PublishTransactionEvent(ctx, string(ev.Kind), ev.UserID, ev.Transaction.ID, string(ev.Source), ev.Count)
		if err != nil {
			logger.Failure(ctx, "Failed to publish transaction event", log.OpPublish, err,
				log.FieldUserID, ev.UserID, "kind", ev.Kind)
		}
	}
}
