package repository

import (
	"context"
	"sync"
	"time"

	"ledger/internal/gateway"
)

// DefaultIdleTimeout is how long an unused session is kept.
const DefaultIdleTimeout = 30 * time.Minute

type session struct {
	repo     *Repository
	lastUsed time.Time
}

// Registry hands out one Repository per user, created on first use. Sessions
// nobody has asked for within the idle timeout are dropped by CleanExpired.
type Registry struct {
	gw    gateway.Gateway
	store LocalStore
	opts  []Option
	idle  time.Duration

	mu    sync.Mutex
	repos map[string]*session
}

// NewRegistry creates a registry whose repositories share gw and store and
// are built with opts.
func NewRegistry(gw gateway.Gateway, store LocalStore, opts ...Option) *Registry {
	return &Registry{
		gw:    gw,
		store: store,
		opts:  opts,
		idle:  DefaultIdleTimeout,
		repos: make(map[string]*session),
	}
}

// SetIdleTimeout changes how long an unused session survives. Non-positive
// values are ignored.
func (reg *Registry) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.idle = d
}

// Get returns the repository for userID, creating it if needed, and marks
// the session as used.
func (reg *Registry) Get(userID string) *Repository {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	s := reg.sessionLocked(userID)
	s.lastUsed = time.Now()
	return s.repo
}

// Reconcile runs a reconcile pass through userID's repository without
// marking the session as used. A repository created here is evicted on the
// next cleanup unless a request picks it up first.
func (reg *Registry) Reconcile(ctx context.Context, userID string) (ReconcileResult, error) {
	reg.mu.Lock()
	repo := reg.sessionLocked(userID).repo
	reg.mu.Unlock()
	return repo.Reconcile(ctx)
}

func (reg *Registry) sessionLocked(userID string) *session {
	if s, ok := reg.repos[userID]; ok {
		return s
	}
	s := &session{repo: New(userID, reg.gw, reg.store, reg.opts...)}
	reg.repos[userID] = s
	return s
}

// CleanIdle drops sessions last used before cutoff and returns how many
// were dropped. A request still holding a dropped repository finishes
// normally; the next one starts a fresh session.
func (reg *Registry) CleanIdle(cutoff time.Time) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	n := 0
	for userID, s := range reg.repos {
		if s.lastUsed.Before(cutoff) {
			delete(reg.repos, userID)
			n++
		}
	}
	return n
}

// CleanExpired drops sessions idle for longer than the idle timeout. It lets
// a cache.Manager sweep the registry with the other caches.
func (reg *Registry) CleanExpired() int {
	reg.mu.Lock()
	idle := reg.idle
	reg.mu.Unlock()
	return reg.CleanIdle(time.Now().Add(-idle))
}
