// Package repository holds a user's working set of transactions. It reads and
// writes through the remote gateway and falls back to the local cache store
// when the remote side is unavailable.
//
// Remote failures never escape as errors: they are recorded (see Err and
// Degraded) and the operation completes against the local store. The one
// exception is Add, which returns the error when the local write also fails.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"ledger/internal/core"
	"ledger/internal/gateway"
	"ledger/internal/log"
)

// ErrUserMismatch is returned by Add for drafts owned by another user.
var ErrUserMismatch = fmt.Errorf("%w: transaction belongs to another user", core.ErrValidation)

// LocalStore is the subset of the local cache store the repository needs.
type LocalStore interface {
	ReadAll(userID string) []core.Transaction
	Append(tx core.Transaction) (core.Transaction, error)
	RemoveMany(pred func(core.Transaction) bool) (int, error)
}

// ReconcileResult counts the outcome of one reconcile pass.
type ReconcileResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

type Repository struct {
	userID string
	gw     gateway.Gateway
	store  LocalStore
	logger *log.Logger

	mu       sync.Mutex
	txs      []core.Transaction
	err      error
	degraded bool
	// loadSeq increases on every load start. A load applies its result only
	// if no newer load has started since. Mutations made while any load is
	// in flight are journaled and replayed onto the list it returns.
	loadSeq  uint64
	inflight int
	journal  []mutation
	mutSeq   uint64

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
	version     atomic.Uint64

	reconciles singleflight.Group
	startOnce  sync.Once
}

// mutation is one Add or Remove recorded while a load is in flight.
type mutation struct {
	seq     uint64
	added   *core.Transaction
	removed string
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithListener subscribes l from construction on.
func WithListener(l Listener) Option {
	return func(r *Repository) { r.Subscribe(l) }
}

func New(userID string, gw gateway.Gateway, store LocalStore, opts ...Option) *Repository {
	r := &Repository{
		userID:    userID,
		gw:        gw,
		store:     store,
		logger:    log.Default(log.ComponentRepository),
		txs:       []core.Transaction{},
		listeners: make(map[int]Listener),
	}
	r.version.Store(changeSeq.Add(1))
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(log.FieldUserID, userID)
	return r
}

func (r *Repository) UserID() string {
	return r.userID
}

// Transactions returns a copy of the collection, most recently added first.
func (r *Repository) Transactions() []core.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.txs)
}

// Err returns the last recorded failure. It is cleared by a successful load
// and by a remote Add or Remove that succeeds.
func (r *Repository) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Degraded reports whether the collection reflects local data because the
// remote side failed. It stays set until the next successful load, since
// only a load replaces the locally sourced records.
func (r *Repository) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// Start runs the session start sequence once: reconcile pending local
// records, then load. Later calls return immediately.
func (r *Repository) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		res, _ := r.Reconcile(ctx)
		if res.Synced == 0 {
			_ = r.Load(ctx)
		}
	})
}

// Load replaces the collection with the remote list, or with the local cache
// when the remote call fails. Only a context that is already done is
// returned as an error.
func (r *Repository) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.loadSeq++
	seq := r.loadSeq
	since := r.mutSeq
	r.inflight++
	r.mu.Unlock()

	txs, remoteErr := r.gw.List(ctx, r.userID)
	source := SourceRemote
	if remoteErr != nil {
		r.logger.Failure(ctx, "Remote list failed, serving local cache", log.OpLoad, remoteErr)
		txs = r.store.ReadAll(r.userID)
		source = SourceLocal
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	r.mu.Lock()
	r.inflight--
	if r.loadSeq != seq {
		r.trimJournal()
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "Discarding superseded load result", log.FieldSource, source)
		return nil
	}
	txs = r.replay(txs, since)
	r.trimJournal()
	r.txs = txs
	r.err = remoteErr
	r.degraded = remoteErr != nil
	r.mu.Unlock()

	r.emit(Event{Kind: EventLoaded, UserID: r.userID, Source: source, Count: len(txs)})
	return nil
}

// Add persists draft remotely, or locally when the remote call fails, and
// prepends the stored record. Validation runs before any I/O.
func (r *Repository) Add(ctx context.Context, draft core.Transaction) (core.Transaction, error) {
	if draft.UserID == "" {
		draft.UserID = r.userID
	}
	if draft.UserID != r.userID {
		return core.Transaction{}, ErrUserMismatch
	}
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, remoteErr := r.gw.Create(ctx, draft)
	source := SourceRemote
	if remoteErr != nil {
		r.logger.Failure(ctx, "Remote create failed, caching locally", log.OpAdd, remoteErr)
		local, err := r.store.Append(draft)
		if err != nil {
			err = errors.Join(err, remoteErr)
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
			r.logger.ErrorContext(ctx, "Local cache write failed", log.FieldOperation, log.OpAdd, log.FieldError, err)
			return core.Transaction{}, err
		}
		created = local
		source = SourceLocal
	}

	r.mu.Lock()
	r.record(mutation{added: &created})
	r.txs = append([]core.Transaction{created}, r.txs...)
	if remoteErr != nil {
		r.err = remoteErr
		r.degraded = true
	} else {
		r.err = nil
	}
	r.mu.Unlock()

	r.emit(Event{Kind: EventAdded, UserID: r.userID, Transaction: created, Source: source, Count: 1})
	return created, nil
}

// Remove deletes id remotely, or from the local cache when the remote call
// fails. The in-memory removal always happens. Failures are recorded, not
// returned; only a context that is already done is returned as an error.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source := SourceRemote
	recorded := error(nil)
	if err := r.gw.Delete(ctx, id, r.userID); err != nil {
		r.logger.Failure(ctx, "Remote delete failed, removing from local cache", log.OpRemove, err, log.FieldTxID, id)
		source = SourceLocal
		recorded = err
		_, lerr := r.store.RemoveMany(func(tx core.Transaction) bool {
			return tx.ID == id && tx.UserID == r.userID
		})
		if lerr != nil {
			r.logger.Failure(ctx, "Local cache removal failed", log.OpRemove, lerr, log.FieldTxID, id)
			recorded = errors.Join(lerr, err)
		}
	}

	var removed core.Transaction
	r.mu.Lock()
	r.record(mutation{removed: id})
	r.txs = slices.DeleteFunc(r.txs, func(tx core.Transaction) bool {
		if tx.ID == id {
			removed = tx
			return true
		}
		return false
	})
	r.err = recorded
	r.mu.Unlock()

	if removed.ID == "" {
		removed = core.Transaction{ID: id, UserID: r.userID}
	}
	r.emit(Event{Kind: EventRemoved, UserID: r.userID, Transaction: removed, Source: source, Count: 1})
	return nil
}

// record journals m for in-flight loads. Callers hold r.mu.
func (r *Repository) record(m mutation) {
	r.mutSeq++
	if r.inflight == 0 {
		return
	}
	m.seq = r.mutSeq
	r.journal = append(r.journal, m)
}

// replay applies the mutations journaled after since onto a freshly loaded
// list: removed ids are dropped and added records missing from the list are
// prepended in the order they were added. Callers hold r.mu.
func (r *Repository) replay(txs []core.Transaction, since uint64) []core.Transaction {
	for _, m := range r.journal {
		if m.seq <= since {
			continue
		}
		if m.added != nil {
			id := m.added.ID
			if !slices.ContainsFunc(txs, func(tx core.Transaction) bool { return tx.ID == id }) {
				txs = append([]core.Transaction{*m.added}, txs...)
			}
			continue
		}
		txs = slices.DeleteFunc(txs, func(tx core.Transaction) bool { return tx.ID == m.removed })
	}
	return txs
}

// trimJournal drops entries no in-flight load can still need. Callers hold
// r.mu.
func (r *Repository) trimJournal() {
	if r.inflight == 0 {
		r.journal = nil
	}
}

// Reconcile replays the user's cached records through the remote gateway.
// Records whose create succeeded are dropped from the local store; the rest
// stay for the next pass. When anything synced the collection is reloaded.
// Concurrent calls share one pass.
func (r *Repository) Reconcile(ctx context.Context) (ReconcileResult, error) {
	v, err, _ := r.reconciles.Do(r.userID, func() (any, error) {
		return r.reconcile(ctx)
	})
	res, _ := v.(ReconcileResult)
	return res, err
}

func (r *Repository) reconcile(ctx context.Context) (ReconcileResult, error) {
	pending := r.store.ReadAll(r.userID)
	res := ReconcileResult{Attempted: len(pending)}
	if len(pending) == 0 {
		return res, nil
	}

	synced := make(map[string]struct{}, len(pending))
	for _, tx := range pending {
		if ctx.Err() != nil {
			break
		}
		draft := tx
		draft.ID = ""
		draft.CreatedAt = ""
		if _, err := r.gw.Create(ctx, draft); err != nil {
			r.logger.Failure(ctx, "Replay of cached transaction failed", log.OpReconcile, err, log.FieldTxID, tx.ID)
			continue
		}
		synced[tx.ID] = struct{}{}
	}
	res.Synced = len(synced)
	res.Failed = res.Attempted - res.Synced

	if res.Synced > 0 {
		_, err := r.store.RemoveMany(func(tx core.Transaction) bool {
			_, ok := synced[tx.ID]
			return ok && tx.UserID == r.userID
		})
		if err != nil {
			// Synced records are still cached and will be replayed again.
			r.logger.ErrorContext(ctx, "Failed to drop synced records from local cache",
				log.FieldOperation, log.OpReconcile, log.FieldError, err)
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		}
		_ = r.Load(ctx)
	}

	r.logger.InfoContext(ctx, "Reconcile finished",
		"attempted", res.Attempted, "synced", res.Synced, "failed", res.Failed)
	r.emit(Event{Kind: EventReconciled, UserID: r.userID, Source: SourceRemote, Count: res.Synced})
	return res, ctx.Err()
}
