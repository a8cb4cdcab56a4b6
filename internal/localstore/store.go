// Package localstore keeps transactions on the device when the remote
// backend cannot be reached.
//
// Every user's cached records live in a single JSON array stored under one
// key. Partitioning by user happens only when reading.
package localstore

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/log"
)

const (
	// DefaultKey is the storage key of the shared blob.
	DefaultKey = "ledger.transactions"

	// LocalIDPrefix marks ids generated on the device.
	LocalIDPrefix = "local_"
)

// KeyValue is a synchronous string store, the device equivalent of browser
// local storage.
type KeyValue interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

// Store is the Local Cache Store.
type Store struct {
	kv     KeyValue
	key    string
	logger *log.Logger
	now    func() time.Time

	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used for ids and created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(kv KeyValue, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		kv:     kv,
		key:    key,
		logger: log.Default(log.ComponentLocalStore),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadAll returns the cached transactions owned by userID in insertion order.
// Missing, unreadable or corrupt data yields an empty slice.
func (s *Store) ReadAll(userID string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0)
	for _, tx := range s.load() {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

// Append assigns an id and created_at when missing and persists tx alongside
// every other cached record. Only a failed write is reported, wrapped in
// core.ErrLocalStorage.
func (s *Store) Append(tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if tx.ID == "" {
		tx.ID = NewLocalID(now)
	}
	if tx.CreatedAt == "" {
		tx.CreatedAt = now.UTC().Format(time.RFC3339)
	}

	all := append(s.load(), tx)
	if err := s.save(all); err != nil {
		return core.Transaction{}, err
	}
	s.logger.Debug("Transaction cached locally", log.FieldTxID, tx.ID, log.FieldUserID, tx.UserID)
	return tx, nil
}

// RemoveMany rewrites the blob without the records matching pred and reports
// how many were removed. Nothing is written when nothing matches.
func (s *Store) RemoveMany(pred func(core.Transaction) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.load()
	kept := make([]core.Transaction, 0, len(all))
	for _, tx := range all {
		if !pred(tx) {
			kept = append(kept, tx)
		}
	}
	removed := len(all) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Owners lists the distinct users with cached records, in first-seen order.
func (s *Store) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	var out []string
	for _, tx := range s.load() {
		if _, ok := seen[tx.UserID]; ok || tx.UserID == "" {
			continue
		}
		seen[tx.UserID] = struct{}{}
		out = append(out, tx.UserID)
	}
	return out
}

// load reads the whole collection. Old or foreign shapes are tolerated: a
// non-array blob reads as empty and array elements that are not objects are
// skipped.
func (s *Store) load() []core.Transaction {
	raw, ok, err := s.kv.GetItem(s.key)
	if err != nil {
		s.logger.Warn("Local store read failed, treating as empty", log.FieldError, err)
		return nil
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("Local store blob is corrupt, treating as empty", log.FieldError, err)
		return nil
	}
	out := make([]core.Transaction, 0, len(items))
	for _, item := range items {
		var tx core.Transaction
		if err := json.Unmarshal(item, &tx); err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (s *Store) save(all []core.Transaction) error {
	if all == nil {
		all = []core.Transaction{}
	}
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrLocalStorage, err)
	}
	if err := s.kv.SetItem(s.key, string(data)); err != nil {
		return fmt.Errorf("%w: %w", core.ErrLocalStorage, err)
	}
	return nil
}

// NewLocalID builds a device id: prefix, millisecond timestamp and a random
// base-36 suffix.
func NewLocalID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return LocalIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// IsLocalID reports whether id was generated by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
