// Package memory is an in-process gateway. It backs the "memory" backend and
// lets tests take the remote side offline.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/gateway"
)

// ErrOffline is the cause reported while the gateway is offline.
var ErrOffline = errors.New("gateway offline")

// Hook runs before an operation. A non-nil result fails the call with that
// cause.
type Hook func(op string, tx core.Transaction) error

type Gateway struct {
	mu      sync.Mutex
	items   []core.Transaction
	cats    []core.Category
	offline bool
	hook    Hook
	calls   map[string]int
	now     func() time.Time
}

var _ gateway.Backend = (*Gateway)(nil)

// DefaultCategories mirrors the categories seeded by the API migrations.
func DefaultCategories() []core.Category {
	return []core.Category{
		{Name: "Salary", Type: core.Income},
		{Name: "Freelance", Type: core.Income},
		{Name: "Investments", Type: core.Income},
		{Name: "Gifts", Type: core.Income},
		{Name: "Food", Type: core.Expense},
		{Name: "Transport", Type: core.Expense},
		{Name: "Housing", Type: core.Expense},
		{Name: "Utilities", Type: core.Expense},
		{Name: "Entertainment", Type: core.Expense},
		{Name: "Health", Type: core.Expense},
		{Name: "Shopping", Type: core.Expense},
		{Name: "Other", Type: core.Expense},
	}
}

func New(cats []core.Category) *Gateway {
	if cats == nil {
		cats = DefaultCategories()
	}
	return &Gateway{
		cats:  dedupe(cats),
		calls: make(map[string]int),
		now:   time.Now,
	}
}

// SetOffline makes every subsequent call fail with a remote error.
func (g *Gateway) SetOffline(offline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = offline
}

// SetHook installs h, or removes the current hook when h is nil.
func (g *Gateway) SetHook(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = h
}

// Calls reports how many times op was invoked, failed calls included.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Seed stores records as they are, without assigning ids.
func (g *Gateway) Seed(txs ...core.Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = append(g.items, txs...)
}

// check must be called with mu held.
func (g *Gateway) check(op string, tx core.Transaction) error {
	g.calls[op]++
	if g.offline {
		return &gateway.Error{Op: op, Err: ErrOffline}
	}
	if g.hook != nil {
		if err := g.hook(op, tx); err != nil {
			return gateway.Wrap(op, 0, err)
		}
	}
	return nil
}

// List returns the user's records, newest business date first.
func (g *Gateway) List(_ context.Context, userID string) ([]core.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check("list", core.Transaction{UserID: userID}); err != nil {
		return nil, err
	}

	out := make([]core.Transaction, 0)
	for _, tx := range g.items {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
	return out, nil
}

func (g *Gateway) Create(_ context.Context, draft core.Transaction) (core.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check("create", draft); err != nil {
		return core.Transaction{}, err
	}
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, &gateway.Error{Op: "create", StatusCode: 400, Err: err}
	}

	draft.ID = uuid.NewString()
	draft.CreatedAt = g.now().UTC().Format(time.RFC3339)
	g.items = append(g.items, draft)
	return draft, nil
}

func (g *Gateway) Delete(_ context.Context, id, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check("delete", core.Transaction{ID: id, UserID: userID}); err != nil {
		return err
	}

	i := slices.IndexFunc(g.items, func(tx core.Transaction) bool {
		return tx.ID == id && tx.UserID == userID
	})
	if i < 0 {
		return &gateway.Error{Op: "delete", StatusCode: 404, Err: core.ErrNotFound}
	}
	g.items = slices.Delete(g.items, i, i+1)
	return nil
}

func (g *Gateway) Categories(_ context.Context) ([]core.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check("categories", core.Transaction{}); err != nil {
		return nil, err
	}
	return slices.Clone(g.cats), nil
}

func (g *Gateway) Ping(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.offline {
		return &gateway.Error{Op: "ping", Err: ErrOffline}
	}
	return nil
}

func dedupe(in []core.Category) []core.Category {
	seen := map[core.Category]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
