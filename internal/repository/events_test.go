package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/log"
)

func TestSubscribe_ReceivesEventsInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1")

	var got []Event
	unsubscribe := f.repo.Subscribe(func(ev Event) { got = append(got, ev) })

	tx, err := f.repo.Add(ctx, expense(1, "2024-01-01"))
	require.NoError(t, err)
	require.NoError(t, f.repo.Load(ctx))
	f.gw.SetOffline(true)
	require.NoError(t, f.repo.Remove(ctx, tx.ID))

	require.Len(t, got, 3)
	assert.Equal(t, EventAdded, got[0].Kind)
	assert.Equal(t, SourceRemote, got[0].Source)
	assert.Equal(t, tx.ID, got[0].Transaction.ID)
	assert.Equal(t, EventLoaded, got[1].Kind)
	assert.Equal(t, 1, got[1].Count)
	assert.Equal(t, EventRemoved, got[2].Kind)
	assert.Equal(t, SourceLocal, got[2].Source)
	assert.Equal(t, "u1", got[2].UserID)

	unsubscribe()
	require.NoError(t, f.repo.Load(ctx))
	assert.Len(t, got, 3)
}

func TestSubscribe_ListenerMayReadState(t *testing.T) {
	f := newFixture(t, "u1")
	var seen int
	f.repo.Subscribe(func(Event) { seen = len(f.repo.Transactions()) })

	_, err := f.repo.Add(context.Background(), expense(1, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, seen, "listeners run after the change, outside the lock")
}

func TestReconcile_EmitsSyncedCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1")
	f.gw.SetOffline(true)
	_, err := f.repo.Add(ctx, expense(1, "2024-01-01"))
	require.NoError(t, err)
	f.gw.SetOffline(false)

	var kinds []EventKind
	var reconciled Event
	f.repo.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventReconciled {
			reconciled = ev
		}
	})
	_, err = f.repo.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventLoaded, EventReconciled}, kinds)
	assert.Equal(t, 1, reconciled.Count)
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *recordingPublisher) PublishTransactionEvent(ctx context.Context, kind, userID, txID, source string, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	p.calls = append(p.calls, kind+":"+userID+":"+source)
	return p.err
}

func TestPublishTo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u1")
	pub := &recordingPublisher{}
	f.repo.Subscribe(PublishTo(pub, time.Second, log.Discard()))

	_, err := f.repo.Add(ctx, expense(1, "2024-01-01"))
	require.NoError(t, err)

	pub.mu.Lock()
	assert.Equal(t, []string{"added:u1:remote"}, pub.calls)
	pub.mu.Unlock()
}

func TestPublishTo_FailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, "u1")
	pub := &recordingPublisher{err: errors.New("broker down")}
	f.repo.Subscribe(PublishTo(pub, 0, log.Discard()))

	_, err := f.repo.Add(context.Background(), expense(1, "2024-01-01"))
	assert.NoError(t, err)
	assert.Len(t, f.repo.Transactions(), 1)
}
