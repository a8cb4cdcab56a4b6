package amqp

import (
	"context"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"ledger/internal/log"
)

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []publishCall
	closed     bool
}

type publishCall struct {
	exchange, key string
	msg           amqp091.Publishing
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp091.Table) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	if kind != "direct" || !durable {
		return errors.New("unexpected exchange kind")
	}
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishCall{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestTransactionEventMessage(t *testing.T) {
	msg := NewTransactionEventMessage("added", "u1", "tx-1", "local", 0)

	if msg.RoutingKey() != "transaction.added" {
		t.Errorf("RoutingKey() = %q", msg.RoutingKey())
	}
	if msg.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	got, err := TransactionEventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if got.Kind != "added" || got.UserID != "u1" || got.TransactionID != "tx-1" || got.Source != "local" {
		t.Errorf("decoded message = %+v", got)
	}
}

func TestTransactionEventMessageFromJSON_Invalid(t *testing.T) {
	if _, err := TransactionEventMessageFromJSON([]byte("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPublisher_DeclaresExchange(t *testing.T) {
	ch := &fakeChannel{}
	if _, err := newPublisher(ch, "ledger", log.Discard()); err != nil {
		t.Fatalf("newPublisher() error = %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "ledger" {
		t.Errorf("declared exchanges = %v", ch.declared)
	}

	failing := &fakeChannel{declareErr: errors.New("access refused")}
	if _, err := newPublisher(failing, "ledger", log.Discard()); err == nil {
		t.Error("expected setup error to be returned")
	}
}

func TestPublisher_PublishTransactionEvent(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "ledger", log.Discard())
	if err != nil {
		t.Fatal(err)
	}

	if err := p.PublishTransactionEvent(context.Background(), "reconciled", "u1", "", "remote", 3); err != nil {
		t.Fatalf("PublishTransactionEvent() error = %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(ch.published))
	}

	call := ch.published[0]
	if call.exchange != "ledger" || call.key != "transaction.reconciled" {
		t.Errorf("published to %s/%s", call.exchange, call.key)
	}
	if call.msg.ContentType != "application/json" || call.msg.DeliveryMode != amqp091.Persistent {
		t.Errorf("unexpected publishing headers: %+v", call.msg)
	}
	msg, err := TransactionEventMessageFromJSON(call.msg.Body)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Count != 3 || msg.UserID != "u1" {
		t.Errorf("body = %+v", msg)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "ledger", log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	ch.publishErr = amqp091.ErrClosed

	err = p.PublishTransactionEvent(context.Background(), "added", "u1", "tx", "remote", 0)
	if !errors.Is(err, amqp091.ErrClosed) {
		t.Errorf("expected wrapped ErrClosed, got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !ch.closed {
		t.Error("expected channel to be closed")
	}
}
