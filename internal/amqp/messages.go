package amqp

import (
	"encoding/json"
	"time"
)

// TransactionEventMessage describes one repository change. It carries ids
// and counts only; consumers fetch the full record from the backend.
type TransactionEventMessage struct {
	Kind          string    `json:"kind"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	Count         int       `json:"count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(kind, userID, txID, source string, count int) *TransactionEventMessage {
	return &TransactionEventMessage{
		Kind:          kind,
		UserID:        userID,
		TransactionID: txID,
		Source:        source,
		Count:         count,
		Timestamp:     time.Now().UTC(),
	}
}

// RoutingKey returns the direct-exchange key for the message kind.
func (m *TransactionEventMessage) RoutingKey() string {
	return RoutingKey(m.Kind)
}

// RoutingKey maps an event kind to its routing key.
func RoutingKey(kind string) string {
	return "transaction." + kind
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON creates a message from JSON bytes
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
