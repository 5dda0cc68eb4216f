package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"ledger/internal/core"
)

// RoutingKeyLedgerChanged is the routing key of LedgerChangedMessage
const RoutingKeyLedgerChanged = "ledger.changed"

// LedgerChangedMessage announces that some of a user's accounts, categories
// or transactions were written. Consumers drop anything derived from them.
type LedgerChangedMessage struct {
	UserID    core.UserID `json:"userId"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewLedgerChangedMessage(user core.UserID) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		UserID:    user,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes a message and rejects one without a user
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("ledger changed message without userId")
	}
	return &msg, nil
}
