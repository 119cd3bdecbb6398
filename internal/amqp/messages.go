package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"motolucro/internal/core"
)

// Action names a change to a transaction.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// TransactionEvent is published after every successful write. Deleted
// events carry the transaction as it was before removal.
type TransactionEvent struct {
	Action      Action           `json:"action"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewTransactionEvent(action Action, tx core.Transaction) TransactionEvent {
	return TransactionEvent{Action: action, Transaction: tx, Timestamp: time.Now().UTC()}
}

func (e TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TransactionEvent{}, err
	}
	if !ev.Action.Valid() {
		return TransactionEvent{}, fmt.Errorf("unknown action %q", ev.Action)
	}
	if ev.Transaction.ID == "" {
		return TransactionEvent{}, fmt.Errorf("event without transaction id")
	}
	return ev, nil
}
