package amqp

import (
	"encoding/json"
	"time"
)

const (
	OpRecorded = "recorded"
	OpDeleted  = "deleted"
)

// EntryEventMessage notifies downstream consumers that a ledger entry was
// recorded or deleted. Only the id travels; the consumer re-reads the row
// from the store so the queue never carries stale amounts.
type EntryEventMessage struct {
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryEvent(op string, id int64) *EntryEventMessage {
	return &EntryEventMessage{
		Op:        op,
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *EntryEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryEventFromJSON(data []byte) (*EntryEventMessage, error) {
	var msg EntryEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
