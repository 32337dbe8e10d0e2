package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeOp is the kind of write that produced a RecordChangedMessage.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// RecordChangedMessage announces a write to one document of a user's
// collection. Fields holds the stored document for creates and updates and
// is empty for deletes.
type RecordChangedMessage struct {
	Op         ChangeOp       `json:"op"`
	UserID     string         `json:"user_id"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

func NewRecordChangedMessage(op ChangeOp, userID, collection, id string, fields map[string]any) *RecordChangedMessage {
	return &RecordChangedMessage{
		Op:         op,
		UserID:     userID,
		Collection: collection,
		ID:         id,
		Fields:     fields,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *RecordChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangedMessageFromJSON decodes and sanity-checks a message body.
func RecordChangedMessageFromJSON(data []byte) (*RecordChangedMessage, error) {
	var msg RecordChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	if msg.UserID == "" || msg.Collection == "" || msg.ID == "" {
		return nil, fmt.Errorf("message is missing user, collection or id")
	}
	return &msg, nil
}
