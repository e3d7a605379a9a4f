package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record change operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// RecordEvent is published on TopicRecordChanged after a confirmed mutation.
type RecordEvent struct {
	Table  string    `json:"table"`
	Op     string    `json:"op"`
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// DecodeRecordEvent accepts a RecordEvent value, pointer or its JSON form.
func DecodeRecordEvent(payload any) (RecordEvent, error) {
	switch p := payload.(type) {
	case RecordEvent:
		return p, nil
	case *RecordEvent:
		if p == nil {
			return RecordEvent{}, fmt.Errorf("nil record event")
		}
		return *p, nil
	case []byte:
		var ev RecordEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			return RecordEvent{}, fmt.Errorf("invalid record event: %w", err)
		}
		return ev, nil
	}
	return RecordEvent{}, fmt.Errorf("invalid payload type %T, expected RecordEvent", payload)
}
