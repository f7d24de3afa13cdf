package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// EventType enumerates the domain occurrences recorded in the event log.
type EventType string

const (
	EventMessageSent       EventType = "message_sent"
	EventMessageDelivered  EventType = "message_delivered"
	EventMessageRead       EventType = "message_read"
	EventMessageEdited     EventType = "message_edited"
	EventTypingStart       EventType = "typing_start"
	EventTypingEnd         EventType = "typing_end"
	EventChatAssigned      EventType = "chat_assigned"
	EventChatClosed        EventType = "chat_closed"
	EventClientNameUpdated EventType = "client_name_updated"
)

// EventData is the structured payload stored in the events.data JSONB column.
type EventData struct {
	MessageID int64  `json:"message_id,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (d EventData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *EventData) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = EventData{}
		return nil
	default:
		return errors.New("unsupported event data type")
	}
}

// Event is one append-only record in the per-chat event log. The id is
// monotonic and serves as the long-poll cursor; rows are never updated.
type Event struct {
	ID         int64      `db:"id" json:"id"`
	ChatID     int64      `db:"chat_id" json:"chat_id"`
	EventType  EventType  `db:"event_type" json:"event_type"`
	SenderID   int64      `db:"sender_id" json:"sender_id"`
	SenderKind SenderKind `db:"sender_kind" json:"sender_kind"`
	Data       EventData  `db:"data" json:"data"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// TypingEvent is the transient typing-state projection returned by polls.
type TypingEvent struct {
	EventType  EventType  `json:"event_type"`
	SenderKind SenderKind `json:"sender_kind"`
}
