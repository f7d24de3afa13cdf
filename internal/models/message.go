package models

import (
	"database/sql"
	"time"
)

// SenderKind identifies which side of a chat an actor belongs to.
type SenderKind string

const (
	SenderClient   SenderKind = "client"
	SenderOperator SenderKind = "operator"
)

// Counterpart returns the opposite side of the chat.
func (k SenderKind) Counterpart() SenderKind {
	if k == SenderClient {
		return SenderOperator
	}
	return SenderClient
}

// Identity is the caller identity resolved at the HTTP boundary and passed
// explicitly into every core operation.
type Identity struct {
	ID   int64
	Kind SenderKind
}

// MessageStatus tracks delivery progress. sent -> delivered -> read advance
// only forward; replaced and failed are terminal.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageReplaced  MessageStatus = "replaced"
	MessageFailed    MessageStatus = "failed"
)

// Message is a chat message row. CorrelationID is the client-generated
// idempotency key for retried submissions.
type Message struct {
	ID            int64          `db:"id" json:"id"`
	CorrelationID sql.NullString `db:"correlation_id" json:"correlation_id"`
	ChatID        int64          `db:"chat_id" json:"chat_id"`
	SenderID      int64          `db:"sender_id" json:"sender_id"`
	SenderKind    SenderKind     `db:"sender_kind" json:"sender_kind"`
	Content       string         `db:"content" json:"content"`
	Status        MessageStatus  `db:"status" json:"status"`
	RetryCount    int            `db:"retry_count" json:"retry_count"`
	Edited        bool           `db:"edited" json:"edited"`
	EditedAt      sql.NullTime   `db:"edited_at" json:"edited_at"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
