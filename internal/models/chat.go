package models

import (
	"database/sql"
	"time"
)

// ChatStatus is the lifecycle state of a support chat.
// Transitions are monotonic: pending -> active -> closed.
type ChatStatus string

const (
	ChatPending ChatStatus = "pending"
	ChatActive  ChatStatus = "active"
	ChatClosed  ChatStatus = "closed"
)

// Chat is a conversation between one client and at most one operator.
// OperatorID is set once the chat leaves pending.
type Chat struct {
	ID         int64         `db:"id" json:"id"`
	ClientID   int64         `db:"client_id" json:"client_id"`
	OperatorID sql.NullInt64 `db:"operator_id" json:"operator_id"`
	Status     ChatStatus    `db:"status" json:"status"`
	AcceptedAt sql.NullTime  `db:"accepted_at" json:"accepted_at"`
	ClosedAt   sql.NullTime  `db:"closed_at" json:"closed_at"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// ChatSummary is the operator-facing view of an active chat.
type ChatSummary struct {
	ChatID     int64     `db:"id" json:"chat_id"`
	ClientID   int64     `db:"client_id" json:"client_id"`
	ClientName string    `db:"client_name" json:"client_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
