package models

import "time"

// Operator is a support agent with a concurrency limit. The active chat
// count is never stored; it is computed under lock at assignment time.
type Operator struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	MaxChats     int       `db:"max_chats" json:"max_chats"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
