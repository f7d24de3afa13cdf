package models

import "time"

// Client is an anonymous chat participant identified across visits by a
// session token persisted on the client side.
type Client struct {
	ID           int64     `db:"id" json:"id"`
	SessionToken string    `db:"session_token" json:"-"`
	Name         string    `db:"name" json:"name"`
	LastActiveAt time.Time `db:"last_active_at" json:"last_active_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
