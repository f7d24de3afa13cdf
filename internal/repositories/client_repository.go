package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var ErrClientNotFound = errors.New("client not found")

const clientColumns = `id, session_token, name, last_active_at, created_at`

// ClientRepository abstracts anonymous client persistence.
type ClientRepository interface {
	GetClient(ctx context.Context, clientID int64) (models.Client, error)
	GetBySessionToken(ctx context.Context, token string) (models.Client, error)
	Create(ctx context.Context, name, sessionToken string) (models.Client, error)
	Touch(ctx context.Context, clientID int64) error
	RenameWithEvent(ctx context.Context, clientID, chatID int64, name string) (models.Client, error)
}

// ClientRepo is a sqlx implementation of ClientRepository.
type ClientRepo struct {
	db *sqlx.DB
}

// NewClientRepo constructs a ClientRepo.
func NewClientRepo(db *sqlx.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

// GetClient fetches a client by id.
func (r *ClientRepo) GetClient(ctx context.Context, clientID int64) (models.Client, error) {
	var client models.Client
	err := r.db.GetContext(ctx, &client, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrClientNotFound
	}
	return client, err
}

// GetBySessionToken resolves a client from its persisted session token.
func (r *ClientRepo) GetBySessionToken(ctx context.Context, token string) (models.Client, error) {
	var client models.Client
	err := r.db.GetContext(ctx, &client, `SELECT `+clientColumns+` FROM clients WHERE session_token=$1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrClientNotFound
	}
	return client, err
}

// Create inserts a new anonymous client.
func (r *ClientRepo) Create(ctx context.Context, name, sessionToken string) (models.Client, error) {
	var client models.Client
	err := r.db.GetContext(ctx, &client,
		`INSERT INTO clients (name, session_token) VALUES ($1, $2) RETURNING `+clientColumns,
		name, sessionToken)
	return client, err
}

// Touch refreshes the client's last-active timestamp.
func (r *ClientRepo) Touch(ctx context.Context, clientID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE clients SET last_active_at=NOW() WHERE id=$1`, clientID)
	return err
}

// RenameWithEvent sets the client's display name and appends the
// client_name_updated event for the chat atomically.
func (r *ClientRepo) RenameWithEvent(ctx context.Context, clientID, chatID int64, name string) (models.Client, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Client{}, err
	}
	defer tx.Rollback()

	var client models.Client
	err = tx.GetContext(ctx, &client,
		`UPDATE clients SET name=$1 WHERE id=$2 RETURNING `+clientColumns,
		name, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrClientNotFound
	}
	if err != nil {
		return models.Client{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, $5)`,
		chatID, models.EventClientNameUpdated, clientID, models.SenderClient, models.EventData{Name: name})
	if err != nil {
		return models.Client{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Client{}, err
	}
	return client, nil
}
