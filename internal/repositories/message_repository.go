package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, correlation_id, chat_id, sender_id, sender_kind, content, status, retry_count, edited, edited_at, created_at, updated_at`

// NewMessage carries the fields of a message about to be written.
type NewMessage struct {
	ChatID        int64
	SenderID      int64
	SenderKind    models.SenderKind
	Content       string
	CorrelationID string
}

// MessageRepository defines persistence for chat messages. Mutating methods
// that pair a status change with an event append run as one transaction.
type MessageRepository interface {
	CreateWithEvent(ctx context.Context, msg NewMessage) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	FindByCorrelation(ctx context.Context, chatID int64, correlationID string) (models.Message, error)
	ListByChat(ctx context.Context, chatID int64) ([]models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64, recipient models.Identity) (models.Message, bool, error)
	MarkRead(ctx context.Context, chatID int64, messageIDs []int64, reader models.Identity) ([]models.Message, error)
	EditWithEvent(ctx context.Context, messageID int64, content string) (models.Message, error)
	ListStuckSent(ctx context.Context, olderThan time.Time, maxRetries int, limit int) ([]models.Message, error)
	HasDeliveredSibling(ctx context.Context, correlationID string, excludeID int64) (bool, error)
	MarkReplaced(ctx context.Context, messageID int64) error
	BumpRetry(ctx context.Context, messageID int64, maxRetries int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateWithEvent inserts the message and its message_sent event atomically.
func (r *MessageRepo) CreateWithEvent(ctx context.Context, msg NewMessage) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	correlation := sql.NullString{String: msg.CorrelationID, Valid: msg.CorrelationID != ""}

	var stored models.Message
	err = tx.GetContext(ctx, &stored,
		`INSERT INTO messages (correlation_id, chat_id, sender_id, sender_kind, content, status)
        VALUES ($1, $2, $3, $4, $5, 'sent') RETURNING `+messageColumns,
		correlation, msg.ChatID, msg.SenderID, msg.SenderKind, msg.Content)
	if err != nil {
		return models.Message{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, $5)`,
		msg.ChatID, models.EventMessageSent, msg.SenderID, msg.SenderKind, models.EventData{MessageID: stored.ID})
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return stored, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// FindByCorrelation looks up a message by its idempotency key within a chat.
func (r *MessageRepo) FindByCorrelation(ctx context.Context, chatID int64, correlationID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND correlation_id=$2 ORDER BY id LIMIT 1`,
		chatID, correlationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByChat returns all messages of a chat in creation order.
func (r *MessageRepo) ListByChat(ctx context.Context, chatID int64) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY created_at ASC, id ASC`, chatID)
	return msgs, err
}

// MarkDelivered transitions a sent message to delivered and appends the
// message_delivered event. The status guard makes repeat calls a no-op; the
// returned bool reports whether the transition happened.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64, recipient models.Identity) (models.Message, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, false, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg,
		`UPDATE messages SET status='delivered', updated_at=NOW() WHERE id=$1 AND status='sent' RETURNING `+messageColumns,
		messageID)
	if errors.Is(err, sql.ErrNoRows) {
		// Already past sent; report current state without a new event.
		current, getErr := r.GetMessage(ctx, messageID)
		return current, false, getErr
	}
	if err != nil {
		return models.Message{}, false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, $5)`,
		msg.ChatID, models.EventMessageDelivered, recipient.ID, recipient.Kind, models.EventData{MessageID: msg.ID})
	if err != nil {
		return models.Message{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, false, err
	}
	return msg, true, nil
}

// MarkRead bulk-transitions delivered counterpart messages to read, one
// message_read event per message, all in a single transaction.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int64, messageIDs []int64, reader models.Identity) ([]models.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(
		`SELECT `+messageColumns+` FROM messages
        WHERE id IN (?) AND chat_id = ? AND sender_kind = ? AND status = 'delivered'
        ORDER BY id FOR UPDATE`,
		messageIDs, chatID, reader.Kind.Counterpart())
	if err != nil {
		return nil, err
	}

	var candidates []models.Message
	if err := tx.SelectContext(ctx, &candidates, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	updated := make([]models.Message, 0, len(candidates))
	for _, msg := range candidates {
		var read models.Message
		err = tx.GetContext(ctx, &read,
			`UPDATE messages SET status='read', updated_at=NOW() WHERE id=$1 RETURNING `+messageColumns,
			msg.ID)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, $5)`,
			chatID, models.EventMessageRead, reader.ID, reader.Kind, models.EventData{MessageID: msg.ID})
		if err != nil {
			return nil, err
		}
		updated = append(updated, read)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// EditWithEvent replaces the content of a message and appends the
// message_edited event authored by the original sender.
func (r *MessageRepo) EditWithEvent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg,
		`UPDATE messages SET content=$1, edited=TRUE, edited_at=NOW(), updated_at=NOW() WHERE id=$2 RETURNING `+messageColumns,
		content, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, $5)`,
		msg.ChatID, models.EventMessageEdited, msg.SenderID, msg.SenderKind, models.EventData{MessageID: msg.ID})
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListStuckSent returns messages still in sent past the delivery deadline and
// below the retry ceiling, oldest first, bounded by limit.
func (r *MessageRepo) ListStuckSent(ctx context.Context, olderThan time.Time, maxRetries int, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
        WHERE status='sent' AND created_at < $1 AND retry_count < $2
        ORDER BY created_at ASC LIMIT $3`,
		olderThan, maxRetries, limit)
	return msgs, err
}

// HasDeliveredSibling reports whether another message with the same
// correlation id already reached delivered or read.
func (r *MessageRepo) HasDeliveredSibling(ctx context.Context, correlationID string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE correlation_id=$1 AND id<>$2 AND status IN ('delivered', 'read'))`,
		correlationID, excludeID)
	return exists, err
}

// MarkReplaced terminally marks a stale duplicate; only a still-sent message
// is affected.
func (r *MessageRepo) MarkReplaced(ctx context.Context, messageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET status='replaced', updated_at=NOW() WHERE id=$1 AND status='sent'`, messageID)
	return err
}

// BumpRetry increments retry_count and, when the ceiling is reached while the
// message is still sent, marks it failed in a single atomic statement.
func (r *MessageRepo) BumpRetry(ctx context.Context, messageID int64, maxRetries int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET
            retry_count = retry_count + 1,
            status = CASE WHEN retry_count + 1 >= $2 AND status='sent' THEN 'failed' ELSE status END,
            updated_at = NOW()
        WHERE id=$1 RETURNING `+messageColumns,
		messageID, maxRetries)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
