package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

const eventColumns = `id, chat_id, event_type, sender_id, sender_kind, data, created_at`

// EventRepository reads and appends the append-only event log. Rows are never
// updated or deleted; the id column is the long-poll cursor.
type EventRepository interface {
	Append(ctx context.Context, chatID int64, eventType models.EventType, sender models.Identity, data models.EventData) (models.Event, error)
	ListChatEventsSince(ctx context.Context, chatID int64, afterID int64, types []models.EventType, senderKind models.SenderKind) ([]models.Event, error)
	ListAssignedSince(ctx context.Context, operatorID int64, afterID int64) ([]models.Event, error)
}

// EventRepo is a sqlx implementation of EventRepository.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Append writes a single event row.
func (r *EventRepo) Append(ctx context.Context, chatID int64, eventType models.EventType, sender models.Identity, data models.EventData) (models.Event, error) {
	var event models.Event
	err := r.db.GetContext(ctx, &event,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+eventColumns,
		chatID, eventType, sender.ID, sender.Kind, data)
	return event, err
}

// ListChatEventsSince returns events with id strictly greater than afterID for
// the chat, restricted to the given types and sender side, in id order.
func (r *EventRepo) ListChatEventsSince(ctx context.Context, chatID int64, afterID int64, types []models.EventType, senderKind models.SenderKind) ([]models.Event, error) {
	query, args, err := sqlx.In(
		`SELECT `+eventColumns+` FROM events
        WHERE chat_id = ? AND id > ? AND event_type IN (?) AND sender_kind = ?
        ORDER BY id ASC`,
		chatID, afterID, types, senderKind)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	err = r.db.SelectContext(ctx, &events, r.db.Rebind(query), args...)
	return events, err
}

// ListAssignedSince returns chat_assigned events addressed to the operator
// with id strictly greater than afterID.
func (r *EventRepo) ListAssignedSince(ctx context.Context, operatorID int64, afterID int64) ([]models.Event, error) {
	var events []models.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT `+eventColumns+` FROM events
        WHERE event_type=$1 AND sender_id=$2 AND sender_kind=$3 AND id > $4
        ORDER BY id ASC`,
		models.EventChatAssigned, operatorID, models.SenderOperator, afterID)
	return events, err
}
