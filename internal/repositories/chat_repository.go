package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrChatNotActive       = errors.New("chat is not active")
	ErrNoOperatorAvailable = errors.New("no operator with spare capacity")
)

const chatColumns = `id, client_id, operator_id, status, accepted_at, closed_at, created_at, updated_at`

// ChatRepository abstracts chat persistence and the locked assignment
// transaction.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	FindOpenChatByClient(ctx context.Context, clientID int64) (models.Chat, error)
	CreateChat(ctx context.Context, clientID int64) (models.Chat, error)
	PendingChatIDs(ctx context.Context) ([]int64, error)
	AssignChat(ctx context.Context, chatID int64) (models.Chat, models.Operator, error)
	CloseChat(ctx context.Context, chatID int64, operatorID int64) (models.Chat, error)
	ListActiveByOperator(ctx context.Context, operatorID int64) ([]models.ChatSummary, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// FindOpenChatByClient returns the client's pending or active chat, if any.
func (r *ChatRepo) FindOpenChatByClient(ctx context.Context, clientID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT `+chatColumns+` FROM chats WHERE client_id=$1 AND status IN ('pending', 'active') ORDER BY created_at LIMIT 1`,
		clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// CreateChat inserts a new pending chat for the client.
func (r *ChatRepo) CreateChat(ctx context.Context, clientID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`INSERT INTO chats (client_id, status) VALUES ($1, 'pending') RETURNING `+chatColumns,
		clientID)
	return chat, err
}

// PendingChatIDs returns ids of pending chats in creation order.
func (r *ChatRepo) PendingChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM chats WHERE status='pending' ORDER BY created_at`)
	return ids, err
}

// operatorCandidate is an operator row joined with its live active chat count.
type operatorCandidate struct {
	models.Operator
	ActiveChats int `db:"active_chats_count"`
}

// pickOperator chooses the least-loaded operator with spare capacity from a
// locked snapshot, breaking load ties by lowest operator id. Returns false
// when every operator is at its limit.
func pickOperator(candidates []operatorCandidate) (models.Operator, bool) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ActiveChats != candidates[j].ActiveChats {
			return candidates[i].ActiveChats < candidates[j].ActiveChats
		}
		return candidates[i].ID < candidates[j].ID
	})
	for _, c := range candidates {
		if c.ActiveChats < c.MaxChats {
			return c.Operator, true
		}
	}
	return models.Operator{}, false
}

// AssignChat atomically assigns the chat to the least-loaded operator with
// spare capacity. The chat row and all operator rows are locked so that two
// concurrent assignment attempts can never both count the same capacity.
// Returns ErrNoOperatorAvailable when every operator is at its limit; the
// chat then stays pending and no event is written.
func (r *ChatRepo) AssignChat(ctx context.Context, chatID int64) (models.Chat, models.Operator, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, models.Operator{}, err
	}
	defer tx.Rollback()

	var chat models.Chat
	err = tx.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1 FOR UPDATE`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, models.Operator{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, models.Operator{}, err
	}
	if chat.Status != models.ChatPending {
		// Lost the race to another assignment attempt.
		return models.Chat{}, models.Operator{}, ErrChatNotFound
	}

	// Lock the operator rows in a statement of their own. Counting in a
	// second statement matters under READ COMMITTED: a transaction that
	// blocked here resumes with a fresh snapshot, so the counts include
	// whatever the competing assignment just committed. Counting inside the
	// locking statement would re-read only the locked rows and keep the
	// stale pre-commit counts.
	var lockedIDs []int64
	if err := tx.SelectContext(ctx, &lockedIDs, `SELECT id FROM operators ORDER BY id FOR UPDATE`); err != nil {
		return models.Chat{}, models.Operator{}, err
	}
	if len(lockedIDs) == 0 {
		return models.Chat{}, models.Operator{}, ErrNoOperatorAvailable
	}

	var candidates []operatorCandidate
	err = tx.SelectContext(ctx, &candidates,
		`SELECT o.id, o.name, o.login, o.password_hash, o.max_chats, o.created_at,
            (SELECT COUNT(*) FROM chats c WHERE c.operator_id = o.id AND c.status = 'active') AS active_chats_count
        FROM operators o`)
	if err != nil {
		return models.Chat{}, models.Operator{}, err
	}

	operator, found := pickOperator(candidates)
	if !found {
		return models.Chat{}, models.Operator{}, ErrNoOperatorAvailable
	}

	// The capacity re-check in the UPDATE guards the invariant even if the
	// snapshot above were ever stale again.
	err = tx.GetContext(ctx, &chat,
		`UPDATE chats SET operator_id=$1, status='active', accepted_at=NOW(), updated_at=NOW()
        WHERE id=$2
            AND (SELECT COUNT(*) FROM chats c WHERE c.operator_id=$1 AND c.status='active') < $3
        RETURNING `+chatColumns,
		operator.ID, chatID, operator.MaxChats)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, models.Operator{}, ErrNoOperatorAvailable
	}
	if err != nil {
		return models.Chat{}, models.Operator{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, '{}')`,
		chatID, models.EventChatAssigned, operator.ID, models.SenderOperator)
	if err != nil {
		return models.Chat{}, models.Operator{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, models.Operator{}, err
	}
	return chat, operator, nil
}

// CloseChat transitions an active chat to closed and appends the chat_closed
// event in the same transaction. The status guard makes a repeated close a
// conflict rather than a double transition.
func (r *ChatRepo) CloseChat(ctx context.Context, chatID int64, operatorID int64) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	var chat models.Chat
	err = tx.GetContext(ctx, &chat,
		`UPDATE chats SET status='closed', closed_at=NOW(), updated_at=NOW() WHERE id=$1 AND status='active' RETURNING `+chatColumns,
		chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotActive
	}
	if err != nil {
		return models.Chat{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (chat_id, event_type, sender_id, sender_kind, data) VALUES ($1, $2, $3, $4, '{}')`,
		chatID, models.EventChatClosed, operatorID, models.SenderOperator)
	if err != nil {
		return models.Chat{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// ListActiveByOperator returns the operator's active chats with client names.
func (r *ChatRepo) ListActiveByOperator(ctx context.Context, operatorID int64) ([]models.ChatSummary, error) {
	var chats []models.ChatSummary
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.client_id, cl.name AS client_name, c.created_at
        FROM chats c
        JOIN clients cl ON cl.id = c.client_id
        WHERE c.operator_id=$1 AND c.status='active'
        ORDER BY c.created_at DESC`,
		operatorID)
	return chats, err
}
