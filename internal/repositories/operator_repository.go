package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"support-chat/internal/models"
)

var ErrOperatorNotFound = errors.New("operator not found")

const operatorColumns = `id, name, login, password_hash, max_chats, created_at`

// OperatorRepository abstracts operator identity persistence.
type OperatorRepository interface {
	GetOperator(ctx context.Context, operatorID int64) (models.Operator, error)
	GetByLogin(ctx context.Context, login string) (models.Operator, error)
	Create(ctx context.Context, name, login, passwordHash string, maxChats int) (models.Operator, error)
}

// OperatorRepo is a sqlx implementation of OperatorRepository.
type OperatorRepo struct {
	db *sqlx.DB
}

// NewOperatorRepo constructs an OperatorRepo.
func NewOperatorRepo(db *sqlx.DB) *OperatorRepo {
	return &OperatorRepo{db: db}
}

// GetOperator fetches an operator by id.
func (r *OperatorRepo) GetOperator(ctx context.Context, operatorID int64) (models.Operator, error) {
	var op models.Operator
	err := r.db.GetContext(ctx, &op, `SELECT `+operatorColumns+` FROM operators WHERE id=$1`, operatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operator{}, ErrOperatorNotFound
	}
	return op, err
}

// GetByLogin fetches an operator by login credential.
func (r *OperatorRepo) GetByLogin(ctx context.Context, login string) (models.Operator, error) {
	var op models.Operator
	err := r.db.GetContext(ctx, &op, `SELECT `+operatorColumns+` FROM operators WHERE login=$1`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operator{}, ErrOperatorNotFound
	}
	return op, err
}

// Create inserts a new operator.
func (r *OperatorRepo) Create(ctx context.Context, name, login, passwordHash string, maxChats int) (models.Operator, error) {
	var op models.Operator
	err := r.db.GetContext(ctx, &op,
		`INSERT INTO operators (name, login, password_hash, max_chats)
        VALUES ($1, $2, $3, $4) RETURNING `+operatorColumns,
		name, login, passwordHash, maxChats)
	return op, err
}
