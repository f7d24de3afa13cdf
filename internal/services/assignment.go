package services

import (
	"context"
	"errors"
	"log"

	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/repositories"
	"support-chat/internal/telemetry"
)

// AssignmentEngine balances pending chats across operators and owns the
// chat lifecycle transitions around assignment and close.
type AssignmentEngine struct {
	chats   repositories.ChatRepository
	emitter *telemetry.Emitter
}

// NewAssignmentEngine builds an AssignmentEngine.
func NewAssignmentEngine(chats repositories.ChatRepository, emitter *telemetry.Emitter) *AssignmentEngine {
	return &AssignmentEngine{chats: chats, emitter: emitter}
}

// AssignPending walks pending chats in creation order and assigns each to the
// least-loaded operator with spare capacity. Every chat is handled in its own
// locked transaction; a chat that cannot be assigned stays pending and does
// not abort the rest of the batch.
func (e *AssignmentEngine) AssignPending(ctx context.Context) error {
	ids, err := e.chats.PendingChatIDs(ctx)
	if err != nil {
		return err
	}

	for _, chatID := range ids {
		chat, operator, err := e.chats.AssignChat(ctx, chatID)
		switch {
		case errors.Is(err, repositories.ErrNoOperatorAvailable):
			observability.IncAssignmentSkipped()
			continue
		case errors.Is(err, repositories.ErrChatNotFound):
			// Assigned or closed by a concurrent actor in the meantime.
			continue
		case err != nil:
			log.Printf("assign chat %d: %v", chatID, err)
			continue
		}

		observability.IncAssignment()
		e.emitter.Emit(ctx, "chat.assigned", telemetry.ChatAssignedPayload{
			ChatID:     chat.ID,
			OperatorID: operator.ID,
		})
	}
	return nil
}

// FindOrCreateChat returns the client's open chat or creates a new one,
// attempting assignment inline so first contact gets an operator immediately
// when capacity exists. With no capacity the chat is returned pending and is
// picked up by the next AssignPending pass.
func (e *AssignmentEngine) FindOrCreateChat(ctx context.Context, clientID int64) (models.Chat, error) {
	chat, err := e.chats.FindOpenChatByClient(ctx, clientID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return models.Chat{}, err
	}

	chat, err = e.chats.CreateChat(ctx, clientID)
	if err != nil {
		return models.Chat{}, err
	}

	assigned, operator, err := e.chats.AssignChat(ctx, chat.ID)
	switch {
	case errors.Is(err, repositories.ErrNoOperatorAvailable), errors.Is(err, repositories.ErrChatNotFound):
		return chat, nil
	case err != nil:
		log.Printf("inline assign chat %d: %v", chat.ID, err)
		return chat, nil
	}

	observability.IncAssignment()
	e.emitter.Emit(ctx, "chat.assigned", telemetry.ChatAssignedPayload{
		ChatID:     assigned.ID,
		OperatorID: operator.ID,
	})
	return assigned, nil
}

// CloseChat transitions the operator's active chat to closed and immediately
// re-runs assignment so the freed capacity is reused without waiting for the
// scheduled sweep.
func (e *AssignmentEngine) CloseChat(ctx context.Context, chatID int64, operator models.Identity) (models.Chat, error) {
	chat, err := e.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if operator.Kind != models.SenderOperator || !chat.OperatorID.Valid || chat.OperatorID.Int64 != operator.ID {
		return models.Chat{}, ErrUnauthorized
	}
	if chat.Status != models.ChatActive {
		return models.Chat{}, repositories.ErrChatNotActive
	}

	closed, err := e.chats.CloseChat(ctx, chatID, operator.ID)
	if err != nil {
		return models.Chat{}, err
	}

	e.emitter.Emit(ctx, "chat.closed", telemetry.ChatClosedPayload{
		ChatID:     closed.ID,
		OperatorID: operator.ID,
	})

	if err := e.AssignPending(ctx); err != nil {
		log.Printf("reassign after close of chat %d: %v", chatID, err)
	}
	return closed, nil
}
