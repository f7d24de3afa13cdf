package services

import (
	"context"
	"log"
	"time"

	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/repositories"
	"support-chat/internal/telemetry"
)

// Sweeper periodically re-delivers or fails messages stuck in sent past the
// delivery deadline. Each message is handled in isolation so one failure does
// not block the batch.
type Sweeper struct {
	messages repositories.MessageRepository
	delivery *DeliveryService
	emitter  *telemetry.Emitter

	deadline   time.Duration
	maxRetries int
	batchSize  int

	now func() time.Time
}

// NewSweeper builds a Sweeper.
func NewSweeper(
	messages repositories.MessageRepository,
	delivery *DeliveryService,
	emitter *telemetry.Emitter,
	deadline time.Duration,
	maxRetries int,
	batchSize int,
) *Sweeper {
	return &Sweeper{
		messages:   messages,
		delivery:   delivery,
		emitter:    emitter,
		deadline:   deadline,
		maxRetries: maxRetries,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Sweep selects one bounded batch of stuck messages and retries each.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.deadline)
	stuck, err := s.messages.ListStuckSent(ctx, cutoff, s.maxRetries, s.batchSize)
	if err != nil {
		return err
	}

	for _, msg := range stuck {
		if err := s.retryOne(ctx, msg); err != nil {
			log.Printf("retry message %d: %v", msg.ID, err)
		}
	}
	return nil
}

func (s *Sweeper) retryOne(ctx context.Context, msg models.Message) error {
	// Re-check: the recipient may have polled since the batch was selected.
	current, err := s.messages.GetMessage(ctx, msg.ID)
	if err != nil {
		return err
	}
	if current.Status != models.MessageSent {
		return nil
	}

	if current.CorrelationID.Valid {
		duplicated, err := s.messages.HasDeliveredSibling(ctx, current.CorrelationID.String, current.ID)
		if err != nil {
			return err
		}
		if duplicated {
			// A duplicate submission already reached the recipient.
			if err := s.messages.MarkReplaced(ctx, current.ID); err != nil {
				return err
			}
			observability.IncSweeperOutcome("replaced")
			return nil
		}

		// Idempotent re-send: a no-op when this message is still the one on
		// record for the correlation id.
		sender := models.Identity{ID: current.SenderID, Kind: current.SenderKind}
		if _, err := s.delivery.SendMessage(ctx, current.ChatID, sender, current.Content, current.CorrelationID.String); err != nil {
			log.Printf("re-send message %d: %v", current.ID, err)
		}
	}

	bumped, err := s.messages.BumpRetry(ctx, current.ID, s.maxRetries)
	if err != nil {
		return err
	}

	if bumped.Status == models.MessageFailed {
		observability.IncSweeperOutcome("failed")
		s.emitter.Emit(ctx, "message.failed", telemetry.MessageFailedPayload{
			MessageID:  bumped.ID,
			ChatID:     bumped.ChatID,
			RetryCount: bumped.RetryCount,
		})
		return nil
	}

	observability.IncSweeperOutcome("retried")
	return nil
}
