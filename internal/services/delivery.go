package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/repositories"
)

// DeliveryService validates and persists message traffic: sends, edits,
// delivery and read transitions, typing signals and client name updates.
// Every mutating operation writes its message change and event atomically.
type DeliveryService struct {
	chats            repositories.ChatRepository
	messages         repositories.MessageRepository
	events           repositories.EventRepository
	clients          repositories.ClientRepository
	maxContentLength int
}

// NewDeliveryService builds a DeliveryService.
func NewDeliveryService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	events repositories.EventRepository,
	clients repositories.ClientRepository,
	maxContentLength int,
) *DeliveryService {
	return &DeliveryService{
		chats:            chats,
		messages:         messages,
		events:           events,
		clients:          clients,
		maxContentLength: maxContentLength,
	}
}

// authorizeParticipant checks that the identity is on one side of the chat.
func authorizeParticipant(chat models.Chat, caller models.Identity) error {
	switch caller.Kind {
	case models.SenderClient:
		if chat.ClientID == caller.ID {
			return nil
		}
	case models.SenderOperator:
		if chat.OperatorID.Valid && chat.OperatorID.Int64 == caller.ID {
			return nil
		}
	}
	return ErrUnauthorized
}

func (s *DeliveryService) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty content", ErrValidation)
	}
	if len(content) > s.maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrValidation, s.maxContentLength)
	}
	return nil
}

// SendMessage validates the sender against an active chat and writes the
// message plus its message_sent event atomically. A correlation id that was
// already used for the chat makes the call an idempotent replay: the existing
// message is returned unchanged, with no second row and no second event.
func (s *DeliveryService) SendMessage(ctx context.Context, chatID int64, sender models.Identity, content, correlationID string) (models.Message, error) {
	if err := s.validateContent(content); err != nil {
		return models.Message{}, err
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if chat.Status != models.ChatActive {
		return models.Message{}, repositories.ErrChatNotActive
	}
	if err := authorizeParticipant(chat, sender); err != nil {
		return models.Message{}, err
	}

	if correlationID != "" {
		existing, err := s.messages.FindByCorrelation(ctx, chatID, correlationID)
		if err == nil {
			observability.IncIdempotentReplay()
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, err
		}
	}

	msg, err := s.messages.CreateWithEvent(ctx, repositories.NewMessage{
		ChatID:        chatID,
		SenderID:      sender.ID,
		SenderKind:    sender.Kind,
		Content:       content,
		CorrelationID: correlationID,
	})
	if err != nil {
		return models.Message{}, err
	}

	observability.IncMessageSent(string(sender.Kind))
	return msg, nil
}

// EditMessage replaces the content of the sender's own message while the
// owning chat is still active.
func (s *DeliveryService) EditMessage(ctx context.Context, chatID, messageID int64, sender models.Identity, content string) (models.Message, error) {
	if err := s.validateContent(content); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ChatID != chatID {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if msg.SenderID != sender.ID || msg.SenderKind != sender.Kind {
		return models.Message{}, ErrUnauthorized
	}

	chat, err := s.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if chat.Status != models.ChatActive {
		return models.Message{}, repositories.ErrChatNotActive
	}

	return s.messages.EditWithEvent(ctx, messageID, content)
}

// MarkDelivered transitions a sent message to delivered on behalf of its
// recipient. Messages past sent are returned as-is without a new event.
func (s *DeliveryService) MarkDelivered(ctx context.Context, messageID int64, recipient models.Identity) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Status != models.MessageSent {
		return msg, nil
	}
	if recipient.Kind == msg.SenderKind {
		return models.Message{}, ErrUnauthorized
	}

	chat, err := s.chats.GetChat(ctx, msg.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if err := authorizeParticipant(chat, recipient); err != nil {
		return models.Message{}, err
	}

	updated, _, err := s.messages.MarkDelivered(ctx, messageID, recipient)
	return updated, err
}

// MarkRead bulk-transitions delivered counterpart messages to read. The whole
// batch commits or rolls back together.
func (s *DeliveryService) MarkRead(ctx context.Context, chatID int64, messageIDs []int64, reader models.Identity) ([]models.Message, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParticipant(chat, reader); err != nil {
		return nil, err
	}

	return s.messages.MarkRead(ctx, chatID, messageIDs, reader)
}

// SendTyping appends a typing_start or typing_end event for the chat.
func (s *DeliveryService) SendTyping(ctx context.Context, chatID int64, sender models.Identity, typing bool) error {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := authorizeParticipant(chat, sender); err != nil {
		return err
	}

	eventType := models.EventTypingEnd
	if typing {
		eventType = models.EventTypingStart
	}
	_, err = s.events.Append(ctx, chatID, eventType, sender, models.EventData{})
	return err
}

// UpdateClientName renames the client and surfaces the change to the operator
// through a client_name_updated event. Rename and event commit together.
func (s *DeliveryService) UpdateClientName(ctx context.Context, chatID int64, clientID int64, name string) (models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > s.maxContentLength {
		return models.Client{}, fmt.Errorf("%w: invalid name", ErrValidation)
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Client{}, err
	}
	caller := models.Identity{ID: clientID, Kind: models.SenderClient}
	if err := authorizeParticipant(chat, caller); err != nil {
		return models.Client{}, err
	}

	return s.clients.RenameWithEvent(ctx, clientID, chatID, name)
}

// ChatMessages returns the chat's messages for an authorized participant.
func (s *DeliveryService) ChatMessages(ctx context.Context, chatID int64, viewer models.Identity) ([]models.Message, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParticipant(chat, viewer); err != nil {
		return nil, err
	}
	return s.messages.ListByChat(ctx, chatID)
}
