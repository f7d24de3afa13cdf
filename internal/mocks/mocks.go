package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"support-chat/internal/models"
	"support-chat/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) FindOpenChatByClient(ctx context.Context, clientID int64) (models.Chat, error) {
	args := m.Called(ctx, clientID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, clientID int64) (models.Chat, error) {
	args := m.Called(ctx, clientID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) PendingChatIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) AssignChat(ctx context.Context, chatID int64) (models.Chat, models.Operator, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	var op models.Operator
	if val := args.Get(1); val != nil {
		op = val.(models.Operator)
	}
	return chat, op, args.Error(2)
}

func (m *ChatRepositoryMock) CloseChat(ctx context.Context, chatID int64, operatorID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID, operatorID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListActiveByOperator(ctx context.Context, operatorID int64) ([]models.ChatSummary, error) {
	args := m.Called(ctx, operatorID)
	var chats []models.ChatSummary
	if val := args.Get(0); val != nil {
		chats = val.([]models.ChatSummary)
	}
	return chats, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateWithEvent(ctx context.Context, msg repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) FindByCorrelation(ctx context.Context, chatID int64, correlationID string) (models.Message, error) {
	args := m.Called(ctx, chatID, correlationID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListByChat(ctx context.Context, chatID int64) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID int64, recipient models.Identity) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, recipient)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID int64, messageIDs []int64, reader models.Identity) ([]models.Message, error) {
	args := m.Called(ctx, chatID, messageIDs, reader)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) EditWithEvent(ctx context.Context, messageID int64, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListStuckSent(ctx context.Context, olderThan time.Time, maxRetries int, limit int) ([]models.Message, error) {
	args := m.Called(ctx, olderThan, maxRetries, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) HasDeliveredSibling(ctx context.Context, correlationID string, excludeID int64) (bool, error) {
	args := m.Called(ctx, correlationID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkReplaced(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) BumpRetry(ctx context.Context, messageID int64, maxRetries int) (models.Message, error) {
	args := m.Called(ctx, messageID, maxRetries)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type EventRepositoryMock struct {
	mock.Mock
}

func (m *EventRepositoryMock) Append(ctx context.Context, chatID int64, eventType models.EventType, sender models.Identity, data models.EventData) (models.Event, error) {
	args := m.Called(ctx, chatID, eventType, sender, data)
	var event models.Event
	if val := args.Get(0); val != nil {
		event = val.(models.Event)
	}
	return event, args.Error(1)
}

func (m *EventRepositoryMock) ListChatEventsSince(ctx context.Context, chatID int64, afterID int64, types []models.EventType, senderKind models.SenderKind) ([]models.Event, error) {
	args := m.Called(ctx, chatID, afterID, types, senderKind)
	var events []models.Event
	if val := args.Get(0); val != nil {
		events = val.([]models.Event)
	}
	return events, args.Error(1)
}

func (m *EventRepositoryMock) ListAssignedSince(ctx context.Context, operatorID int64, afterID int64) ([]models.Event, error) {
	args := m.Called(ctx, operatorID, afterID)
	var events []models.Event
	if val := args.Get(0); val != nil {
		events = val.([]models.Event)
	}
	return events, args.Error(1)
}

type OperatorRepositoryMock struct {
	mock.Mock
}

func (m *OperatorRepositoryMock) GetOperator(ctx context.Context, operatorID int64) (models.Operator, error) {
	args := m.Called(ctx, operatorID)
	var op models.Operator
	if val := args.Get(0); val != nil {
		op = val.(models.Operator)
	}
	return op, args.Error(1)
}

func (m *OperatorRepositoryMock) GetByLogin(ctx context.Context, login string) (models.Operator, error) {
	args := m.Called(ctx, login)
	var op models.Operator
	if val := args.Get(0); val != nil {
		op = val.(models.Operator)
	}
	return op, args.Error(1)
}

func (m *OperatorRepositoryMock) Create(ctx context.Context, name, login, passwordHash string, maxChats int) (models.Operator, error) {
	args := m.Called(ctx, name, login, passwordHash, maxChats)
	var op models.Operator
	if val := args.Get(0); val != nil {
		op = val.(models.Operator)
	}
	return op, args.Error(1)
}

type ClientRepositoryMock struct {
	mock.Mock
}

func (m *ClientRepositoryMock) GetClient(ctx context.Context, clientID int64) (models.Client, error) {
	args := m.Called(ctx, clientID)
	var client models.Client
	if val := args.Get(0); val != nil {
		client = val.(models.Client)
	}
	return client, args.Error(1)
}

func (m *ClientRepositoryMock) GetBySessionToken(ctx context.Context, token string) (models.Client, error) {
	args := m.Called(ctx, token)
	var client models.Client
	if val := args.Get(0); val != nil {
		client = val.(models.Client)
	}
	return client, args.Error(1)
}

func (m *ClientRepositoryMock) Create(ctx context.Context, name, sessionToken string) (models.Client, error) {
	args := m.Called(ctx, name, sessionToken)
	var client models.Client
	if val := args.Get(0); val != nil {
		client = val.(models.Client)
	}
	return client, args.Error(1)
}

func (m *ClientRepositoryMock) Touch(ctx context.Context, clientID int64) error {
	args := m.Called(ctx, clientID)
	return args.Error(0)
}

func (m *ClientRepositoryMock) RenameWithEvent(ctx context.Context, clientID, chatID int64, name string) (models.Client, error) {
	args := m.Called(ctx, clientID, chatID, name)
	var client models.Client
	if val := args.Get(0); val != nil {
		client = val.(models.Client)
	}
	return client, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.EventRepository = (*EventRepositoryMock)(nil)
var _ repositories.OperatorRepository = (*OperatorRepositoryMock)(nil)
var _ repositories.ClientRepository = (*ClientRepositoryMock)(nil)
