package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"support-chat/internal/mocks"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
)

func TestAssignPendingAssignsEachChat(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	chats.On("PendingChatIDs", mock.Anything).Return([]int64{5, 6}, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(5)).
		Return(models.Chat{ID: 5, Status: models.ChatActive}, models.Operator{ID: 1}, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(6)).
		Return(models.Chat{ID: 6, Status: models.ChatActive}, models.Operator{ID: 2}, nil).Once()

	require.NoError(t, engine.AssignPending(context.Background()))
	chats.AssertExpectations(t)
}

func TestAssignPendingSkipsWhenNoCapacity(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	chats.On("PendingChatIDs", mock.Anything).Return([]int64{5, 6}, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(5)).
		Return(models.Chat{}, models.Operator{}, repositories.ErrNoOperatorAvailable).Once()
	chats.On("AssignChat", mock.Anything, int64(6)).
		Return(models.Chat{ID: 6, Status: models.ChatActive}, models.Operator{ID: 2}, nil).Once()

	require.NoError(t, engine.AssignPending(context.Background()))
	chats.AssertExpectations(t)
}

func TestAssignPendingToleratesRacedChat(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	chats.On("PendingChatIDs", mock.Anything).Return([]int64{5}, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(5)).
		Return(models.Chat{}, models.Operator{}, repositories.ErrChatNotFound).Once()

	require.NoError(t, engine.AssignPending(context.Background()))
	chats.AssertExpectations(t)
}

func TestFindOrCreateChatReturnsExistingOpenChat(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	existing := models.Chat{ID: 9, ClientID: 3, Status: models.ChatActive}
	chats.On("FindOpenChatByClient", mock.Anything, int64(3)).Return(existing, nil).Once()

	chat, err := engine.FindOrCreateChat(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, existing, chat)
	chats.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything)
	chats.AssertExpectations(t)
}

func TestFindOrCreateChatAssignsInline(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	chats.On("FindOpenChatByClient", mock.Anything, int64(3)).
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()
	created := models.Chat{ID: 10, ClientID: 3, Status: models.ChatPending}
	chats.On("CreateChat", mock.Anything, int64(3)).Return(created, nil).Once()
	assigned := models.Chat{ID: 10, ClientID: 3, Status: models.ChatActive, OperatorID: sql.NullInt64{Int64: 1, Valid: true}}
	chats.On("AssignChat", mock.Anything, int64(10)).Return(assigned, models.Operator{ID: 1}, nil).Once()

	chat, err := engine.FindOrCreateChat(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.ChatActive, chat.Status)
	assert.EqualValues(t, 1, chat.OperatorID.Int64)
	chats.AssertExpectations(t)
}

func TestFindOrCreateChatStaysPendingWithoutCapacity(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	chats.On("FindOpenChatByClient", mock.Anything, int64(3)).
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()
	created := models.Chat{ID: 10, ClientID: 3, Status: models.ChatPending}
	chats.On("CreateChat", mock.Anything, int64(3)).Return(created, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(10)).
		Return(models.Chat{}, models.Operator{}, repositories.ErrNoOperatorAvailable).Once()

	chat, err := engine.FindOrCreateChat(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.ChatPending, chat.Status)
	chats.AssertExpectations(t)
}

func TestCloseChatReassignsFreedCapacity(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	operator := models.Identity{ID: 7, Kind: models.SenderOperator}
	active := models.Chat{ID: 4, Status: models.ChatActive, OperatorID: sql.NullInt64{Int64: 7, Valid: true}}
	chats.On("GetChat", mock.Anything, int64(4)).Return(active, nil).Once()
	closed := models.Chat{ID: 4, Status: models.ChatClosed, OperatorID: active.OperatorID}
	chats.On("CloseChat", mock.Anything, int64(4), int64(7)).Return(closed, nil).Once()
	chats.On("PendingChatIDs", mock.Anything).Return([]int64{11}, nil).Once()
	chats.On("AssignChat", mock.Anything, int64(11)).
		Return(models.Chat{ID: 11, Status: models.ChatActive}, models.Operator{ID: 7}, nil).Once()

	got, err := engine.CloseChat(context.Background(), 4, operator)
	require.NoError(t, err)
	assert.Equal(t, models.ChatClosed, got.Status)
	chats.AssertExpectations(t)
}

func TestCloseChatRejectsForeignOperator(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	active := models.Chat{ID: 4, Status: models.ChatActive, OperatorID: sql.NullInt64{Int64: 7, Valid: true}}
	chats.On("GetChat", mock.Anything, int64(4)).Return(active, nil).Once()

	_, err := engine.CloseChat(context.Background(), 4, models.Identity{ID: 8, Kind: models.SenderOperator})
	require.ErrorIs(t, err, ErrUnauthorized)
	chats.AssertNotCalled(t, "CloseChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseChatRejectsNonActiveChat(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	engine := NewAssignmentEngine(chats, nil)

	closed := models.Chat{ID: 4, Status: models.ChatClosed, OperatorID: sql.NullInt64{Int64: 7, Valid: true}}
	chats.On("GetChat", mock.Anything, int64(4)).Return(closed, nil).Once()

	_, err := engine.CloseChat(context.Background(), 4, models.Identity{ID: 7, Kind: models.SenderOperator})
	require.ErrorIs(t, err, repositories.ErrChatNotActive)
	chats.AssertNotCalled(t, "CloseChat", mock.Anything, mock.Anything, mock.Anything)
}
