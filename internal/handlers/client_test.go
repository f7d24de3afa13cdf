package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"support-chat/internal/middleware"
	"support-chat/internal/mocks"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/services"
)

type clientDeps struct {
	clients  *mocks.ClientRepositoryMock
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	events   *mocks.EventRepositoryMock
}

func setupClientRouter() (*gin.Engine, clientDeps) {
	gin.SetMode(gin.TestMode)
	deps := clientDeps{
		clients:  new(mocks.ClientRepositoryMock),
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		events:   new(mocks.EventRepositoryMock),
	}

	assignment := services.NewAssignmentEngine(deps.chats, nil)
	delivery := services.NewDeliveryService(deps.chats, deps.messages, deps.events, deps.clients, 1000)
	poller := services.NewPoller(deps.chats, deps.messages, deps.events, delivery, services.PollerConfig{
		Interval: time.Millisecond,
		Timeout:  time.Millisecond,
	})
	handler := NewClientHandler(deps.clients, assignment, delivery, poller)

	r := gin.New()
	r.POST("/client/chats/start", handler.StartChat)
	authed := r.Group("/client/chats/:chat_id", func(c *gin.Context) {
		c.Set(middleware.ClientIDKey, int64(3))
		c.Next()
	})
	authed.GET("/messages", handler.GetMessages)
	authed.POST("/messages", handler.SendMessage)
	authed.PUT("/messages/:message_id", handler.EditMessage)
	authed.POST("/read", handler.MarkRead)
	authed.POST("/typing", handler.SendTyping)
	authed.POST("/name", handler.UpdateName)
	return r, deps
}

func activeClientChat() models.Chat {
	return models.Chat{ID: 5, ClientID: 3, Status: models.ChatActive}
}

func TestStartChatCreatesSessionAndChat(t *testing.T) {
	router, deps := setupClientRouter()

	deps.clients.On("Create", mock.Anything, "Alice", mock.AnythingOfType("string")).
		Return(models.Client{ID: 3, Name: "Alice"}, nil).Once()
	deps.chats.On("FindOpenChatByClient", mock.Anything, int64(3)).
		Return(models.Chat{}, repositories.ErrChatNotFound).Once()
	deps.chats.On("CreateChat", mock.Anything, int64(3)).
		Return(models.Chat{ID: 5, ClientID: 3, Status: models.ChatPending}, nil).Once()
	deps.chats.On("AssignChat", mock.Anything, int64(5)).
		Return(models.Chat{}, models.Operator{}, repositories.ErrNoOperatorAvailable).Once()

	req := httptest.NewRequest(http.MethodPost, "/client/chats/start", bytes.NewBufferString(`{"name":"Alice"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 5, resp["chat_id"])
	assert.Equal(t, "pending", resp["status"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	deps.clients.AssertExpectations(t)
	deps.chats.AssertExpectations(t)
}

func TestStartChatReusesExistingSession(t *testing.T) {
	router, deps := setupClientRouter()

	deps.clients.On("GetBySessionToken", mock.Anything, "tok-1").
		Return(models.Client{ID: 3, Name: "Alice"}, nil).Once()
	deps.clients.On("Touch", mock.Anything, int64(3)).Return(nil).Once()
	deps.chats.On("FindOpenChatByClient", mock.Anything, int64(3)).
		Return(activeClientChat(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/client/chats/start", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "tok-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.clients.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	deps.chats.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything)
	deps.clients.AssertExpectations(t)
}

func TestClientGetMessagesSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	deps.messages.On("ListByChat", mock.Anything, int64(5)).
		Return([]models.Message{{ID: 20, ChatID: 5}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/client/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestClientGetMessagesInvalidID(t *testing.T) {
	router, _ := setupClientRouter()

	req := httptest.NewRequest(http.MethodGet, "/client/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientSendMessageSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	deps.messages.On("FindByCorrelation", mock.Anything, int64(5), "corr-1").
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()
	deps.messages.On("CreateWithEvent", mock.Anything, repositories.NewMessage{
		ChatID:        5,
		SenderID:      3,
		SenderKind:    models.SenderClient,
		Content:       "hello",
		CorrelationID: "corr-1",
	}).Return(models.Message{ID: 20, ChatID: 5, Content: "hello", Status: models.MessageSent}, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello","correlation_id":"corr-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestClientSendMessageToClosedChat(t *testing.T) {
	router, deps := setupClientRouter()

	closed := models.Chat{ID: 5, ClientID: 3, Status: models.ChatClosed}
	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(closed, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientSendMessageMissingContent(t *testing.T) {
	router, _ := setupClientRouter()

	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientSendMessageForeignChat(t *testing.T) {
	router, deps := setupClientRouter()

	foreign := models.Chat{ID: 5, ClientID: 99, Status: models.ChatActive}
	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(foreign, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClientEditMessageSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	stored := models.Message{ID: 20, ChatID: 5, SenderID: 3, SenderKind: models.SenderClient, Content: "old", Status: models.MessageSent}
	deps.messages.On("GetMessage", mock.Anything, int64(20)).Return(stored, nil).Once()
	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	edited := stored
	edited.Content = "new"
	edited.Edited = true
	deps.messages.On("EditWithEvent", mock.Anything, int64(20), "new").Return(edited, nil).Once()

	body := bytes.NewBufferString(`{"content":"new"}`)
	req := httptest.NewRequest(http.MethodPut, "/client/chats/5/messages/20", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestClientMarkReadSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	reader := models.Identity{ID: 3, Kind: models.SenderClient}
	deps.messages.On("MarkRead", mock.Anything, int64(5), []int64{20, 21}, reader).
		Return([]models.Message{{ID: 20}, {ID: 21}}, nil).Once()

	body := bytes.NewBufferString(`{"message_ids":[20,21]}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/read", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestClientSendTypingSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	sender := models.Identity{ID: 3, Kind: models.SenderClient}
	deps.events.On("Append", mock.Anything, int64(5), models.EventTypingStart, sender, models.EventData{}).
		Return(models.Event{ID: 100}, nil).Once()

	body := bytes.NewBufferString(`{"typing":true}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/typing", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.events.AssertExpectations(t)
}

func TestClientSendTypingMissingFlag(t *testing.T) {
	router, _ := setupClientRouter()

	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/typing", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientUpdateNameSuccess(t *testing.T) {
	router, deps := setupClientRouter()

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(activeClientChat(), nil).Once()
	deps.clients.On("RenameWithEvent", mock.Anything, int64(3), int64(5), "Alice").
		Return(models.Client{ID: 3, Name: "Alice"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"Alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/client/chats/5/name", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.clients.AssertExpectations(t)
}
