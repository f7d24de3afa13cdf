package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support-chat/internal/middleware"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/services"
)

const sessionCookieMaxAge = 60 * 60 * 24 * 30

// ClientHandler serves the anonymous client side of the chat API.
type ClientHandler struct {
	clients    repositories.ClientRepository
	assignment *services.AssignmentEngine
	delivery   *services.DeliveryService
	poller     *services.Poller
}

// NewClientHandler builds a ClientHandler.
func NewClientHandler(
	clients repositories.ClientRepository,
	assignment *services.AssignmentEngine,
	delivery *services.DeliveryService,
	poller *services.Poller,
) *ClientHandler {
	return &ClientHandler{
		clients:    clients,
		assignment: assignment,
		delivery:   delivery,
		poller:     poller,
	}
}

func clientIdentity(c *gin.Context) models.Identity {
	return models.Identity{ID: c.GetInt64(middleware.ClientIDKey), Kind: models.SenderClient}
}

// StartChat resolves or lazily creates the client from the session cookie,
// then returns the client's open chat, creating and inline-assigning a new
// one when none exists.
func (h *ClientHandler) StartChat(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	// Body is optional; the name defaults server-side.
	_ = c.ShouldBindJSON(&req)

	client, err := h.resolveOrCreateClient(c, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve client"})
		return
	}

	chat, err := h.assignment.FindOrCreateChat(c.Request.Context(), client.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID, "status": chat.Status})
}

func (h *ClientHandler) resolveOrCreateClient(c *gin.Context, name string) (models.Client, error) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		client, err := h.clients.GetBySessionToken(c.Request.Context(), token)
		if err == nil {
			_ = h.clients.Touch(c.Request.Context(), client.ID)
			return client, nil
		}
		if !errors.Is(err, repositories.ErrClientNotFound) {
			return models.Client{}, err
		}
	}

	if name == "" {
		name = "Anonymous"
	}
	token := uuid.NewString()
	client, err := h.clients.Create(c.Request.Context(), name, token)
	if err != nil {
		return models.Client{}, err
	}

	c.SetCookie(middleware.SessionCookie, token, sessionCookieMaxAge, "/", "", false, true)
	return client, nil
}

// GetMessages returns the chat's messages for the client.
func (h *ClientHandler) GetMessages(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	messages, err := h.delivery.ChatMessages(c.Request.Context(), chatID, clientIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PollMessages long-polls the chat for operator activity.
func (h *ClientHandler) PollMessages(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	snapshot, err := h.poller.PollChat(c.Request.Context(), chatID, clientIdentity(c), parseCursor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SendMessage accepts a new client message, idempotent per correlation id.
func (h *ClientHandler) SendMessage(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Content       string `json:"content" binding:"required"`
		CorrelationID string `json:"correlation_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.delivery.SendMessage(c.Request.Context(), chatID, clientIdentity(c), req.Content, req.CorrelationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// EditMessage edits the client's own message while the chat is active.
func (h *ClientHandler) EditMessage(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.delivery.EditMessage(c.Request.Context(), chatID, messageID, clientIdentity(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead transitions delivered operator messages to read.
func (h *ClientHandler) MarkRead(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		MessageIDs []int64 `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.delivery.MarkRead(c.Request.Context(), chatID, req.MessageIDs, clientIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendTyping records a typing indicator for the operator to observe.
func (h *ClientHandler) SendTyping(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Typing *bool `json:"typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.delivery.SendTyping(c.Request.Context(), chatID, clientIdentity(c), *req.Typing); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateName renames the client; the operator side learns about it on its
// next poll.
func (h *ClientHandler) UpdateName(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.delivery.UpdateClientName(c.Request.Context(), chatID, c.GetInt64(middleware.ClientIDKey), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client": client})
}
