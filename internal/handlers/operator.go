package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"support-chat/internal/auth"
	"support-chat/internal/middleware"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
	"support-chat/internal/services"
)

// OperatorHandler serves the operator side of the chat API.
type OperatorHandler struct {
	operators  repositories.OperatorRepository
	chats      repositories.ChatRepository
	tokens     *auth.TokenManager
	assignment *services.AssignmentEngine
	delivery   *services.DeliveryService
	poller     *services.Poller
}

// NewOperatorHandler builds an OperatorHandler.
func NewOperatorHandler(
	operators repositories.OperatorRepository,
	chats repositories.ChatRepository,
	tokens *auth.TokenManager,
	assignment *services.AssignmentEngine,
	delivery *services.DeliveryService,
	poller *services.Poller,
) *OperatorHandler {
	return &OperatorHandler{
		operators:  operators,
		chats:      chats,
		tokens:     tokens,
		assignment: assignment,
		delivery:   delivery,
		poller:     poller,
	}
}

func operatorIdentity(c *gin.Context) models.Identity {
	return models.Identity{ID: c.GetInt64(middleware.OperatorIDKey), Kind: models.SenderOperator}
}

// Login exchanges operator credentials for a bearer token.
func (h *OperatorHandler) Login(c *gin.Context) {
	var req struct {
		Login    string `json:"login" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operator, err := h.operators.GetByLogin(c.Request.Context(), req.Login)
	if err != nil {
		if errors.Is(err, repositories.ErrOperatorNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := auth.CheckPassword(operator.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(operator.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "operator": operator})
}

// ListChats returns the operator's active chats.
func (h *OperatorHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.ListActiveByOperator(c.Request.Context(), c.GetInt64(middleware.OperatorIDKey))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// PollChats long-polls for newly assigned chats.
func (h *OperatorHandler) PollChats(c *gin.Context) {
	snapshot, err := h.poller.PollOperatorChats(c.Request.Context(), c.GetInt64(middleware.OperatorIDKey), parseCursor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetMessages returns the chat's messages for the operator.
func (h *OperatorHandler) GetMessages(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	messages, err := h.delivery.ChatMessages(c.Request.Context(), chatID, operatorIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PollMessages long-polls the chat for client activity.
func (h *OperatorHandler) PollMessages(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	snapshot, err := h.poller.PollChat(c.Request.Context(), chatID, operatorIdentity(c), parseCursor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SendMessage accepts a new operator message, idempotent per correlation id.
func (h *OperatorHandler) SendMessage(c *gin.Context) {
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

	msg, err := h.delivery.SendMessage(c.Request.Context(), chatID, operatorIdentity(c), req.Content, req.CorrelationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// EditMessage edits the operator's own message while the chat is active.
func (h *OperatorHandler) EditMessage(c *gin.Context) {
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

	msg, err := h.delivery.EditMessage(c.Request.Context(), chatID, messageID, operatorIdentity(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// MarkRead transitions delivered client messages to read.
func (h *OperatorHandler) MarkRead(c *gin.Context) {
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

	if _, err := h.delivery.MarkRead(c.Request.Context(), chatID, req.MessageIDs, operatorIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendTyping records a typing indicator for the client to observe.
func (h *OperatorHandler) SendTyping(c *gin.Context) {
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

	if err := h.delivery.SendTyping(c.Request.Context(), chatID, operatorIdentity(c), *req.Typing); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CloseChat closes the operator's active chat and re-balances freed capacity.
func (h *OperatorHandler) CloseChat(c *gin.Context) {
	chatID, ok := parseID(c, "chat_id")
	if !ok {
		return
	}

	chat, err := h.assignment.CloseChat(c.Request.Context(), chatID, operatorIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chat": chat})
}
