package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"support-chat/internal/auth"
	"support-chat/internal/repositories"
)

const (
	// OperatorIDKey is the gin context key holding the operator id.
	OperatorIDKey = "operatorID"
	// ClientIDKey is the gin context key holding the client id.
	ClientIDKey = "clientID"
	// SessionCookie carries the anonymous client session token.
	SessionCookie = "chat_session"
)

// OperatorAuth validates the Authorization header as an operator bearer token.
func OperatorAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		operatorID, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OperatorIDKey, operatorID)
		c.Next()
	}
}

// ClientSession resolves the anonymous client from the session cookie. The
// client row must already exist; the start endpoint creates it lazily.
func ClientSession(clients repositories.ClientRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no client session"})
			return
		}

		client, err := clients.GetBySessionToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, repositories.ErrClientNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown client session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session"})
			return
		}

		// Presence refresh is best effort.
		_ = clients.Touch(c.Request.Context(), client.ID)

		c.Set(ClientIDKey, client.ID)
		c.Next()
	}
}
