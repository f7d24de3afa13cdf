package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"support-chat/internal/auth"
	"support-chat/internal/mocks"
	"support-chat/internal/models"
	"support-chat/internal/repositories"
)

func TestOperatorAuthSetsOperatorID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager("secret", time.Hour)
	token, err := tokens.Issue(7)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", OperatorAuth(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator_id": c.GetInt64(OperatorIDKey)})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"operator_id":7`)
}

func TestOperatorAuthRejectsMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager("secret", time.Hour)

	r := gin.New()
	r.GET("/protected", OperatorAuth(tokens), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperatorAuthRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenManager("secret", time.Hour)

	r := gin.New()
	r.GET("/protected", OperatorAuth(tokens), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientSessionResolvesCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clients := new(mocks.ClientRepositoryMock)
	clients.On("GetBySessionToken", mock.Anything, "tok-1").
		Return(models.Client{ID: 3}, nil).Once()
	clients.On("Touch", mock.Anything, int64(3)).Return(nil).Once()

	r := gin.New()
	r.GET("/chat", ClientSession(clients), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"client_id": c.GetInt64(ClientIDKey)})
	})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok-1"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"client_id":3`)
	clients.AssertExpectations(t)
}

func TestClientSessionRejectsMissingCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clients := new(mocks.ClientRepositoryMock)

	r := gin.New()
	r.GET("/chat", ClientSession(clients), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClientSessionRejectsUnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clients := new(mocks.ClientRepositoryMock)
	clients.On("GetBySessionToken", mock.Anything, "stale").
		Return(models.Client{}, repositories.ErrClientNotFound).Once()

	r := gin.New()
	r.GET("/chat", ClientSession(clients), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	clients.AssertExpectations(t)
}
