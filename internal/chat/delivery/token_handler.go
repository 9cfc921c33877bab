package delivery

import (
	"context"
	"net/http"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenHandler serves push-token registration. Clients call register on
// login and on token rotation; the upsert refreshes the staleness clock the
// token janitor sweeps on.
type TokenHandler struct {
	tokens    repository.TokenRepository
	dbBreaker *resilience.CircuitBreaker
	log       *logrus.Entry
}

// NewTokenHandler creates a new instance of TokenHandler
func NewTokenHandler(tokens repository.TokenRepository, dbBreaker *resilience.CircuitBreaker) *TokenHandler {
	return &TokenHandler{
		tokens:    tokens,
		dbBreaker: dbBreaker,
		log:       logging.WithComponent("TokenHandler"),
	}
}

type registerTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// Register upserts a device token for the caller
func (h *TokenHandler) Register(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	userID := c.GetString("userID")
	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.tokens.SaveToken(ctx, userID, req.Token, req.DeviceInfo)
	})
	if err != nil {
		h.log.WithField("user_id", userID).WithError(err).Error("failed to register token")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Unregister removes one device token, typically on logout
func (h *TokenHandler) Unregister(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		_, err := h.tokens.DeleteTokens(ctx, []string{token})
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
