package delivery

import (
	"context"
	"net/http"
	"time"

	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"
	"loopchat-backend/pkg/realtime"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxPresenceQuery caps one getPresence call.
const maxPresenceQuery = 100

// RealtimeStore is the presence surface the handlers need.
type RealtimeStore interface {
	SetPresence(ctx context.Context, p realtime.Presence) error
	GetPresence(ctx context.Context, userIDs []string) ([]realtime.Presence, error)
	SetTyping(ctx context.Context, roomID, userID string, typing bool) error
}

// PresenceHandler serves presence reads and writes
type PresenceHandler struct {
	store   RealtimeStore
	breaker *resilience.CircuitBreaker
	log     *logrus.Entry
}

// NewPresenceHandler creates a new instance of PresenceHandler
func NewPresenceHandler(store RealtimeStore, rtBreaker *resilience.CircuitBreaker) *PresenceHandler {
	return &PresenceHandler{
		store:   store,
		breaker: rtBreaker,
		log:     logging.WithComponent("PresenceHandler"),
	}
}

type updatePresenceRequest struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// UpdatePresence writes the caller's presence record
func (h *PresenceHandler) UpdatePresence(c *gin.Context) {
	var req updatePresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	lastSeen := time.Now()
	if req.LastSeen != nil {
		lastSeen = *req.LastSeen
	}

	userID := c.GetString("userID")
	err := h.breaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.store.SetPresence(ctx, realtime.Presence{
			UserID:   userID,
			Online:   req.Online,
			LastSeen: lastSeen,
		})
	})
	if err != nil {
		h.log.WithField("user_id", userID).WithError(err).Error("failed to update presence")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type queryPresenceRequest struct {
	UserIDs []string `json:"user_ids"`
}

// QueryPresence returns presence records for up to 100 users
func (h *PresenceHandler) QueryPresence(c *gin.Context) {
	var req queryPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.UserIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids is required"})
		return
	}
	if len(req.UserIDs) > maxPresenceQuery {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many user_ids, max 100"})
		return
	}

	var records []realtime.Presence
	err := h.breaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		var err error
		records, err = h.store.GetPresence(ctx, req.UserIDs)
		return err
	})
	if err != nil {
		h.log.WithError(err).Error("failed to query presence")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"presence": records})
}
