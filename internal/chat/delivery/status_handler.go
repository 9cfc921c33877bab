package delivery

import (
	"context"
	"net/http"
	"time"

	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxBatchEntries caps the combined size of one batchStatusUpdate call.
const maxBatchEntries = 500

// StatusHandler serves delivery receipts, read receipts, typing indicators
// and unread-counter resets.
type StatusHandler struct {
	messages  repository.MessageRepository
	rooms     repository.RoomRepository
	store     RealtimeStore
	dbBreaker *resilience.CircuitBreaker
	rtBreaker *resilience.CircuitBreaker
	log       *logrus.Entry
}

// NewStatusHandler creates a new instance of StatusHandler
func NewStatusHandler(messages repository.MessageRepository, rooms repository.RoomRepository, store RealtimeStore, dbBreaker, rtBreaker *resilience.CircuitBreaker) *StatusHandler {
	return &StatusHandler{
		messages:  messages,
		rooms:     rooms,
		store:     store,
		dbBreaker: dbBreaker,
		rtBreaker: rtBreaker,
		log:       logging.WithComponent("StatusHandler"),
	}
}

type typingIndicator struct {
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
}

type batchStatusRequest struct {
	// DeliveryUpdates lists message IDs delivered to the caller's device.
	DeliveryUpdates []string `json:"delivery_updates"`
	// ReadReceipts lists room IDs whose messages the caller has read.
	ReadReceipts     []string          `json:"read_receipts"`
	TypingIndicators []typingIndicator `json:"typing_indicators"`
}

// BatchStatusUpdate applies a client's accumulated status changes in one
// call. Partial failures are reported per section, not as an overall error.
func (h *StatusHandler) BatchStatusUpdate(c *gin.Context) {
	var req batchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	total := len(req.DeliveryUpdates) + len(req.ReadReceipts) + len(req.TypingIndicators)
	if total == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}
	if total > maxBatchEntries {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch too large, max 500 entries"})
		return
	}

	userID := c.GetString("userID")
	now := time.Now()
	failed := map[string]string{}

	if len(req.DeliveryUpdates) > 0 {
		err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
			return h.messages.MarkDelivered(ctx, req.DeliveryUpdates, now)
		})
		if err != nil {
			failed["delivery_updates"] = err.Error()
		}
	}

	for _, roomID := range req.ReadReceipts {
		err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
			return h.messages.MarkRead(ctx, roomID, userID, now)
		})
		if err != nil {
			failed["read_receipts"] = err.Error()
			break
		}
	}

	for _, ind := range req.TypingIndicators {
		ind := ind
		err := h.rtBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
			return h.store.SetTyping(ctx, ind.RoomID, userID, ind.Typing)
		})
		if err != nil {
			failed["typing_indicators"] = err.Error()
			break
		}
	}

	if len(failed) > 0 {
		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"failed":  failed,
		}).Warn("batch status update partially failed")
		c.JSON(http.StatusOK, gin.H{"status": "partial", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type muteRequest struct {
	// DurationSeconds of 0 clears the mute.
	DurationSeconds int64 `json:"duration_seconds"`
}

// MuteRoom sets or clears the caller's notification mute for one room.
// Unread counters keep accumulating while a room is muted.
func (h *StatusHandler) MuteRoom(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.DurationSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds must not be negative"})
		return
	}

	userID := c.GetString("userID")
	var member bool
	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		var err error
		member, err = h.rooms.IsMember(ctx, roomID, userID)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}

	var until *time.Time
	if req.DurationSeconds > 0 {
		u := time.Now().Add(time.Duration(req.DurationSeconds) * time.Second)
		until = &u
	}
	err = h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.rooms.SetMuteUntil(ctx, roomID, userID, until)
	})
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"room_id": roomID,
		}).WithError(err).Error("failed to update room mute")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ResetUnread zeroes the caller's unread counter for one room and marks its
// messages read.
func (h *StatusHandler) ResetUnread(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	userID := c.GetString("userID")
	var member bool
	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		var err error
		member, err = h.rooms.IsMember(ctx, roomID, userID)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}

	now := time.Now()
	err = h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		if err := h.rooms.ResetUnread(ctx, roomID, userID); err != nil {
			return err
		}
		return h.messages.MarkRead(ctx, roomID, userID, now)
	})
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"user_id": userID,
			"room_id": roomID,
		}).WithError(err).Error("failed to reset unread count")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
