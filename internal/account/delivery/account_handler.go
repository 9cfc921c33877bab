package delivery

import (
	"context"
	"errors"
	"net/http"

	"loopchat-backend/internal/account"
	"loopchat-backend/internal/chat/domain"
	"loopchat-backend/internal/chat/repository"
	"loopchat-backend/internal/resilience"
	"loopchat-backend/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountHandler serves block lists, abuse reports and account deletion.
type AccountHandler struct {
	blocks    repository.BlockRepository
	reports   repository.ReportRepository
	cascade   *account.CascadeEngine
	dbBreaker *resilience.CircuitBreaker
	log       *logrus.Entry
}

// NewAccountHandler creates a new instance of AccountHandler
func NewAccountHandler(blocks repository.BlockRepository, reports repository.ReportRepository, cascade *account.CascadeEngine, dbBreaker *resilience.CircuitBreaker) *AccountHandler {
	return &AccountHandler{
		blocks:    blocks,
		reports:   reports,
		cascade:   cascade,
		dbBreaker: dbBreaker,
		log:       logging.WithComponent("AccountHandler"),
	}
}

// Block adds the target to the caller's block list. Blocking twice or
// blocking yourself are rejected as validation errors before any write.
func (h *AccountHandler) Block(c *gin.Context) {
	targetID := c.Param("id")
	userID := c.GetString("userID")
	if targetID == "" || targetID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target user"})
		return
	}

	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.blocks.Block(ctx, userID, targetID)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Unblock removes the target from the caller's block list
func (h *AccountHandler) Unblock(c *gin.Context) {
	targetID := c.Param("id")
	userID := c.GetString("userID")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target user"})
		return
	}

	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.blocks.Unblock(ctx, userID, targetID)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reportRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

// Report files an abuse report against the target user. Reports start in
// pending status for the moderation queue.
func (h *AccountHandler) Report(c *gin.Context) {
	targetID := c.Param("id")
	userID := c.GetString("userID")
	if targetID == "" || targetID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target user"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	report := &domain.Report{
		ReporterID:  userID,
		ReportedID:  targetID,
		Reason:      req.Reason,
		Description: req.Description,
	}
	err := h.dbBreaker.Execute(c.Request.Context(), func(ctx context.Context) error {
		return h.reports.Create(ctx, report)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": report.ID, "status": report.Status})
}

// DeleteAccount runs the full deletion cascade for the caller. The response
// distinguishes full success from partial: a partial run reports which steps
// failed so the caller (or the safety-net trigger) can retry.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString("userID")

	result := h.cascade.DeleteUser(c.Request.Context(), userID)
	if !result.Success() {
		c.JSON(http.StatusMultiStatus, gin.H{
			"status":         "partial",
			"deleted_counts": result.DeletedCounts,
			"errors":         result.Errors,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"deleted_counts": result.DeletedCounts,
	})
}

// respondError maps an operation error onto the HTTP contract.
func respondError(c *gin.Context, err error) {
	var open *resilience.CircuitOpenError
	if errors.As(err, &open) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":               "temporarily unavailable",
			"retry_after_seconds": int(open.RetryAfter.Seconds()),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
