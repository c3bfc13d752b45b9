package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"psybot/internal/middleware"
	"psybot/internal/models"
	"psybot/internal/moderation"
	"psybot/internal/repository"
)

// Moderator is the moderation queue used by the HTTP API.
type Moderator interface {
	ListPending(ctx context.Context) ([]*models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Submission, error)
	Decide(ctx context.Context, id string, decision models.SubmissionStatus) (moderation.Result, error)
}

// ModerationHandler serves the admin moderation endpoints.
type ModerationHandler interface {
	ListPending(c *gin.Context)
	GetSubmission(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	ListUserSubmissions(c *gin.Context)
}

type moderationHandler struct {
	moderator Moderator
	logger    *zap.Logger
}

// NewModerationHandler creates the HTTP handlers for the moderation API.
func NewModerationHandler(moderator Moderator, logger *zap.Logger) ModerationHandler {
	return &moderationHandler{moderator: moderator, logger: logger}
}

// ListPending returns pending submissions in the order they were created.
func (h *moderationHandler) ListPending(c *gin.Context) {
	subs, err := h.moderator.ListPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list pending submissions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list submissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}

func (h *moderationHandler) GetSubmission(c *gin.Context) {
	id := c.Param("id")
	sub, err := h.moderator.Get(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get submission", zap.String("submission_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get submission"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *moderationHandler) Approve(c *gin.Context) {
	h.decide(c, models.StatusApproved)
}

func (h *moderationHandler) Reject(c *gin.Context) {
	h.decide(c, models.StatusRejected)
}

// decide reports unknown and already decided submissions as outcomes with
// 200; only store failures are errors.
func (h *moderationHandler) decide(c *gin.Context, decision models.SubmissionStatus) {
	id := c.Param("id")
	res, err := h.moderator.Decide(c.Request.Context(), id, decision)
	if err != nil {
		h.logger.Error("Failed to decide submission",
			zap.String("submission_id", id),
			zap.String("decision", string(decision)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply decision"})
		return
	}

	h.logger.Info("Submission decided via API",
		zap.String("submission_id", id),
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("admin_id", c.GetInt64(middleware.AdminIDKey)))

	body := gin.H{"id": id, "outcome": res.Outcome, "delivered": res.Delivered}
	if res.Submission != nil {
		body["status"] = res.Submission.Status
	}
	c.JSON(http.StatusOK, body)
}

func (h *moderationHandler) ListUserSubmissions(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	subs, err := h.moderator.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list user submissions", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list submissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs, "count": len(subs)})
}
