package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeguard/internal/models"
	"safeguard/internal/orchestrator"
)

// SafetyHandler exposes the pipeline entry point to the chat service.
type SafetyHandler interface {
	CheckMessage(c *gin.Context)
}

type safetyHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

func NewSafetyHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) SafetyHandler {
	return &safetyHandler{orch: orch, logger: logger}
}

// CheckMessageRequest is the payload the chat service sends after it has
// durably stored a student message.
type CheckMessageRequest struct {
	Content     string      `json:"content" binding:"required"`
	MessageID   string      `json:"message_id" binding:"required"`
	StudentID   string      `json:"student_id" binding:"required"`
	Room        models.Room `json:"room" binding:"required"`
	CountryCode string      `json:"country_code"`
	SentAt      time.Time   `json:"sent_at"` // optional; defaults to receive time
}

// CheckMessage handles POST /api/safety/check. The pipeline is detached
// from the request: the chat service gets 202 immediately and the check
// runs to completion even if the caller disconnects.
func (h *safetyHandler) CheckMessage(c *gin.Context) {
	var req CheckMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind JSON for safety check", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Capture the detached context before spawning; gin recycles the
	// pooled context as soon as this handler returns, so the goroutine
	// must not touch c afterwards.
	detached := context.WithoutCancel(c.Request.Context())

	go func() {
		result := h.orch.CheckMessageSafety(detached, orchestrator.CheckRequest{
			Content:     req.Content,
			MessageID:   req.MessageID,
			StudentID:   req.StudentID,
			Room:        req.Room,
			CountryCode: req.CountryCode,
			SentAt:      req.SentAt,
		})
		h.logger.Info("Safety check completed",
			zap.String("message_id", req.MessageID),
			zap.String("concern_type", result.ConcernType),
			zap.Bool("escalated", result.Escalated),
			zap.Bool("advised", result.Advised))
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Safety check accepted"})
}
