package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeguard/internal/models"
	"safeguard/internal/repository"
)

// FlagHandler serves the human review workflow over persisted flags.
type FlagHandler interface {
	GetAllFlags(c *gin.Context)
	GetFlagByID(c *gin.Context)
	UpdateFlagStatus(c *gin.Context)
}

type flagHandler struct {
	flagRepo repository.FlagRepository
	logger   *zap.Logger
}

func NewFlagHandler(flagRepo repository.FlagRepository, logger *zap.Logger) FlagHandler {
	return &flagHandler{flagRepo: flagRepo, logger: logger}
}

// GetAllFlags handles GET /api/flags
// Query parameters:
// - status: filter by status (optional)
func (h *flagHandler) GetAllFlags(c *gin.Context) {
	status := c.Query("status")

	var flags []*models.Flag
	var err error

	if status != "" {
		if !models.ValidFlagStatuses[status] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
		flags, err = h.flagRepo.GetFlagsByStatus(c.Request.Context(), status)
	} else {
		flags, err = h.flagRepo.GetAllFlags(c.Request.Context())
	}

	if err != nil {
		h.logger.Error("Failed to get flags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve flags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flags": flags})
}

// GetFlagByID handles GET /api/flags/:id
func (h *flagHandler) GetFlagByID(c *gin.Context) {
	id := c.Param("id")

	flag, err := h.flagRepo.GetFlagByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get flag", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve flag"})
		return
	}
	if flag == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flag not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flag": flag})
}

// UpdateStatusRequest is the body of PATCH /api/flags/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateFlagStatus handles PATCH /api/flags/:id/status
func (h *flagHandler) UpdateFlagStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind JSON for status update", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidFlagStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: pending, reviewing, resolved, false_positive"})
		return
	}

	if err := h.flagRepo.UpdateFlagStatus(c.Request.Context(), id, req.Status); err != nil {
		h.logger.Error("Failed to update flag status", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flag status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Flag status updated successfully"})
}
