package thresholds

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
)

// Handler provides HTTP endpoints for threshold operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a new threshold handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up threshold routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/thresholds", h.Current)
	r.PUT("/thresholds", h.Update)
}

type updateRequest struct {
	EncryptedSeepageThreshold     string `json:"encryptedSeepageThreshold" binding:"required"`
	EncryptedDeformationThreshold string `json:"encryptedDeformationThreshold" binding:"required"`
}

// Current handles GET /v1/thresholds
func (h *Handler) Current(c *gin.Context) {
	snap, err := h.svc.Current(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_initialized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "threshold_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"encryptedSeepageThreshold":     snap.Seepage.Hex(),
		"encryptedDeformationThreshold": snap.Deformation.Hex(),
		"version":                       snap.Version,
		"updatedAt":                     snap.UpdatedAt,
	})
}

// Update handles PUT /v1/thresholds
func (h *Handler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
		return
	}

	seepage, err := ciphertext.Parse(req.EncryptedSeepageThreshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed seepage threshold handle"})
		return
	}
	deformation, err := ciphertext.Parse(req.EncryptedDeformationThreshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed deformation threshold handle"})
		return
	}

	snap, err := h.svc.Update(c.Request.Context(), auth.CallerAddress(c), seepage, deformation)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
		case errors.Is(err, ErrNotInitialized):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_initialized"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "threshold_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"updatedAt": snap.UpdatedAt,
	})
}
