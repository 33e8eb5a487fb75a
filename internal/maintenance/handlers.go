package maintenance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hydroward/damtwin/internal/auth"
)

// Handler provides HTTP endpoints for the maintenance ledger.
type Handler struct {
	svc *Service
}

// NewHandler creates a new maintenance handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up maintenance routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/assets/:assetId/maintenance", h.Record)
	r.GET("/assets/:assetId/maintenance", h.History)
}

type recordRequest struct {
	Action string `json:"action" binding:"required"`
}

// Record handles POST /v1/assets/:assetId/maintenance
func (h *Handler) Record(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
		return
	}

	entry, err := h.svc.Record(c.Request.Context(), auth.CallerAddress(c), c.Param("assetId"), req.Action)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// History handles GET /v1/assets/:assetId/maintenance
func (h *Handler) History(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	entries, err := h.svc.History(c.Request.Context(), c.Param("assetId"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
