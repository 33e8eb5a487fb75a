package assessment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
)

// Handler provides HTTP endpoints for the assessment protocol.
type Handler struct {
	svc *Service
}

// NewHandler creates a new assessment handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up assessment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/readings", h.Submit)
	r.GET("/readings/:id", h.GetReading)
	r.POST("/readings/:id/assessment", h.RequestAssessment)
	r.GET("/readings/:id/assessment", h.GetAssessment)
	r.POST("/assessments/callback", h.DeliverAssessment)
	r.GET("/assessments/pending", h.ListPending)
}

type submitRequest struct {
	SensorID             string `json:"sensorId" binding:"required"`
	EncryptedSeepage     string `json:"encryptedSeepage" binding:"required"`
	EncryptedDeformation string `json:"encryptedDeformation" binding:"required"`
	EncryptedPressure    string `json:"encryptedPressure" binding:"required"`
}

type callbackRequest struct {
	RequestID          string `json:"requestId" binding:"required"`
	EncryptedRiskScore string `json:"encryptedRiskScore" binding:"required"`
	WarningFlag        string `json:"warningFlag" binding:"required"`
	Warning            bool   `json:"warning"`
	Proof              string `json:"proof" binding:"required"`
}

// Submit handles POST /v1/readings
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
		return
	}

	seepage, err := ciphertext.Parse(req.EncryptedSeepage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed seepage handle"})
		return
	}
	deformation, err := ciphertext.Parse(req.EncryptedDeformation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed deformation handle"})
		return
	}
	pressure, err := ciphertext.Parse(req.EncryptedPressure)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed pressure handle"})
		return
	}

	recordID, err := h.svc.Submit(c.Request.Context(), auth.CallerAddress(c), req.SensorID, seepage, deformation, pressure)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recordId": recordID})
}

// GetReading handles GET /v1/readings/:id
func (h *Handler) GetReading(c *gin.Context) {
	recordID, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.svc.GetRecord(c.Request.Context(), recordID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                   rec.ID,
		"sensorId":             rec.SensorID,
		"encryptedSeepage":     rec.Seepage.Hex(),
		"encryptedDeformation": rec.Deformation.Hex(),
		"encryptedPressure":    rec.Pressure.Hex(),
		"submittedAt":          rec.SubmittedAt,
	})
}

// RequestAssessment handles POST /v1/readings/:id/assessment
func (h *Handler) RequestAssessment(c *gin.Context) {
	recordID, ok := h.recordID(c)
	if !ok {
		return
	}

	requestID, err := h.svc.RequestAssessment(c.Request.Context(), auth.CallerAddress(c), recordID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID})
}

// GetAssessment handles GET /v1/readings/:id/assessment
func (h *Handler) GetAssessment(c *gin.Context) {
	recordID, ok := h.recordID(c)
	if !ok {
		return
	}

	a, err := h.svc.GetAssessment(c.Request.Context(), recordID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"recordId":           a.RecordID,
		"isAssessed":         a.IsAssessed,
		"encryptedRiskScore": a.RiskScore.Hex(),
		"warningFlag":        a.WarningFlag.Hex(),
	}
	if a.AssessedAt != nil {
		resp["assessedAt"] = a.AssessedAt
	}
	c.JSON(http.StatusOK, resp)
}

// DeliverAssessment handles POST /v1/assessments/callback
func (h *Handler) DeliverAssessment(c *gin.Context) {
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": err.Error()})
		return
	}

	score, err := ciphertext.Parse(req.EncryptedRiskScore)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed risk score handle"})
		return
	}
	flag, err := ciphertext.Parse(req.WarningFlag)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "malformed warning flag handle"})
		return
	}

	err = h.svc.DeliverAssessment(c.Request.Context(), req.RequestID, score, flag, req.Warning, req.Proof)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "assessed"})
}

// ListPending handles GET /v1/assessments/pending
func (h *Handler) ListPending(c *gin.Context) {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	pending, err := h.svc.ListPending(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_error"})
		return
	}

	out := make([]gin.H, 0, len(pending))
	for _, req := range pending {
		out = append(out, gin.H{
			"requestId":        req.RequestID,
			"recordId":         req.RecordID,
			"thresholdVersion": req.ThresholdVersion,
			"createdAt":        req.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"pending": out})
}

func (h *Handler) recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input", "message": "record id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, ErrAlreadyAssessed):
		c.JSON(http.StatusConflict, gin.H{"error": "already_assessed"})
	case errors.Is(err, ErrRequestInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "request_in_flight"})
	case errors.Is(err, ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_request"})
	case errors.Is(err, ErrInvalidProof):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_proof"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
