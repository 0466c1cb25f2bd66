package sybil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/0xMilord/renderiq-sub004/internal/validation"
)

// Handler provides HTTP endpoints for the detection engine. The onboarding
// service calls these during signup; the dashboard reads the detection feed.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new sybil handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up sybil detection routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sybil/detect", h.Detect)
	r.POST("/activity", h.RecordActivity)
	r.GET("/users/:id/blocked", h.IsBlocked)
	r.GET("/users/:id/detections", h.ListDetections)
}

// DetectRequest is the request body for POST /v1/sybil/detect.
// Headers carries the forwarding headers of the original signup request; when
// omitted, the headers of this API call are used instead.
type DetectRequest struct {
	UserID    string            `json:"userId" binding:"required"`
	Email     string            `json:"email" binding:"required"`
	IPAddress string            `json:"ipAddress" binding:"required"`
	Device    DeviceAttributes  `json:"deviceAttributes"`
	Headers   map[string]string `json:"requestHeaders,omitempty"`
}

// ActivityRequest is the request body for POST /v1/activity.
type ActivityRequest struct {
	UserID          string `json:"userId" binding:"required"`
	EventType       string `json:"eventType" binding:"required"`
	IPAddress       string `json:"ipAddress"`
	UserAgent       string `json:"userAgent"`
	FingerprintHash string `json:"fingerprintHash,omitempty"`
}

// Detect handles POST /v1/sybil/detect
func (h *Handler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidEmail("email", req.Email),
		validation.MaxLength("userId", req.UserID, 64),
		validation.MaxLength("ipAddress", req.IPAddress, 100),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	headers := c.Request.Header
	if len(req.Headers) > 0 {
		headers = make(http.Header, len(req.Headers))
		for k, v := range req.Headers {
			headers.Set(k, v)
		}
	}

	result := h.engine.Detect(c.Request.Context(), DetectInput{
		UserID:    req.UserID,
		Email:     req.Email,
		IPAddress: req.IPAddress,
		Device:    req.Device,
		Headers:   headers,
	})

	c.JSON(http.StatusOK, result)
}

// RecordActivity handles POST /v1/activity
func (h *Handler) RecordActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	switch req.EventType {
	case EventSignup, EventLogin, EventRender, EventCreditPurchase, EventLogout:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "unknown event type: " + req.EventType,
		})
		return
	}

	err := h.engine.RecordActivity(c.Request.Context(),
		req.UserID, req.EventType, req.IPAddress, req.UserAgent, req.FingerprintHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

// IsBlocked handles GET /v1/users/:id/blocked
func (h *Handler) IsBlocked(c *gin.Context) {
	userID := c.Param("id")

	blocked, err := h.engine.IsUserBlocked(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": userID, "blocked": blocked})
}

// ListDetections handles GET /v1/users/:id/detections
func (h *Handler) ListDetections(c *gin.Context) {
	userID := c.Param("id")

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	detections, err := h.engine.Detections(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detections": detections,
		"count":      len(detections),
	})
}
