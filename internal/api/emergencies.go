package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodfinder/internal/auth"
	"bloodfinder/internal/emergency"
	"bloodfinder/internal/metrics"
)

func (h *Handler) ListEmergencies(c *gin.Context) {
	reqs, err := h.emergencies.ListOpen(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// CreateEmergency stores the request and broadcasts it. A failed broadcast still
// answers 201, with alert_warning set.
func (h *Handler) CreateEmergency(c *gin.Context) {
	var in emergency.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.emergencies.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	result := "sent"
	if !out.AlertSent {
		result = "failed"
	}
	metrics.Alerts.WithLabelValues(h.cfg.AlertMode, result).Inc()
	c.JSON(http.StatusCreated, out)
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=open fulfilled cancelled"`
}

func (h *Handler) UpdateEmergencyStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.emergencies.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		h.fail(c, err)
		return
	}
	if sess, ok := auth.FromContext(c); ok {
		h.logger.Info("emergency status changed",
			zap.String("request_id", id),
			zap.String("status", req.Status),
			zap.Time("session_created_at", sess.CreatedAt),
		)
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (h *Handler) DashboardStats(c *gin.Context) {
	st, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DashboardDistribution(c *gin.Context) {
	d, err := h.dashboard.Distribution(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
