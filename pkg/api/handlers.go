package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/services"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	st         store.Store
	engine     *services.RuleEngine
	dispatcher *services.Dispatcher
	alerts     *services.AlertService
	limiter    *services.RateLimiter
	monitor    *services.AnomalyMonitor
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(st store.Store, engine *services.RuleEngine, dispatcher *services.Dispatcher,
	alerts *services.AlertService, limiter *services.RateLimiter, monitor *services.AnomalyMonitor) *APIHandler {
	return &APIHandler{
		st:         st,
		engine:     engine,
		dispatcher: dispatcher,
		alerts:     alerts,
		limiter:    limiter,
		monitor:    monitor,
	}
}

// alertError maps store errors to HTTP responses
func alertError(c echo.Context, id string, err error) error {
	var transition *store.InvalidTransitionError
	switch {
	case errors.As(err, &transition):
		return c.JSON(http.StatusConflict, map[string]string{"error": transition.Error()})
	case errors.Is(err, store.ErrAlertNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Alert with ID %s not found", id)})
	case errors.Is(err, store.ErrRuleNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// EvaluateAnomaly returns all enabled rules that would trigger for the
// posted anomaly. Dry-run: no alerts are created.
func (h *APIHandler) EvaluateAnomaly(c echo.Context) error {
	var anomaly models.AnomalyDetection
	if err := c.Bind(&anomaly); err != nil {
		logrus.Errorf("Error binding anomaly: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	matched, err := h.engine.MatchingRules(c.Request().Context(), &anomaly)
	if err != nil {
		logrus.Errorf("Error evaluating anomaly: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to evaluate anomaly"})
	}
	if matched == nil {
		matched = []*models.AlertRule{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"anomalyId":    anomaly.LogID,
		"matchedRules": matched,
	})
}

// TestRule evaluates a rule against a sample anomaly and returns the
// trace of each sub-check
func (h *APIHandler) TestRule(c echo.Context) error {
	id := c.Param("id")
	rule, err := h.st.FindRule(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting rule %s: %v", id, err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", id)})
	}

	var anomaly models.AnomalyDetection
	if err := c.Bind(&anomaly); err != nil {
		logrus.Errorf("Error binding anomaly: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	return c.JSON(http.StatusOK, h.engine.TestRule(rule, &anomaly))
}

// TriggerRule runs the full dispatch path for a rule against the posted
// anomaly: rate limiting, alert creation, and notification fan-out
func (h *APIHandler) TriggerRule(c echo.Context) error {
	id := c.Param("id")
	rule, err := h.st.FindRule(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting rule %s: %v", id, err)
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", id)})
	}

	var anomaly models.AnomalyDetection
	if err := c.Bind(&anomaly); err != nil {
		logrus.Errorf("Error binding anomaly: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	triggered, err := h.engine.EvaluateRule(c.Request().Context(), id, &anomaly)
	if err != nil {
		logrus.Errorf("Error evaluating rule %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to evaluate rule"})
	}
	if !triggered {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"triggered": false,
			"ruleId":    rule.ID,
		})
	}

	result, err := h.dispatcher.HandleTrigger(c.Request().Context(), rule, &anomaly)
	if err != nil {
		logrus.Errorf("Error dispatching alert for rule %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to dispatch alert"})
	}
	return c.JSON(http.StatusOK, result)
}

// TestChannel sends a test notification through a channel
func (h *APIHandler) TestChannel(c echo.Context) error {
	id := c.Param("id")
	ok, err := h.dispatcher.TestChannel(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrChannelNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Channel with ID %s not found", id)})
		}
		logrus.Errorf("Error testing channel %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": ok})
}

// GetChannelStatistics returns a channel's delivery counters
func (h *APIHandler) GetChannelStatistics(c echo.Context) error {
	id := c.Param("id")
	stats, err := h.st.ChannelStatistics(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrChannelNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Channel with ID %s not found", id)})
		}
		logrus.Errorf("Error getting channel statistics %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get channel statistics"})
	}
	return c.JSON(http.StatusOK, stats)
}

// GetAlert returns an alert by ID
func (h *APIHandler) GetAlert(c echo.Context) error {
	id := c.Param("id")
	alert, err := h.alerts.GetAlert(c.Request().Context(), id)
	if err != nil {
		logrus.Errorf("Error getting alert %s: %v", id, err)
		return alertError(c, id, err)
	}
	return c.JSON(http.StatusOK, alert)
}

// GetAlerts returns alerts filtered by status, or recent alerts when no
// status is given
func (h *APIHandler) GetAlerts(c echo.Context) error {
	limit := queryInt(c, "limit", 100)

	if status := c.QueryParam("status"); status != "" {
		alerts, err := h.alerts.ListByStatus(c.Request().Context(), models.AlertStatus(status), limit)
		if err != nil {
			logrus.Errorf("Error listing alerts: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list alerts"})
		}
		return c.JSON(http.StatusOK, alerts)
	}

	within := time.Duration(queryInt(c, "minutes", 24*60)) * time.Minute
	alerts, err := h.alerts.ListRecent(c.Request().Context(), within, limit)
	if err != nil {
		logrus.Errorf("Error listing recent alerts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list alerts"})
	}
	return c.JSON(http.StatusOK, alerts)
}

// GetAlertStatistics returns alert counts grouped by status
func (h *APIHandler) GetAlertStatistics(c echo.Context) error {
	stats, err := h.alerts.Statistics(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting alert statistics: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get alert statistics"})
	}
	return c.JSON(http.StatusOK, stats)
}

// CreateAlert creates a manual alert against an existing rule
func (h *APIHandler) CreateAlert(c echo.Context) error {
	var req models.CreateManualAlertRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding create alert request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if req.RuleID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ruleId and title are required"})
	}

	alert, err := h.alerts.CreateManualAlert(c.Request().Context(), &req)
	if err != nil {
		logrus.Errorf("Error creating manual alert: %v", err)
		if errors.Is(err, store.ErrRuleNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", req.RuleID)})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to create alert: %v", err)})
	}
	return c.JSON(http.StatusCreated, alert)
}

// AcknowledgeAlert acknowledges an open alert
func (h *APIHandler) AcknowledgeAlert(c echo.Context) error {
	id := c.Param("id")
	var req models.AcknowledgeAlertRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding acknowledge request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	alert, err := h.alerts.Acknowledge(c.Request().Context(), id, req.AcknowledgedBy)
	if err != nil {
		logrus.Errorf("Error acknowledging alert %s: %v", id, err)
		return alertError(c, id, err)
	}
	return c.JSON(http.StatusOK, alert)
}

// ResolveAlert resolves an alert
func (h *APIHandler) ResolveAlert(c echo.Context) error {
	id := c.Param("id")
	var req models.ResolveAlertRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding resolve request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	alert, err := h.alerts.Resolve(c.Request().Context(), id, req.ResolvedBy, req.Notes)
	if err != nil {
		logrus.Errorf("Error resolving alert %s: %v", id, err)
		return alertError(c, id, err)
	}
	return c.JSON(http.StatusOK, alert)
}

// MarkFalsePositive marks an alert as a false positive
func (h *APIHandler) MarkFalsePositive(c echo.Context) error {
	id := c.Param("id")
	var req models.AcknowledgeAlertRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding false positive request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	alert, err := h.alerts.MarkFalsePositive(c.Request().Context(), id, req.AcknowledgedBy)
	if err != nil {
		logrus.Errorf("Error marking alert %s false positive: %v", id, err)
		return alertError(c, id, err)
	}
	return c.JSON(http.StatusOK, alert)
}

// RetryNotifications re-sends notifications for an alert whose initial
// dispatch failed
func (h *APIHandler) RetryNotifications(c echo.Context) error {
	id := c.Param("id")
	if err := h.alerts.RetryNotifications(c.Request().Context(), id); err != nil {
		logrus.Errorf("Error retrying notifications for alert %s: %v", id, err)
		return alertError(c, id, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notifications retried"})
}

// GetRateLimitConfig returns the active rate limit policy
func (h *APIHandler) GetRateLimitConfig(c echo.Context) error {
	cfg := h.limiter.Config()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"enabled":          cfg.Enabled,
		"maxAlertsPerRule": cfg.MaxAlertsPerRule,
		"timeWindow":       cfg.TimeWindow.String(),
		"defaultCooldown":  cfg.DefaultCooldown.String(),
	})
}

// GetRateLimitStatus returns a rule's cooldown state and window count
func (h *APIHandler) GetRateLimitStatus(c echo.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, h.limiter.Status(id, time.Now()))
}

// ClearRateLimitCooldown removes a rule's cooldown
func (h *APIHandler) ClearRateLimitCooldown(c echo.Context) error {
	id := c.Param("id")
	h.limiter.ClearCooldown(id)
	return c.JSON(http.StatusOK, map[string]string{"message": "Cooldown cleared"})
}

// GetMonitoringStatus returns the anomaly monitor's state
func (h *APIHandler) GetMonitoringStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Status())
}

// GetAnomalyStatistics returns anomaly feed counts over the monitor's
// lookback window
func (h *APIHandler) GetAnomalyStatistics(c echo.Context) error {
	stats, err := h.monitor.AnomalyStatistics(c.Request().Context())
	if err != nil {
		logrus.Errorf("Error getting anomaly statistics: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get anomaly statistics"})
	}
	return c.JSON(http.StatusOK, stats)
}

// TriggerMonitoring runs a monitoring tick immediately
func (h *APIHandler) TriggerMonitoring(c echo.Context) error {
	if err := h.monitor.RunOnce(c.Request().Context()); err != nil {
		logrus.Errorf("Error running monitoring check: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Monitoring check failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Monitoring check completed"})
}

// Health returns service liveness
func (h *APIHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// SetupRoutes sets up the API routes
func (h *APIHandler) SetupRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	// Rule evaluation endpoints
	e.POST("/api/evaluate", h.EvaluateAnomaly)
	e.POST("/api/rules/:id/test", h.TestRule)
	e.POST("/api/rules/:id/trigger", h.TriggerRule)

	// Channel endpoints
	e.POST("/api/channels/:id/test", h.TestChannel)
	e.GET("/api/channels/:id/statistics", h.GetChannelStatistics)

	// Alert endpoints
	e.GET("/api/alerts", h.GetAlerts)
	e.GET("/api/alerts/statistics", h.GetAlertStatistics)
	e.GET("/api/alerts/:id", h.GetAlert)
	e.POST("/api/alerts", h.CreateAlert)
	e.POST("/api/alerts/:id/acknowledge", h.AcknowledgeAlert)
	e.POST("/api/alerts/:id/resolve", h.ResolveAlert)
	e.POST("/api/alerts/:id/false-positive", h.MarkFalsePositive)
	e.POST("/api/alerts/:id/retry-notifications", h.RetryNotifications)

	// Rate limit endpoints
	e.GET("/api/ratelimit/config", h.GetRateLimitConfig)
	e.GET("/api/ratelimit/rules/:id", h.GetRateLimitStatus)
	e.POST("/api/ratelimit/rules/:id/clear-cooldown", h.ClearRateLimitCooldown)

	// Monitoring endpoints
	e.GET("/api/monitoring/status", h.GetMonitoringStatus)
	e.GET("/api/monitoring/anomaly-statistics", h.GetAnomalyStatistics)
	e.POST("/api/monitoring/trigger", h.TriggerMonitoring)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
