package api

import (
	"net/http"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/signals"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	tracker  *tracker.Tracker
	inferrer signals.Inferrer
	logger   *zap.Logger
}

// NewHandler creates a new API handler. inferrer recovers the action index
// when a feedback request does not name one; nil uses signals.Default().
func NewHandler(t *tracker.Tracker, inferrer signals.Inferrer, logger *zap.Logger) *Handler {
	if inferrer == nil {
		inferrer = signals.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracker:  t,
		inferrer: inferrer,
		logger:   logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Feedback
		api.POST("/feedback", h.SubmitFeedback)
		api.GET("/feedback/case/:id", h.GetFeedbackByCase)
		api.GET("/feedback/summary", h.GetFeedbackSummary)

		// Confidence
		api.POST("/confidence/adjust", h.AdjustConfidence)

		// City statistics
		api.GET("/cities", h.GetAllCities)
		api.GET("/cities/:city", h.GetCity)
		api.GET("/cities/:city/events", h.GetCityEvents)

		api.GET("/report", h.GetReport)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	CaseID       string                 `json:"case_id" binding:"required"`
	ProjectID    string                 `json:"project_id"`
	City         string                 `json:"city"`
	UserFeedback string                 `json:"user_feedback" binding:"required"`
	Action       *int                   `json:"action"`
	InputCase    map[string]interface{} `json:"input_case"`
	OutputReport map[string]interface{} `json:"output_report"`
}

// AdjustRequest is the body of POST /api/v1/confidence/adjust.
type AdjustRequest struct {
	BaseConfidence *float64 `json:"base_confidence" binding:"required"`
	City           string   `json:"city"`
	ActionHint     []string `json:"action_hint"`
}

// SubmitFeedback records one approve/reject judgment and applies it
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := h.toEvent(req)
	if err != nil {
		h.fail(c, err, "invalid feedback")
		return
	}

	result, err := h.tracker.ApplyFeedback(ev)
	if err != nil {
		h.fail(c, err, "could not apply feedback")
		return
	}

	for _, line := range result.AuditTrail {
		h.logger.Debug("audit", zap.String("case_id", req.CaseID), zap.String("line", line))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"feedback_id":        result.EventID,
		"action":             result.Change.Action,
		"adaptation_summary": result,
	})
}

func (h *Handler) toEvent(req FeedbackRequest) (feedback.Event, error) {
	input, err := feedback.Snapshot(req.InputCase)
	if err != nil {
		return feedback.Event{}, err
	}
	output, err := feedback.Snapshot(req.OutputReport)
	if err != nil {
		return feedback.Event{}, err
	}
	return feedback.Submission{
		CaseID:       req.CaseID,
		ProjectID:    req.ProjectID,
		City:         req.City,
		UserFeedback: req.UserFeedback,
		Action:       req.Action,
		Input:        input,
		Output:       output,
	}.Event(h.inferrer.Infer)
}

// AdjustConfidence scales a base confidence by the city's approval history
func (h *Handler) AdjustConfidence(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, err := h.tracker.Decide(*req.BaseConfidence, req.City, req.ActionHint)
	if err != nil {
		h.fail(c, err, "could not adjust confidence")
		return
	}

	c.JSON(http.StatusOK, decision)
}

// GetFeedbackByCase returns the ledger entries for one case
func (h *Handler) GetFeedbackByCase(c *gin.Context) {
	caseID := c.Param("id")

	events, err := h.tracker.EventsForCase(caseID)
	if err != nil {
		h.fail(c, err, "failed to get feedback")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case_id":  caseID,
		"feedback": events,
		"total":    len(events),
	})
}

// GetFeedbackSummary returns up/down totals over the whole ledger
func (h *Handler) GetFeedbackSummary(c *gin.Context) {
	summary, err := h.tracker.Summary()
	if err != nil {
		h.fail(c, err, "failed to summarize feedback")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetAllCities returns statistics for every tracked city
func (h *Handler) GetAllCities(c *gin.Context) {
	cities, err := h.tracker.AllCityStatistics()
	if err != nil {
		h.fail(c, err, "failed to get city statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cities": cities,
		"total":  len(cities),
	})
}

// GetCity returns statistics for one city
func (h *Handler) GetCity(c *gin.Context) {
	stats, err := h.tracker.CityStatistics(c.Param("city"))
	if err != nil {
		h.fail(c, err, "failed to get city statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetCityEvents returns the ledger entries for one city
func (h *Handler) GetCityEvents(c *gin.Context) {
	city := c.Param("city")

	events, err := h.tracker.EventsForCity(city)
	if err != nil {
		h.fail(c, err, "failed to get city events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"city":     city,
		"feedback": events,
		"total":    len(events),
	})
}

// GetReport returns the aggregated feedback report
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.tracker.Report()
	if err != nil {
		h.fail(c, err, "failed to build report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "city-adaptive-feedback",
	})
}

// fail maps validation errors to 400 and everything else to 500.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if feedback.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
