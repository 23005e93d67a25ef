package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedbackEvents counts applied feedback by polarity and whether a weight moved
	FeedbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_feedback_events_total",
		Help: "Total feedback events applied by polarity and outcome",
	}, []string{"polarity", "outcome"})

	// FeedbackErrors counts failed feedback applications by stage
	FeedbackErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_feedback_errors_total",
		Help: "Total feedback failures by stage",
	}, []string{"stage"})

	// ApplyDuration tracks the load, update and commit cycle
	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adaptive_feedback_apply_duration_seconds",
		Help:    "Feedback apply duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// Adjustments counts confidence adjustments by chosen multiplier
	Adjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_confidence_adjustments_total",
		Help: "Total confidence adjustments by multiplier",
	}, []string{"multiplier"})

	// ApprovalRate observes the city approval rate after each applied event.
	// Cities are caller-supplied, so they are not a label.
	ApprovalRate = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "adaptive_city_approval_rate",
		Help:    "City approval rate after each applied feedback event",
		Buckets: []float64{0.5, 0.7, 0.85, 1},
	})
)

// MultiplierLabel formats a multiplier as a stable label value.
func MultiplierLabel(m float64) string {
	return strconv.FormatFloat(m, 'f', 2, 64)
}
