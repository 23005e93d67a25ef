package tracker

import (
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/confidence"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/logging"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"
	"go.uber.org/zap"
)

// #region options
// Options configures a Tracker. Zero values fall back to the defaults.
type Options struct {
	Update update.Config
	Policy confidence.Policy
	Logger *zap.Logger
	Now    func() time.Time
}
// #endregion options

// #region result
// Result is what ApplyFeedback returns to callers.
type Result struct {
	EventID      string                `json:"event_id"`
	State        state.CityWeightState `json:"state"`
	Change       update.Change         `json:"-"`
	ApprovalRate float64               `json:"approval_rate"`
	Multiplier   float64               `json:"confidence_multiplier"`
	AuditTrail   []string              `json:"audit_trail"`
}
// #endregion result

// #region stats
// Status values reported per city.
const (
	StatusNoData   = "No data yet"
	StatusLearning = "Learning"
	StatusActive   = "Active"
)

// System status values reported by Report.
const (
	SystemWarmingUp = "Warming Up"
	SystemActive    = "Active"
)

// CityStats is the per-city view served by the statistics endpoints.
type CityStats struct {
	City          string    `json:"city"`
	TotalCases    int       `json:"total_cases"`
	ApproveCount  int       `json:"approve_count"`
	RejectCount   int       `json:"reject_count"`
	ApprovalRate  float64   `json:"approval_rate"`
	ActionWeights []float64 `json:"action_weights"`
	Multiplier    float64   `json:"confidence_multiplier"`
	Status        string    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Report aggregates every city plus the most recent adaptations.
type Report struct {
	GeneratedAt         time.Time                 `json:"report_timestamp"`
	TotalFeedback       int                       `json:"total_feedback_count"`
	TotalApprovals      int                       `json:"total_positive"`
	OverallApprovalRate float64                   `json:"overall_approval_rate"`
	CitiesTracked       int                       `json:"cities_tracked"`
	Cities              []CityStats               `json:"city_breakdown"`
	Recent              []logging.AdaptationEntry `json:"recent_feedback"`
	Status              string                    `json:"system_status"`
}

// Summary counts the whole ledger by polarity.
type Summary struct {
	Upvotes       int `json:"upvotes"`
	Downvotes     int `json:"downvotes"`
	TotalFeedback int `json:"total_feedback"`
}
// #endregion stats
