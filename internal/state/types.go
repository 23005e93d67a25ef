package state

import (
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/logging"
)

// #region city-weight-state
// CityWeightState is the derived, mutable adaptation state for one city.
type CityWeightState struct {
	City          string    `json:"city"`
	ActionWeights []float64 `json:"action_weights"`
	ApproveCount  int       `json:"approve_count"`
	RejectCount   int       `json:"reject_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewCityWeightState returns the first-touch state: every weight 1.0, no events.
func NewCityWeightState(city string, actions int) CityWeightState {
	weights := make([]float64, actions)
	for i := range weights {
		weights[i] = 1.0
	}
	return CityWeightState{City: city, ActionWeights: weights}
}

// Total is the number of events folded into the state.
func (s CityWeightState) Total() int {
	return s.ApproveCount + s.RejectCount
}

// ApprovalRate is approve/(approve+reject), or 0 with no events.
func (s CityWeightState) ApprovalRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.ApproveCount) / float64(total)
}

// Clone returns a copy that shares no memory with s.
func (s CityWeightState) Clone() CityWeightState {
	c := s
	c.ActionWeights = append([]float64(nil), s.ActionWeights...)
	return c
}
// #endregion city-weight-state

// #region repository
// Ledger is the append-only record of feedback events.
type Ledger interface {
	// Record validates and appends ev, returning its generated ID.
	Record(ev feedback.Event) (string, error)
	EventsForCity(city string) ([]feedback.Event, error)
	EventsForCase(caseID string) ([]feedback.Event, error)
	CountByPolarity(city string) (approve, reject int, err error)
	AllEvents() ([]feedback.Event, error)
}

// WeightRepository stores one CityWeightState per city key, overwriting on save.
type WeightRepository interface {
	Load(city string) (CityWeightState, bool, error)
	Save(st CityWeightState) error
	List() ([]CityWeightState, error)
}

// AdaptationLog keeps the per-event provenance trail.
type AdaptationLog interface {
	LogAdaptation(entry logging.AdaptationEntry) error
	RecentAdaptations(limit int) ([]logging.AdaptationEntry, error)
}

// Repository is everything the tracker persists through.
type Repository interface {
	Ledger
	WeightRepository
	AdaptationLog
	// CommitFeedback appends ev and overwrites st in one atomic unit, returning the event ID.
	CommitFeedback(ev feedback.Event, st CityWeightState) (string, error)
}
// #endregion repository
