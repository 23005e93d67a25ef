package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/eval"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/feedback"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description    string                 `json:"description"`
	Config         FixtureConfig          `json:"config"`
	Events         []feedback.Event       `json:"events"`
	ExpectedStates []FixtureExpectedState `json:"expected_states"`
}

// FixtureConfig mirrors update.Config with JSON tags.
type FixtureConfig struct {
	ActionCount   int     `json:"action_count"`
	ApproveFactor float64 `json:"approve_factor"`
	RejectFactor  float64 `json:"reject_factor"`
	MinWeight     float64 `json:"min_weight"`
	MaxWeight     float64 `json:"max_weight"`
}

// FixtureExpectedState captures the expected final state of one city.
type FixtureExpectedState struct {
	City          string    `json:"city"`
	ActionWeights []float64 `json:"action_weights"`
	ApproveCount  int       `json:"approve_count"`
	RejectCount   int       `json:"reject_count"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// NewFixture captures events and the states they rebuild to under config.
func NewFixture(description string, events []feedback.Event, config update.Config) *Fixture {
	states := Rebuild(events, ReplayConfig{UpdateConfig: config, EvalConfig: eval.ConfigFrom(config)})

	expected := make([]FixtureExpectedState, 0, len(states))
	for _, st := range states {
		expected = append(expected, FixtureExpectedState{
			City:          st.City,
			ActionWeights: st.ActionWeights,
			ApproveCount:  st.ApproveCount,
			RejectCount:   st.RejectCount,
		})
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i].City < expected[j].City })

	return &Fixture{
		Description: description,
		Config: FixtureConfig{
			ActionCount:   config.ActionCount,
			ApproveFactor: config.ApproveFactor,
			RejectFactor:  config.RejectFactor,
			MinWeight:     config.MinWeight,
			MaxWeight:     config.MaxWeight,
		},
		Events:         events,
		ExpectedStates: expected,
	}
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig. Labels
// are not part of the fixture and come from update.DefaultConfig().
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	uc := update.DefaultConfig()
	uc.ActionCount = fc.ActionCount
	uc.ApproveFactor = fc.ApproveFactor
	uc.RejectFactor = fc.RejectFactor
	uc.MinWeight = fc.MinWeight
	uc.MaxWeight = fc.MaxWeight
	return ReplayConfig{
		UpdateConfig: uc,
		EvalConfig:   eval.ConfigFrom(uc),
	}
}

// ToState converts an expected entry to a CityWeightState for reconciliation.
func (fe *FixtureExpectedState) ToState() state.CityWeightState {
	return state.CityWeightState{
		City:          fe.City,
		ActionWeights: fe.ActionWeights,
		ApproveCount:  fe.ApproveCount,
		RejectCount:   fe.RejectCount,
	}
}

// Verify compares rebuilt states against the expected states. Weights match
// within tol since hand-written fixtures carry rounded values.
func (f *Fixture) Verify(rebuilt map[string]state.CityWeightState, tol float64) []Drift {
	var out []Drift
	add := func(city, field string, want, got interface{}) {
		out = append(out, Drift{City: city, Field: field, Stored: fmt.Sprint(want), Rebuilt: fmt.Sprint(got)})
	}
	for _, fe := range f.ExpectedStates {
		got, ok := rebuilt[fe.City]
		if !ok {
			add(fe.City, "city", "present", "missing")
			continue
		}
		if got.ApproveCount != fe.ApproveCount {
			add(fe.City, "approve_count", fe.ApproveCount, got.ApproveCount)
		}
		if got.RejectCount != fe.RejectCount {
			add(fe.City, "reject_count", fe.RejectCount, got.RejectCount)
		}
		if len(got.ActionWeights) != len(fe.ActionWeights) {
			add(fe.City, "action_weights", fe.ActionWeights, got.ActionWeights)
			continue
		}
		for i, w := range fe.ActionWeights {
			if math.Abs(got.ActionWeights[i]-w) > tol {
				add(fe.City, fmt.Sprintf("action_weights[%d]", i), w, got.ActionWeights[i])
			}
		}
	}
	if len(rebuilt) != len(f.ExpectedStates) {
		add("", "cities", len(f.ExpectedStates), len(rebuilt))
	}
	return out
}

// #endregion fixture-loader
