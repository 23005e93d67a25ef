package update

import (
	"fmt"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
)

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "adjust" | "count_only"
	Reason string
}
// #endregion decision

// #region change
// Change describes the weight movement for one event. OldWeight and NewWeight
// are only meaningful when Applied is true.
type Change struct {
	Action    *int
	Applied   bool
	OldWeight float64
	NewWeight float64
}

// Delta returns NewWeight - OldWeight, or 0 when no weight moved.
func (c Change) Delta() float64 {
	if !c.Applied {
		return 0
	}
	return c.NewWeight - c.OldWeight
}
// #endregion change

// #region update-config
// Config holds the multiplicative factors and clamp bounds for the update function.
type Config struct {
	ActionCount   int      `yaml:"action_count"`   // weights per city (default 3)
	ApproveFactor float64  `yaml:"approve_factor"` // multiplier on APPROVE (default 1.05)
	RejectFactor  float64  `yaml:"reject_factor"`  // multiplier on REJECT (default 0.97)
	MinWeight     float64  `yaml:"min_weight"`     // lower clamp (default 0.1)
	MaxWeight     float64  `yaml:"max_weight"`     // upper clamp (default 2.0)
	ActionLabels  []string `yaml:"action_labels"`  // display names, index-aligned with weights
}

// DefaultConfig returns the low/medium/high FSI action set.
func DefaultConfig() Config {
	return Config{
		ActionCount:   3,
		ApproveFactor: 1.05,
		RejectFactor:  0.97,
		MinWeight:     0.1,
		MaxWeight:     2.0,
		ActionLabels:  []string{"Low FSI", "Medium FSI", "High FSI"},
	}
}

// Validate rejects configurations that would break the weight bounds.
func (c Config) Validate() error {
	switch {
	case c.ActionCount <= 0:
		return fmt.Errorf("update config: action_count must be positive, got %d", c.ActionCount)
	case c.MinWeight <= 0 || c.MaxWeight < c.MinWeight:
		return fmt.Errorf("update config: weight bounds [%g, %g] are invalid", c.MinWeight, c.MaxWeight)
	case c.MinWeight > 1 || c.MaxWeight < 1:
		return fmt.Errorf("update config: initial weight 1.0 outside [%g, %g]", c.MinWeight, c.MaxWeight)
	case c.ApproveFactor <= 0 || c.RejectFactor <= 0:
		return fmt.Errorf("update config: factors must be positive")
	}
	return nil
}

// Label returns the display name for action i.
func (c Config) Label(i int) string {
	if i >= 0 && i < len(c.ActionLabels) {
		return c.ActionLabels[i]
	}
	return fmt.Sprintf("Action %d", i)
}
// #endregion update-config

// #region update-result
// Result bundles everything returned by Apply().
type Result struct {
	NewState state.CityWeightState
	Decision Decision
	Change   Change
}
// #endregion update-result
